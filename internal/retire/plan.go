package retire

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/config"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/logger"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/schema"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/sqlutil"
)

// userIDColumnCandidates are the column spellings tried, in order, when a
// table is expected to carry the account id directly.
var userIDColumnCandidates = []string{"user_id", "users_id", "account_id", "uid"}

// Delete stages, in execution order. Children always go before the rows they
// reference.
const (
	StageDependent = "dependent"
	StageAudit     = "audit"
	StageRoleJoin  = "role-join"
	StageRole      = "role"
	StageUsers     = "users"
)

// Role key kinds: how the role table's rows relate back to accounts.
const (
	// RoleKeyPrimary means the role table carries the account id directly.
	RoleKeyPrimary = "primary"
	// RoleKeyAlternate means the role table is keyed by the alternate
	// identifier (legacy deployments where users carries the staff code).
	RoleKeyAlternate = "alternate"
)

// DeleteStep is one table/column pair scheduled for cascade deletion.
// Source names which side of the bundle supplies the matching values:
// "users" rows, "role" rows, or the "alt" identifier.
type DeleteStep struct {
	Table     string
	Column    string
	RefColumn string
	Source    string
}

// AuxStep pairs a live relationship table with its archived counterpart,
// with the key columns resolved against the actual schema.
type AuxStep struct {
	Source           schema.TableRef
	Archive          schema.TableRef
	KeyColumn        string
	ArchiveKeyColumn string
}

// Plan is the resolved shape of one retirement batch: which concrete tables
// exist in this deployment and which delete steps apply, in order. A plan is
// built fresh per batch and never cached.
type Plan struct {
	Users   schema.TableRef
	UsersPK string
	Archive schema.TableRef

	Role           *schema.TableRef
	RoleUserColumn string
	RoleKeyKind    string

	Generic   []DeleteStep
	Audit     []DeleteStep
	RoleJoins []DeleteStep
	Aux       []AuxStep
}

// Planner resolves candidate table names and foreign-key metadata into a
// concrete Plan.
type Planner struct {
	catalog *schema.Catalog
	fks     *schema.Index
	cfg     *config.RetirementConfig
	logger  *logger.Logger
}

// NewPlanner creates a planner over the given schema discovery components.
func NewPlanner(catalog *schema.Catalog, fks *schema.Index, cfg *config.RetirementConfig, log *logger.Logger) *Planner {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Planner{catalog: catalog, fks: fks, cfg: cfg, logger: log}
}

// Build resolves the plan for the current schema. Missing users or archive
// storage aborts the batch; a missing role table is tolerated (warn and
// skip) unless strict_schema promotes it to an error.
func (p *Planner) Build(ctx context.Context) (*Plan, error) {
	users, err := p.catalog.ResolveTable(ctx, p.cfg.UsersTables)
	if err != nil {
		return nil, fmt.Errorf("users table: %w", err)
	}
	if !users.Columns.Has(p.cfg.UsersPK) {
		return nil, fmt.Errorf("users table %s has no %q column", users.Name, p.cfg.UsersPK)
	}

	archive, err := p.catalog.ResolveTable(ctx, p.cfg.ArchiveTables)
	if err != nil {
		if errors.Is(err, schema.ErrTableNotFound) {
			return nil, fmt.Errorf("%w: none of %v exists", ErrNoArchiveStorage, p.cfg.ArchiveTables)
		}
		return nil, fmt.Errorf("archive table: %w", err)
	}

	plan := &Plan{
		Users:   users,
		UsersPK: strings.ToLower(p.cfg.UsersPK),
		Archive: archive,
	}

	if err := p.resolveRole(ctx, plan); err != nil {
		return nil, err
	}
	if err := p.buildGenericSteps(ctx, plan); err != nil {
		return nil, err
	}
	if err := p.buildAuditSteps(ctx, plan); err != nil {
		return nil, err
	}
	if err := p.buildRoleJoinSteps(ctx, plan); err != nil {
		return nil, err
	}
	if err := p.buildAuxSteps(ctx, plan); err != nil {
		return nil, err
	}

	p.logger.Debugf("Plan: users=%s archive=%s role=%v generic=%d audit=%d joins=%d aux=%d",
		plan.Users.Name, plan.Archive.Name, plan.RoleTableName(),
		len(plan.Generic), len(plan.Audit), len(plan.RoleJoins), len(plan.Aux))
	return plan, nil
}

func (p *Planner) resolveRole(ctx context.Context, plan *Plan) error {
	role, err := p.catalog.ResolveTable(ctx, p.cfg.RoleTables)
	if err != nil {
		if !errors.Is(err, schema.ErrTableNotFound) {
			return fmt.Errorf("role table: %w", err)
		}
		if p.cfg.StrictSchema {
			return &SchemaDriftError{
				Table:  strings.Join(p.cfg.RoleTables, ", "),
				Detail: "role table not found",
			}
		}
		p.logger.Warnf("No role table among %v; role steps skipped", p.cfg.RoleTables)
		return nil
	}

	if userCol := role.Columns.First(userIDColumnCandidates...); userCol != "" {
		plan.Role = &role
		plan.RoleUserColumn = userCol
		plan.RoleKeyKind = RoleKeyPrimary
		return nil
	}

	// Legacy deployments key the role table by the staff code instead of the
	// account id; rows are then matched through the same-named users column.
	if altCol := role.Columns.First(p.cfg.AlternateIDColumns...); altCol != "" {
		plan.Role = &role
		plan.RoleUserColumn = altCol
		plan.RoleKeyKind = RoleKeyAlternate
		p.logger.WithTable(role.Name).Warnf("Role table keyed by %q, not the account id", altCol)
		return nil
	}

	if p.cfg.StrictSchema {
		return &SchemaDriftError{
			Table:  role.Name,
			Detail: "no account id or alternate identifier column",
		}
	}
	p.logger.WithTable(role.Name).Warnf("Role table has no usable key column; role steps skipped")
	return nil
}

// buildGenericSteps schedules every table the constraint metadata says
// references the users or role table, except tables handled by a dedicated
// stage.
func (p *Planner) buildGenericSteps(ctx context.Context, plan *Plan) error {
	excluded := p.excludedTables(plan)

	usersRefs, err := p.fks.Referencing(ctx, plan.Users.Name)
	if err != nil {
		return err
	}
	plan.Generic = appendEdgeSteps(plan.Generic, usersRefs, "users", excluded)

	if plan.Role != nil {
		roleRefs, err := p.fks.Referencing(ctx, plan.Role.Name)
		if err != nil {
			return err
		}
		plan.Generic = appendEdgeSteps(plan.Generic, roleRefs, "role", excluded)
	}
	return nil
}

// excludedTables are the tables the generic foreign-key pass must not touch:
// the core tables themselves, archive storage, and every table a later
// dedicated stage deletes from.
func (p *Planner) excludedTables(plan *Plan) map[string]bool {
	excluded := map[string]bool{
		strings.ToLower(plan.Users.Name):   true,
		strings.ToLower(plan.Archive.Name): true,
	}
	if plan.Role != nil {
		excluded[strings.ToLower(plan.Role.Name)] = true
	}
	for _, t := range p.cfg.AuditTables {
		excluded[strings.ToLower(t)] = true
	}
	for _, t := range p.cfg.RoleJoinTables {
		excluded[strings.ToLower(t)] = true
	}
	for _, aux := range p.cfg.AuxTables {
		excluded[strings.ToLower(aux.Archive)] = true
	}
	return excluded
}

func appendEdgeSteps(steps []DeleteStep, refs *schema.ReferencingMap, source string, excluded map[string]bool) []DeleteStep {
	for _, table := range refs.Tables() {
		if excluded[strings.ToLower(table)] {
			continue
		}
		for _, edge := range refs.Edges(table) {
			steps = append(steps, DeleteStep{
				Table:     table,
				Column:    edge.Column,
				RefColumn: strings.ToLower(edge.ReferencedColumn),
				Source:    source,
			})
		}
	}
	return steps
}

// buildAuditSteps schedules log-style tables that key directly on the
// account id without a declared constraint.
func (p *Planner) buildAuditSteps(ctx context.Context, plan *Plan) error {
	for _, name := range p.cfg.AuditTables {
		cols, err := p.catalog.Columns(ctx, name)
		if err != nil {
			return err
		}
		if cols.Len() == 0 {
			p.logger.WithTable(name).Debugf("Audit table absent; skipped")
			continue
		}
		col := cols.First(userIDColumnCandidates...)
		if col == "" {
			p.logger.WithTable(name).Warnf("Audit table has no account id column; skipped")
			continue
		}
		plan.Audit = append(plan.Audit, DeleteStep{
			Table:     name,
			Column:    col,
			RefColumn: plan.UsersPK,
			Source:    "users",
		})
	}
	return nil
}

// buildRoleJoinSteps schedules relationship tables keyed by the alternate
// identifier rather than the account id.
func (p *Planner) buildRoleJoinSteps(ctx context.Context, plan *Plan) error {
	for _, name := range p.cfg.RoleJoinTables {
		cols, err := p.catalog.Columns(ctx, name)
		if err != nil {
			return err
		}
		if cols.Len() == 0 {
			p.logger.WithTable(name).Debugf("Role join table absent; skipped")
			continue
		}
		col := cols.First(p.cfg.RoleJoinKeyColumns...)
		if col == "" {
			p.logger.WithTable(name).Warnf("Role join table has no key column among %v; skipped", p.cfg.RoleJoinKeyColumns)
			continue
		}
		plan.RoleJoins = append(plan.RoleJoins, DeleteStep{
			Table:  name,
			Column: col,
			Source: "alt",
		})
	}
	return nil
}

func (p *Planner) buildAuxSteps(ctx context.Context, plan *Plan) error {
	for _, aux := range p.cfg.AuxTables {
		srcCols, err := p.catalog.Columns(ctx, aux.Source)
		if err != nil {
			return err
		}
		if srcCols.Len() == 0 {
			p.logger.WithTable(aux.Source).Debugf("Auxiliary source table absent; skipped")
			continue
		}
		arcCols, err := p.catalog.Columns(ctx, aux.Archive)
		if err != nil {
			return err
		}
		if arcCols.Len() == 0 {
			if p.cfg.StrictSchema {
				return &SchemaDriftError{Table: aux.Archive, Detail: "auxiliary archive table not found"}
			}
			p.logger.WithTable(aux.Archive).Warnf("Auxiliary archive table absent; %s rows will not be preserved", aux.Source)
			continue
		}
		keyCol := srcCols.First(aux.KeyColumns...)
		if keyCol == "" {
			p.logger.WithTable(aux.Source).Warnf("No key column among %v; skipped", aux.KeyColumns)
			continue
		}
		if !arcCols.Has(aux.ArchiveKeyColumn) {
			p.logger.WithTable(aux.Archive).Warnf("Archive table has no %q column; skipped", aux.ArchiveKeyColumn)
			continue
		}
		plan.Aux = append(plan.Aux, AuxStep{
			Source:           schema.TableRef{Name: aux.Source, Columns: srcCols},
			Archive:          schema.TableRef{Name: aux.Archive, Columns: arcCols},
			KeyColumn:        keyCol,
			ArchiveKeyColumn: strings.ToLower(aux.ArchiveKeyColumn),
		})
	}
	return nil
}

// RoleTableName returns the resolved role table name, or "" when absent.
func (p *Plan) RoleTableName() string {
	if p.Role == nil {
		return ""
	}
	return p.Role.Name
}

// EdgeInstance is one delete (or verification) target: a table, the column
// matched against, and the concrete values to match. Instances with no
// values are no-ops.
type EdgeInstance struct {
	Table  string
	Column string
	Stage  string
	Values []interface{}
}

// EdgeInstances materializes the plan against one batch, in delete order:
// generic dependents, audit tables, role join tables, the role table, and
// finally the users table itself.
func (p *Plan) EdgeInstances(bundles map[int64]*SourceBundle, ids []int64, altIDs []string) []EdgeInstance {
	var instances []EdgeInstance

	for _, step := range p.Generic {
		instances = append(instances, EdgeInstance{
			Table:  step.Table,
			Column: step.Column,
			Stage:  StageDependent,
			Values: collectRefValues(bundles, ids, step.Source, step.RefColumn),
		})
	}
	for _, step := range p.Audit {
		instances = append(instances, EdgeInstance{
			Table:  step.Table,
			Column: step.Column,
			Stage:  StageAudit,
			Values: sqlutil.Int64Args(ids),
		})
	}
	for _, step := range p.RoleJoins {
		instances = append(instances, EdgeInstance{
			Table:  step.Table,
			Column: step.Column,
			Stage:  StageRoleJoin,
			Values: sqlutil.StringArgs(altIDs),
		})
	}
	if p.Role != nil {
		roleValues := sqlutil.Int64Args(ids)
		if p.RoleKeyKind == RoleKeyAlternate {
			roleValues = sqlutil.StringArgs(altIDs)
		}
		instances = append(instances, EdgeInstance{
			Table:  p.Role.Name,
			Column: p.RoleUserColumn,
			Stage:  StageRole,
			Values: roleValues,
		})
	}
	instances = append(instances, EdgeInstance{
		Table:  p.Users.Name,
		Column: p.UsersPK,
		Stage:  StageUsers,
		Values: sqlutil.Int64Args(ids),
	})

	return instances
}

// collectRefValues gathers the referenced-column values held by the batch's
// source rows. A foreign key into the role table usually points at the role
// row's own id, not the account id, so values come from whichever row the
// edge actually references.
func collectRefValues(bundles map[int64]*SourceBundle, ids []int64, source, refColumn string) []interface{} {
	var values []interface{}
	seen := make(map[interface{}]bool)
	for _, id := range ids {
		b, ok := bundles[id]
		if !ok {
			continue
		}
		var row *schema.RowAccessor
		switch source {
		case "users":
			row = b.User
		case "role":
			row = b.Role
		}
		if row == nil {
			continue
		}
		v, ok := row.Get(refColumn)
		if !ok || v == nil {
			continue
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return values
}

// TableEstimate is the dry-run row count for one delete target.
type TableEstimate struct {
	Table string `json:"table"`
	Stage string `json:"stage"`
	Rows  int64  `json:"rows"`
}

// Estimate counts, without deleting, how many rows each edge instance would
// remove. Used by dry runs; runs on the pool, never inside the batch
// transaction.
func (p *Plan) Estimate(ctx context.Context, db sqlutil.DBTX, bundles map[int64]*SourceBundle, ids []int64, altIDs []string, chunkSize int) ([]TableEstimate, error) {
	var estimates []TableEstimate
	for _, inst := range p.EdgeInstances(bundles, ids, altIDs) {
		var total int64
		for _, chunk := range sqlutil.ChunkValues(inst.Values, chunkSize) {
			query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IN (%s)",
				sqlutil.QuoteIdentifier(inst.Table),
				sqlutil.QuoteIdentifier(inst.Column),
				sqlutil.Placeholders(len(chunk)))
			var count int64
			if err := db.QueryRowContext(ctx, query, chunk...).Scan(&count); err != nil {
				return nil, fmt.Errorf("failed to count rows in %s: %w", inst.Table, err)
			}
			total += count
		}
		estimates = append(estimates, TableEstimate{Table: inst.Table, Stage: inst.Stage, Rows: total})
	}
	return estimates, nil
}
