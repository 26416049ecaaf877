package retire

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/logger"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/schema"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/sqlutil"
)

// SourceBundle holds everything read about one account before any mutation:
// its users row and, when a role table exists, its matching role row.
type SourceBundle struct {
	PrimaryID int64
	User      *schema.RowAccessor
	Role      *schema.RowAccessor
}

// FetchBundles loads the source rows for the requested account ids. Ids with
// no users row are silently omitted; foundIDs preserves the input order of
// the ids that do exist so the rest of the batch can treat it as the working
// set.
func FetchBundles(ctx context.Context, db sqlutil.DBTX, plan *Plan, ids []int64, chunkSize int, log *logger.Logger) (map[int64]*SourceBundle, []int64, error) {
	bundles := make(map[int64]*SourceBundle, len(ids))

	pkCol := sqlutil.QuoteIdentifier(plan.UsersPK)
	usersTable := sqlutil.QuoteIdentifier(plan.Users.Name)

	for _, chunk := range sqlutil.ChunkInt64(ids, chunkSize) {
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
			usersTable, pkCol, sqlutil.Placeholders(len(chunk)))
		rows, err := db.QueryContext(ctx, query, sqlutil.Int64Args(chunk)...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to query %s: %w", plan.Users.Name, err)
		}
		accessors, err := schema.ScanRows(rows)
		rows.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s rows: %w", plan.Users.Name, err)
		}
		for _, row := range accessors {
			id, ok := row.Int64(plan.UsersPK)
			if !ok {
				continue
			}
			bundles[id] = &SourceBundle{PrimaryID: id, User: row}
		}
	}

	var foundIDs []int64
	for _, id := range ids {
		if _, ok := bundles[id]; ok {
			foundIDs = append(foundIDs, id)
		} else {
			log.WithAccount(id).Info("Account not found; skipping")
		}
	}
	if len(foundIDs) == 0 {
		return bundles, foundIDs, nil
	}

	if plan.Role != nil && plan.RoleUserColumn != "" {
		if err := attachRoleRows(ctx, db, plan, bundles, foundIDs, chunkSize); err != nil {
			return nil, nil, err
		}
	}

	return bundles, foundIDs, nil
}

// attachRoleRows matches role rows to bundles. With a primary key kind the
// role table carries the account id directly; with an alternate kind the
// match goes through the same-named identifier column on the users row.
func attachRoleRows(ctx context.Context, db sqlutil.DBTX, plan *Plan, bundles map[int64]*SourceBundle, ids []int64, chunkSize int) error {
	if plan.RoleKeyKind == RoleKeyAlternate {
		return attachRoleRowsByAlternate(ctx, db, plan, bundles, ids, chunkSize)
	}

	roleTable := sqlutil.QuoteIdentifier(plan.Role.Name)
	userCol := sqlutil.QuoteIdentifier(plan.RoleUserColumn)

	for _, chunk := range sqlutil.ChunkInt64(ids, chunkSize) {
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
			roleTable, userCol, sqlutil.Placeholders(len(chunk)))
		rows, err := db.QueryContext(ctx, query, sqlutil.Int64Args(chunk)...)
		if err != nil {
			return fmt.Errorf("failed to query %s: %w", plan.Role.Name, err)
		}
		accessors, err := schema.ScanRows(rows)
		rows.Close()
		if err != nil {
			return fmt.Errorf("failed to read %s rows: %w", plan.Role.Name, err)
		}
		for _, row := range accessors {
			id, ok := row.Int64(plan.RoleUserColumn)
			if !ok {
				continue
			}
			if b, exists := bundles[id]; exists && b.Role == nil {
				b.Role = row
			}
		}
	}
	return nil
}

func attachRoleRowsByAlternate(ctx context.Context, db sqlutil.DBTX, plan *Plan, bundles map[int64]*SourceBundle, ids []int64, chunkSize int) error {
	ownerByKey := make(map[string]int64)
	var keys []string
	for _, id := range ids {
		b, ok := bundles[id]
		if !ok || b.User == nil {
			continue
		}
		key, ok := b.User.String(plan.RoleUserColumn)
		if !ok {
			continue
		}
		if _, dup := ownerByKey[key]; !dup {
			ownerByKey[key] = id
			keys = append(keys, key)
		}
	}

	roleTable := sqlutil.QuoteIdentifier(plan.Role.Name)
	keyCol := sqlutil.QuoteIdentifier(plan.RoleUserColumn)

	for _, chunk := range sqlutil.ChunkStrings(keys, chunkSize) {
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
			roleTable, keyCol, sqlutil.Placeholders(len(chunk)))
		rows, err := db.QueryContext(ctx, query, sqlutil.StringArgs(chunk)...)
		if err != nil {
			return fmt.Errorf("failed to query %s: %w", plan.Role.Name, err)
		}
		accessors, err := schema.ScanRows(rows)
		rows.Close()
		if err != nil {
			return fmt.Errorf("failed to read %s rows: %w", plan.Role.Name, err)
		}
		for _, row := range accessors {
			key, ok := row.String(plan.RoleUserColumn)
			if !ok {
				continue
			}
			if id, exists := ownerByKey[key]; exists {
				if b := bundles[id]; b != nil && b.Role == nil {
					b.Role = row
				}
			}
		}
	}
	return nil
}

// DisplayName assembles a human-readable name from whichever name columns
// the users row carries.
func (b *SourceBundle) DisplayName() string {
	if b.User == nil {
		return ""
	}
	if name, ok := b.User.FirstString("name", "full_name", "fullname"); ok {
		return name
	}
	first, _ := b.User.String("first_name")
	last, _ := b.User.String("last_name")
	return strings.TrimSpace(first + " " + last)
}

// Email returns the account's email address when present.
func (b *SourceBundle) Email() string {
	if b.User == nil {
		return ""
	}
	email, _ := b.User.FirstString("email", "email_address")
	return email
}
