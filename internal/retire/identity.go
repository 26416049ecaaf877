package retire

import (
	"strconv"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/schema"
)

// ResolveAlternateID returns the best available secondary identifier for an
// account. Role-specific relationship tables are often keyed by a formatted
// staff code rather than the numeric account id; the candidate columns are
// tried in priority order against the role row, and the primary id (as a
// string) is the fallback when none is populated.
//
// Empty and whitespace-only values count as absent.
func ResolveAlternateID(primaryID int64, roleRow *schema.RowAccessor, candidates []string) string {
	if roleRow != nil {
		if alt, ok := roleRow.FirstString(candidates...); ok {
			return alt
		}
	}
	return strconv.FormatInt(primaryID, 10)
}
