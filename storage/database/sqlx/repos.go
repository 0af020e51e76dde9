package sqlxrepos

import (
	"github.com/lib/pq"
)

// pqStrArray adapts a string slice for ANY($n) placeholders.
func pqStrArray(vals []string) interface{} {
	return pq.Array(vals)
}

// isUniqueViolation reports whether err is a psql unique constraint breach.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code.Name() == "unique_violation"
	}
	return false
}
