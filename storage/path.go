package storage

import "fmt"

const stepWidth = 10

// formatStep renders one materialized-path segment. Fixed width keeps prefix
// matches from crossing siblings (000001 never prefixes 000012).
func formatStep(id int64) string {
	return fmt.Sprintf("%0*d", stepWidth, id)
}

// childPath extends a materialized path with the step for id.
func childPath(parentPath string, id int64) string {
	return parentPath + formatStep(id)
}
