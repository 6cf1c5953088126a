package stage

import (
	"fmt"
	"strings"
)

// PageKey builds the object key for one raw page: grouped by creation
// month, named by creation date and page number. Dates use underscores so
// the key doubles as a safe file name.
func PageKey(dateCreated string, page int) string {
	date := strings.ReplaceAll(dateCreated, "-", "_")
	month := date[:min(7, len(date))]
	return fmt.Sprintf("raw/jobs/%s/%s_page_%d.json", month, date, page)
}
