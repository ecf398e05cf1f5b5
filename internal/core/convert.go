package core

import "strings"

// CleanCell removes common spreadsheet export artifacts from a cell value:
// - Trims whitespace
// - Removes the Excel text-formula wrapper (="...") or a bare leading '='
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// IsBlankRow reports whether every cell is empty after cleaning.
func IsBlankRow(cells []string) bool {
	for _, v := range cells {
		if CleanCell(v) != "" {
			return false
		}
	}
	return true
}
