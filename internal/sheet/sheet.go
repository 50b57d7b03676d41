// Package sheet renders IPMT rows into Excel workbooks.
package sheet

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Line is one rendered row: indicator label, accomplishment, remarks.
type Line struct {
	Indicator   string
	Description string
	Remarks     string
}

// MaxSheetName is the Excel limit on worksheet name length.
const MaxSheetName = 31

// Unassigned names a sheet whose person name is empty.
const Unassigned = "Unassigned"

var sheetNameReplacer = strings.NewReplacer(
	":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")",
)

// SheetName turns a display name into a valid worksheet name.
func SheetName(name string) string {
	name = strings.TrimSpace(sheetNameReplacer.Replace(name))
	name = strings.Trim(name, "'")
	if utf8.RuneCountInString(name) > MaxSheetName {
		name = strings.TrimSpace(string([]rune(name)[:MaxSheetName]))
	}
	if name == "" {
		return Unassigned
	}
	return name
}

// uniqueName suffixes name with " (n)" until it is not in used.
func uniqueName(name string, used map[string]struct{}) string {
	candidate := name
	for n := 2; ; n++ {
		if _, taken := used[strings.ToLower(candidate)]; !taken {
			used[strings.ToLower(candidate)] = struct{}{}
			return candidate
		}
		suffix := " (" + strconv.Itoa(n) + ")"
		base := []rune(name)
		if len(base)+utf8.RuneCountInString(suffix) > MaxSheetName {
			base = base[:MaxSheetName-utf8.RuneCountInString(suffix)]
		}
		candidate = strings.TrimSpace(string(base)) + suffix
	}
}
