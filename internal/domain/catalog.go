package domain

import "strings"

// FallbackActivity is the reserved catch-all activity name.
const FallbackActivity = "Miscellaneous"

// ActivityName is a standardized activity category.
type ActivityName struct {
	ID   string
	Name string
	// Keywords is the raw comma-separated keyword field.
	Keywords string
	Active   bool
}

// KeywordList splits Keywords into trimmed, lower-cased, non-empty tokens.
func (a ActivityName) KeywordList() []string {
	parts := strings.Split(a.Keywords, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		kw := strings.ToLower(strings.TrimSpace(part))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// IsFallback reports whether this is the reserved Miscellaneous entry.
func (a ActivityName) IsFallback() bool {
	return strings.EqualFold(strings.TrimSpace(a.Name), FallbackActivity)
}

// SuccessIndicator is a unit-defined performance criterion.
type SuccessIndicator struct {
	ID          string
	UnitID      string
	Code        string
	Description string
	// ActivityID and ActivityName are empty when the indicator is not linked.
	ActivityID   string
	ActivityName string
	Active       bool
}

// MatchName is the activity name records must resolve to in order to count
// toward this indicator. Unlinked indicators match on their code.
func (s SuccessIndicator) MatchName() string {
	if s.ActivityID != "" && s.ActivityName != "" {
		return s.ActivityName
	}
	return s.Code
}

// Label renders "CODE - description", or the code alone.
func (s SuccessIndicator) Label() string {
	desc := strings.TrimSpace(s.Description)
	if desc == "" || desc == s.Code {
		return s.Code
	}
	return s.Code + " - " + desc
}

// SameActivity compares two activity names the way matching does.
func SameActivity(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
