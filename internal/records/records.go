// Package records defines the raw row representation shared by the parser
// and the normalizer.
package records

// Record is one parsed input row: column name -> raw value. The CSV parser
// stores string values and nil for empty cells; downstream stages replace
// values with typed ones or reject the row entirely.
type Record map[string]any

// String returns the value for key as a string, or "" when the value is
// missing, nil, or not a string.
func (r Record) String(key string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Has reports whether key is present with a non-nil value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}
