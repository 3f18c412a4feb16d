// Package schema defines the column contract for an entity load: the declared
// columns, their logical types, nullability, and which columns form the
// identity key.
package schema

import (
	"fmt"
	"strings"
	"time"
)

// Field describes one declared column.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // "int" | "text" | "date"
	Nullable bool   `json:"nullable,omitempty"`
	Key      bool   `json:"key,omitempty"` // part of the identity key

	// FillNow marks a date column whose missing or unparsable values are
	// replaced with the processing timestamp. The last-update column behaves
	// this way whether or not the flag is set.
	FillNow bool `json:"fill_now,omitempty"`

	// EmptyIsNull controls text columns: when true an empty string is stored
	// as NULL, otherwise it is kept as "".
	EmptyIsNull bool `json:"empty_is_null,omitempty"`
}

// Contract is the full column specification for one target table.
type Contract struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`

	// LastUpdateColumn names the date column that carries record freshness.
	LastUpdateColumn string `json:"last_update_column"`

	// DateLayouts is the ordered list of accepted date formats; the first
	// successful parse wins.
	DateLayouts []string `json:"date_layouts,omitempty"`

	// HeaderMap maps source CSV headers to canonical column names.
	HeaderMap map[string]string `json:"header_map,omitempty"`
}

// DefaultDateLayouts are tried when a contract declares none.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02.01.2006",
	time.RFC3339,
}

// KeyColumns returns the names of the identity-key columns in declaration order.
func (c Contract) KeyColumns() []string {
	var keys []string
	for _, f := range c.Fields {
		if f.Key {
			keys = append(keys, f.Name)
		}
	}
	return keys
}

// Columns returns all declared column names in declaration order.
func (c Contract) Columns() []string {
	cols := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		cols[i] = f.Name
	}
	return cols
}

// Field returns the declaration for name, or false when name is not declared.
func (c Contract) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Layouts returns the contract's date layouts, falling back to the defaults.
func (c Contract) Layouts() []string {
	if len(c.DateLayouts) > 0 {
		return c.DateLayouts
	}
	return DefaultDateLayouts
}

// Validate checks structural sanity: at least one field, at least one key
// column, a declared last-update column of type date, and no duplicate names.
func (c Contract) Validate() error {
	if len(c.Fields) == 0 {
		return fmt.Errorf("contract %q: at least one field required", c.Name)
	}
	seen := map[string]struct{}{}
	for _, f := range c.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("contract %q: field with empty name", c.Name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("contract %q: duplicate field %q", c.Name, name)
		}
		seen[name] = struct{}{}
		switch f.Type {
		case "int", "text", "date":
		default:
			return fmt.Errorf("contract %q: field %q has unknown type %q", c.Name, name, f.Type)
		}
	}
	if len(c.KeyColumns()) == 0 {
		return fmt.Errorf("contract %q: no identity-key column declared", c.Name)
	}
	lu, ok := c.Field(c.LastUpdateColumn)
	if !ok {
		return fmt.Errorf("contract %q: last_update_column %q is not declared", c.Name, c.LastUpdateColumn)
	}
	if lu.Type != "date" {
		return fmt.Errorf("contract %q: last_update_column %q must be a date column", c.Name, c.LastUpdateColumn)
	}
	return nil
}
