package types

import "fmt"

// Column is one column of a destination table.
type Column struct {
	Name     string `json:"name"`
	Nullable bool   `json:"nullable"`
}

// TableSchema is the declared shape of a destination table.
// Columns are ordered; PrimaryKey names one of them.
type TableSchema struct {
	Name       string   `json:"name"`
	Columns    []Column `json:"columns"`
	PrimaryKey string   `json:"primary_key"`
}

// ColumnNames returns the column names in declaration order.
func (s TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (s TableSchema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Validate checks the schema is usable for table creation.
func (s TableSchema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("table schema has no name")
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", s.Name)
	}

	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("table %s has a column with no name", s.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s declares column %s twice", s.Name, c.Name)
		}
		seen[c.Name] = true
	}

	if s.PrimaryKey != "" {
		pk, ok := s.Column(s.PrimaryKey)
		if !ok {
			return fmt.Errorf("table %s: primary key %s is not a declared column", s.Name, s.PrimaryKey)
		}
		if pk.Nullable {
			return fmt.Errorf("table %s: primary key %s must not be nullable", s.Name, s.PrimaryKey)
		}
	}
	return nil
}
