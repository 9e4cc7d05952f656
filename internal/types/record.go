package types

// RawRecord is one data line of a delimited file, positionally mapped to a declared column list.
type RawRecord struct {
	// Line is the 1-based line number in the source file.
	Line   int
	Fields []string
}

// Value returns the field at position i, or "" when out of range.
func (r RawRecord) Value(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// Map pairs the fields with the given column names.
func (r RawRecord) Map(columns []string) map[string]string {
	m := make(map[string]string, len(columns))
	for i, col := range columns {
		m[col] = r.Value(i)
	}
	return m
}
