package types

import (
	"bytes"
	"encoding/json"
)

// FoodRow is one record of the nutrition catalog. Columns is shared by all
// rows of a catalog and keeps the file's header order.
type FoodRow struct {
	Columns []string
	Values  []string
}

// Get returns the value of the named column.
func (r FoodRow) Get(column string) (string, bool) {
	for i, c := range r.Columns {
		if c == column {
			if i < len(r.Values) {
				return r.Values[i], true
			}
			return "", true
		}
	}
	return "", false
}

// MarshalJSON encodes the row as an object with keys in column order.
func (r FoodRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		var v string
		if i < len(r.Values) {
			v = r.Values[i]
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
