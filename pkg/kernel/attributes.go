package kernel

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Attributes is a free-form JSON object column
type Attributes map[string]any

// Scan implements sql.Scanner
func (a *Attributes) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Attributes{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("kernel: cannot scan %T into Attributes", src)
	}
	if len(raw) == 0 {
		*a = Attributes{}
		return nil
	}
	m := Attributes{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*a = m
	return nil
}

// Value implements driver.Valuer. It returns a string so that both jsonb and
// text columns accept it.
func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// String returns the string stored under key, or ""
func (a Attributes) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Bool returns the bool stored under key
func (a Attributes) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// Merge copies every key of other into a copy of a
func (a Attributes) Merge(other map[string]any) Attributes {
	out := make(Attributes, len(a)+len(other))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
