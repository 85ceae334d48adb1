// Package ptrx has small helpers for the optional columns and form fields
// modelled as pointers.
package ptrx

import "time"

// Of returns a pointer to v
func Of[T any](v T) *T {
	return &v
}

// Value returns the value of the pointer passed in or the zero value if the pointer is nil.
func Value[T any](v *T) T {
	if v != nil {
		return *v
	}
	var zero T
	return zero
}

// ValueOr returns the value of the pointer passed in or the default value if the pointer is nil.
func ValueOr[T any](v *T, def T) T {
	if v != nil {
		return *v
	}
	return def
}

func String(v string) *string      { return &v }
func Int(v int) *int               { return &v }
func Bool(v bool) *bool            { return &v }
func Time(v time.Time) *time.Time  { return &v }
func StringValue(v *string) string { return Value(v) }
func IntValue(v *int) int          { return Value(v) }
func BoolValueOr(v *bool, def bool) bool {
	return ValueOr(v, def)
}

// NonEmpty returns nil for "" so optional text columns stay NULL
func NonEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// After reports whether t is set and after ref
func After(t *time.Time, ref time.Time) bool {
	return t != nil && t.After(ref)
}
