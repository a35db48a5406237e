package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Float is an optional price or indicator value. The zero value is unknown.
//
// Unknown values replace NaN everywhere in the pipeline so that comparisons
// never silently evaluate to false on missing data.
type Float struct {
	v  float64
	ok bool
}

// None is the unknown value.
var None = Float{}

// Some wraps a known value. NaN and ±Inf collapse to unknown.
func Some(v float64) Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return None
	}
	return Float{v: v, ok: true}
}

// Get returns the value and whether it is known.
func (f Float) Get() (float64, bool) { return f.v, f.ok }

// Valid reports whether the value is known.
func (f Float) Valid() bool { return f.ok }

// Or returns the value, or def when unknown.
func (f Float) Or(def float64) float64 {
	if !f.ok {
		return def
	}
	return f.v
}

func (f Float) String() string {
	if !f.ok {
		return "NA"
	}
	return strconv.FormatFloat(f.v, 'f', -1, 64)
}

// MarshalJSON encodes unknown as null.
func (f Float) MarshalJSON() ([]byte, error) {
	if !f.ok {
		return []byte("null"), nil
	}
	return json.Marshal(f.v)
}

// UnmarshalJSON accepts a number or null.
func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = None
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Some(v)
	return nil
}

// Scan implements sql.Scanner so nullable REAL columns map onto Float.
func (f *Float) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = None
	case float64:
		*f = Some(v)
	case int64:
		*f = Some(float64(v))
	case []byte:
		return f.parse(string(v))
	case string:
		return f.parse(v)
	default:
		return fmt.Errorf("model.Float: cannot scan %T", src)
	}
	return nil
}

func (f *Float) parse(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("model.Float: %w", err)
	}
	*f = Some(v)
	return nil
}

// Value implements driver.Valuer.
func (f Float) Value() (driver.Value, error) {
	if !f.ok {
		return nil, nil
	}
	return f.v, nil
}
