package core

import (
	"encoding/json"
	"math"
)

// NullFloat is a float64 that may be undefined, e.g. a ratio over a zero
// denominator or the prior value of the first period. It marshals to JSON null.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Some returns a defined value. Non-finite input yields an undefined value.
func Some(v float64) NullFloat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NullFloat{}
	}
	return NullFloat{Float64: v, Valid: true}
}

// Null is the undefined value.
var Null = NullFloat{}

// SafeDivide returns num/den, undefined when den is zero or the result is not finite.
func SafeDivide(num, den float64) NullFloat {
	if den == 0 {
		return Null
	}
	return Some(num / den)
}

// Or returns the value or def when undefined.
func (n NullFloat) Or(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.Float64
}

func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

func (n *NullFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = Null
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Some(v)
	return nil
}
