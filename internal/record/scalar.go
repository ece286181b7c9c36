package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Scalar is one nullable entry of a metric series. The zero value is null.
type Scalar struct {
	Value float64
	Valid bool
}

// Num returns a non-null Scalar.
func Num(v float64) Scalar { return Scalar{Value: v, Valid: true} }

// Float returns the value and whether it is present.
func (s Scalar) Float() (float64, bool) { return s.Value, s.Valid }

// String renders the value, or "null".
func (s Scalar) String() string {
	if !s.Valid {
		return "null"
	}
	return formatFloat(s.Value)
}

// MarshalJSON writes null or a number; non-finite values are quoted.
func (s Scalar) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return jsonFloat(s.Value).MarshalJSON()
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = Scalar{}
		return nil
	}
	var f jsonFloat
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	*s = Num(float64(f))
	return nil
}

// jsonFloat encodes NaN and the infinities as strings, which plain JSON
// numbers cannot carry.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *jsonFloat) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode float: %w", err)
		}
		switch s {
		case "NaN":
			*f = jsonFloat(math.NaN())
		case "+Inf":
			*f = jsonFloat(math.Inf(1))
		case "-Inf":
			*f = jsonFloat(math.Inf(-1))
		default:
			return fmt.Errorf("decode float: unexpected string %q", s)
		}
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("decode float: %w", err)
	}
	*f = jsonFloat(v)
	return nil
}

// formatFloat prints the shortest representation that parses back to v.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
