package currentrms

import (
	"bytes"
	"strconv"
	"strings"
)

// Money is a monetary amount as the Current RMS API emits it: inconsistently
// a JSON number, a numeric string, or null. Decoding never fails: null,
// absent, and non-numeric values all coerce to 0. This is the single place
// where the "unknown financials are zero-valued" policy lives; downstream
// arithmetic works on plain float64s via Float.
type Money float64

// UnmarshalJSON accepts a JSON number, a numeric string, or null.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}

	s := string(data)
	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2 {
		s = s[1 : len(s)-1]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*m = 0
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*m = 0
		return nil
	}
	*m = Money(f)
	return nil
}

// MarshalJSON always emits a plain JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(m), 'f', -1, 64)), nil
}

// Float returns the amount as a float64.
func (m Money) Float() float64 {
	return float64(m)
}
