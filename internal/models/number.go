package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Number decodes a JSON number that the lab backend may encode as a string.
type Number float64

// UnmarshalJSON accepts 12, 12.5, "12", "" and null.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*n = Number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Number(v)
	return nil
}

// Float returns n as a float64.
func (n Number) Float() float64 { return float64(n) }

// Int returns n truncated to an int.
func (n Number) Int() int { return int(n) }
