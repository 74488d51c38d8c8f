package types

import "encoding/json"

// NullableString is an optional string. It marshals to JSON null when absent, which is how
// optional fields such as an error subcode or a sub-flow name travel on the wire.
type NullableString struct {
	Value string
	Valid bool
}

// String returns the value, or an empty string when absent.
func (ns NullableString) String() string {
	if ns.Valid {
		return ns.Value
	}
	return ""
}

// IsNil reports whether the string is absent. A present but empty string counts as absent.
func (ns NullableString) IsNil() bool {
	return !ns.Valid || ns.Value == ""
}

// Set stores value and marks the string present.
func (ns *NullableString) Set(value string) {
	ns.Value = value
	ns.Valid = true
}

func (ns NullableString) MarshalJSON() ([]byte, error) {
	if ns.IsNil() {
		return []byte("null"), nil
	}
	return json.Marshal(ns.Value)
}

func (ns *NullableString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		ns.Value = ""
		ns.Valid = false
		return nil
	}
	ns.Valid = true
	return json.Unmarshal(data, &ns.Value)
}

// NullableStringFrom returns a present NullableString. An empty s yields an absent value.
func NullableStringFrom(s string) NullableString {
	return NullableString{Value: s, Valid: s != ""}
}

// NullString returns an absent NullableString.
func NullString() NullableString {
	return NullableString{}
}

var _ json.Marshaler = NullableString{}
var _ json.Unmarshaler = &NullableString{}
var _ Nullable = NullableString{}
