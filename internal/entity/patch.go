package entity

import "encoding/json"

// Patch is a partial task update; nil fields are left untouched.
type Patch struct {
	Status   *Status
	Progress *float64
	Message  *string
	Result   json.RawMessage
	Error    *string
}

func StatusPtr(s Status) *Status { return &s }

func Float(f float64) *float64 { return &f }

func String(s string) *string { return &s }

// RawString encodes s as a JSON string payload.
func RawString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// RawJSON marshals v, falling back to its string form.
func RawJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return RawString(err.Error())
	}
	return b
}
