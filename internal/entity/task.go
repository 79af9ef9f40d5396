package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusError     Status = "error"
)

// legacy name older task documents use for running tasks
const statusProcessingAlias = "processing"

func ParseStatus(s string) (Status, error) {
	if s == statusProcessingAlias {
		return StatusRunning, nil
	}
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown task status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusError:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusError:
		return true
	case StatusPending, StatusRunning:
		return false
	}
	return false
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

const InitialMessage = "Task initialized"

type Task struct {
	ID          string          `json:"task_id"`
	Type        string          `json:"task_type"`
	Status      Status          `json:"status"`
	Progress    float64         `json:"progress"`
	Message     string          `json:"message"`
	Params      json.RawMessage `json:"params"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	Result      json.RawMessage `json:"result"`
	Error       *string         `json:"error"`
}

// UnmarshalJSON also accepts timestamps written as epoch seconds, which is
// how older task documents store them.
func (t *Task) UnmarshalJSON(b []byte) error {
	type plain Task
	var aux struct {
		plain
		CreatedAt   json.RawMessage `json:"created_at"`
		UpdatedAt   json.RawMessage `json:"updated_at"`
		CompletedAt json.RawMessage `json:"completed_at"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*t = Task(aux.plain)

	var err error
	if t.CreatedAt, _, err = parseTimestamp(aux.CreatedAt); err != nil {
		return fmt.Errorf("created_at: %w", err)
	}
	if t.UpdatedAt, _, err = parseTimestamp(aux.UpdatedAt); err != nil {
		return fmt.Errorf("updated_at: %w", err)
	}
	at, ok, err := parseTimestamp(aux.CompletedAt)
	if err != nil {
		return fmt.Errorf("completed_at: %w", err)
	}
	if ok {
		t.CompletedAt = &at
	}
	return nil
}

// naive ISO form without a zone; read as UTC
const isoNoZone = "2006-01-02T15:04:05.999999999"

// parseTimestamp reads an RFC 3339 string, a zoneless ISO string or a
// number of seconds since the epoch. ok is false for a missing or null value.
func parseTimestamp(raw json.RawMessage) (ts time.Time, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, false, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, false, err
		}
		if ts, err = time.Parse(time.RFC3339Nano, s); err == nil {
			return ts, true, nil
		}
		if ts, err = time.ParseInLocation(isoNoZone, s, time.UTC); err == nil {
			return ts, true, nil
		}
		return time.Time{}, false, fmt.Errorf("unsupported time %q", s)
	}

	secs, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("unsupported time %s", raw)
	}
	whole, frac := math.Modf(secs)
	ts = time.Unix(int64(whole), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC()
	return ts, true, nil
}

func NewTask(id, typ string, params json.RawMessage, now time.Time) Task {
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	return Task{
		ID:        id,
		Type:      typ,
		Status:    StatusPending,
		Message:   InitialMessage,
		Params:    cloneRaw(params),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (t Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// Clone returns a copy sharing no memory with t.
func (t Task) Clone() Task {
	c := t
	c.Params = cloneRaw(t.Params)
	c.Result = cloneRaw(t.Result)
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	if t.Error != nil {
		e := *t.Error
		c.Error = &e
	}
	return c
}

// ResultString unwraps a JSON string result; other payloads are returned raw.
func (t Task) ResultString() string {
	if len(t.Result) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(t.Result, &s); err == nil {
		return s
	}
	return string(t.Result)
}

func ClampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	out := make(json.RawMessage, len(r))
	copy(out, r)
	return out
}

// Normalize folds JSON null payloads read back from storage into nil and
// makes completed_at present exactly when the status is terminal.
func (t *Task) Normalize() {
	switch {
	case t.IsTerminal() && t.CompletedAt == nil:
		at := t.UpdatedAt
		t.CompletedAt = &at
	case !t.IsTerminal() && t.CompletedAt != nil:
		t.CompletedAt = nil
	}
	if isNullRaw(t.Result) {
		t.Result = nil
	}
	if len(t.Params) == 0 || isNullRaw(t.Params) {
		t.Params = json.RawMessage(`{}`)
	}
}

func isNullRaw(r json.RawMessage) bool {
	return r != nil && string(r) == "null"
}
