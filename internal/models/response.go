package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

type valueKind uint8

const (
	valueNull valueKind = iota
	valueText
	valueList
)

// ResponseValue holds one answer: a string, a list of strings, or nothing.
type ResponseValue struct {
	kind valueKind
	text string
	list []string
}

func TextValue(s string) ResponseValue { return ResponseValue{kind: valueText, text: s} }

func ListValue(items ...string) ResponseValue {
	return ResponseValue{kind: valueList, list: append([]string(nil), items...)}
}

func NullValue() ResponseValue { return ResponseValue{} }

func (v ResponseValue) IsNull() bool { return v.kind == valueNull }

func (v ResponseValue) Text() (string, bool) { return v.text, v.kind == valueText }

func (v ResponseValue) List() ([]string, bool) {
	if v.kind != valueList {
		return nil, false
	}
	return append([]string(nil), v.list...), true
}

// String renders the value for humans: lists are comma separated, null is empty.
func (v ResponseValue) String() string {
	switch v.kind {
	case valueText:
		return v.text
	case valueList:
		return strings.Join(v.list, ", ")
	}
	return ""
}

func (v ResponseValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case valueText:
		return json.Marshal(v.text)
	case valueList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts strings, string arrays and null. Numbers and
// booleans from older clients are kept as their text form.
func (v *ResponseValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = NullValue()
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = TextValue(s)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		items := make([]string, 0, len(raw))
		for _, r := range raw {
			var s string
			if err := json.Unmarshal(r, &s); err != nil {
				items = append(items, string(bytes.TrimSpace(r)))
				continue
			}
			items = append(items, s)
		}
		*v = ResponseValue{kind: valueList, list: items}
	case '{':
		return fmt.Errorf("models: response value cannot be an object")
	default:
		*v = TextValue(string(b))
	}
	return nil
}

type Response struct {
	FieldID string        `json:"field_id"`
	Label   string        `json:"label"`
	Value   ResponseValue `json:"value"`
}

const (
	moodFieldID       = "mood"
	summaryMaxRunes   = 160
	summaryEllipsis   = "…"
	summaryFieldIDTag = "summary"
)

// DeriveMood returns the answer of the "mood" field, if any.
func DeriveMood(responses []Response) *string {
	for _, r := range responses {
		if !strings.EqualFold(r.FieldID, moodFieldID) {
			continue
		}
		s := strings.TrimSpace(r.Value.String())
		if s == "" {
			return nil
		}
		return &s
	}
	return nil
}

// DeriveSummary prefers an explicit "summary" field and otherwise uses the
// first non-empty free-text answer, truncated.
func DeriveSummary(responses []Response) string {
	for _, r := range responses {
		if strings.EqualFold(r.FieldID, summaryFieldIDTag) {
			if s := strings.TrimSpace(r.Value.String()); s != "" {
				return truncateRunes(s, summaryMaxRunes)
			}
		}
	}
	for _, r := range responses {
		if strings.EqualFold(r.FieldID, moodFieldID) {
			continue
		}
		if s, ok := r.Value.Text(); ok && strings.TrimSpace(s) != "" {
			return truncateRunes(strings.TrimSpace(s), summaryMaxRunes)
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + summaryEllipsis
}
