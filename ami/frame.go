// Package ami provides the manager-protocol client for the PBX: frame
// parsing, action correlation, and the resilient socket component.
package ami

import (
	"bytes"
	"strings"
)

// Field is a single "Key: value" line within a frame. Order and duplicates
// are preserved because some events repeat keys (channel variables).
type Field struct {
	Key   string
	Value string
}

// Frame is one blank-line-delimited protocol frame: an ordered list of
// key/value fields.
type Frame struct {
	fields []Field
}

// NewFrame creates an empty frame.
func NewFrame() *Frame {
	return &Frame{}
}

// Add appends a field, preserving order and duplicates.
func (f *Frame) Add(key, value string) {
	f.fields = append(f.fields, Field{Key: key, Value: value})
}

// Get returns the value of the first field whose key matches, ignoring case.
// Returns "" when the key is absent.
func (f *Frame) Get(key string) string {
	for _, fld := range f.fields {
		if strings.EqualFold(fld.Key, key) {
			return fld.Value
		}
	}
	return ""
}

// Has reports whether a field with the given key exists, ignoring case.
func (f *Frame) Has(key string) bool {
	for _, fld := range f.fields {
		if strings.EqualFold(fld.Key, key) {
			return true
		}
	}
	return false
}

// GetAll returns the values of every field whose key matches, ignoring case,
// in frame order.
func (f *Frame) GetAll(key string) []string {
	var values []string
	for _, fld := range f.fields {
		if strings.EqualFold(fld.Key, key) {
			values = append(values, fld.Value)
		}
	}
	return values
}

// Fields returns the ordered field list. The returned slice is shared with
// the frame; callers must not modify it.
func (f *Frame) Fields() []Field {
	return f.fields
}

// Len returns the number of fields in the frame.
func (f *Frame) Len() int {
	return len(f.fields)
}

// ActionID returns the correlation identifier, or "" when absent.
func (f *Frame) ActionID() string {
	return f.Get("ActionID")
}

// EventName returns the value of the Event field, or "" for non-events.
func (f *Frame) EventName() string {
	return f.Get("Event")
}

// IsSuccess reports whether a response frame carries "Response: Success".
// The comparison ignores case; any other value (Error, Follows) is not
// treated as success.
func (f *Frame) IsSuccess() bool {
	return strings.EqualFold(f.Get("Response"), "Success")
}

// Message returns the human-readable Message field, or "" when absent.
func (f *Frame) Message() string {
	return f.Get("Message")
}

// Map flattens the frame into a map for JSON serialization. The first value
// wins for duplicate keys; fields with empty keys (unparseable lines) are
// skipped.
func (f *Frame) Map() map[string]string {
	m := make(map[string]string, len(f.fields))
	for _, fld := range f.fields {
		if fld.Key == "" {
			continue
		}
		if _, exists := m[fld.Key]; !exists {
			m[fld.Key] = fld.Value
		}
	}
	return m
}

// Action is an outgoing request frame under construction.
type Action struct {
	name   string
	fields []Field
}

// NewAction creates an action with the given name (Login, Originate, ...).
func NewAction(name string) *Action {
	return &Action{name: name}
}

// Name returns the action name.
func (a *Action) Name() string {
	return a.name
}

// Set appends a field to the action and returns the action for chaining.
func (a *Action) Set(key, value string) *Action {
	a.fields = append(a.fields, Field{Key: key, Value: value})
	return a
}

// ActionID returns the correlation identifier set on the action, or "".
func (a *Action) ActionID() string {
	for _, fld := range a.fields {
		if strings.EqualFold(fld.Key, "ActionID") {
			return fld.Value
		}
	}
	return ""
}

// Marshal serializes the action to wire format: CRLF-terminated field lines
// followed by the blank-line frame terminator.
func (a *Action) Marshal() []byte {
	var buf bytes.Buffer
	buf.WriteString("Action: ")
	buf.WriteString(a.name)
	buf.WriteString("\r\n")
	for _, fld := range a.fields {
		buf.WriteString(fld.Key)
		buf.WriteString(": ")
		buf.WriteString(fld.Value)
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}
