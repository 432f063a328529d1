package models

import (
	"bytes"
	"encoding/json"
)

// Record is one generated record: an ordered mapping from field name to a
// typed value. It is built once per tick and never mutated afterwards.
type Record struct {
	names  []string
	values map[string]any
}

// NewRecord creates an empty record with capacity for n fields.
func NewRecord(n int) *Record {
	return &Record{
		names:  make([]string, 0, n),
		values: make(map[string]any, n),
	}
}

// Set appends a field. Field order is the order of Set calls.
func (r *Record) Set(name string, value any) {
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = value
}

// Get returns the value of the named field.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Fields returns the field names in declaration order.
func (r *Record) Fields() []string {
	return r.names
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.names)
}

// MarshalJSON emits a JSON object with keys in declaration order. The stdlib
// map marshalling sorts keys, which would break the wire format.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(r.values[name])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
