// Package record provides the ordered JSON object type exchanged with the
// AJAX API, along with field projection and template lookups.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotObject is returned when a Record is decoded from JSON that is not an object.
var ErrNotObject = errors.New("record: json value is not an object")

// Record is a JSON object whose field order is preserved.
// The zero value is an empty record ready to use.
type Record struct {
	keys   []string
	values map[string]json.RawMessage
}

// Of builds a record from alternating name/value pairs. Values are encoded
// with encoding/json. It panics on an odd argument count, a non-string name
// or an unencodable value, so it is meant for literals and tests.
func Of(pairs ...any) Record {
	if len(pairs)%2 != 0 {
		panic("record.Of: odd number of arguments")
	}
	var r Record
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("record.Of: field name %v is not a string", pairs[i]))
		}
		raw, err := json.Marshal(pairs[i+1])
		if err != nil {
			panic(fmt.Sprintf("record.Of: field %q: %v", name, err))
		}
		r.Set(name, raw)
	}
	return r
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.keys)
}

// Keys returns the field names in order.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Get returns the raw JSON value of a field.
func (r Record) Get(name string) (json.RawMessage, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Set stores a field. A new field is appended; an existing field keeps its
// position. The value must be valid JSON and is stored compacted.
func (r *Record) Set(name string, value json.RawMessage) {
	if r.values == nil {
		r.values = make(map[string]json.RawMessage)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err == nil {
		value = buf.Bytes()
	}
	if _, exists := r.values[name]; !exists {
		r.keys = append(r.keys, name)
	}
	r.values[name] = value
}

// Project narrows the record to the requested fields, keeping the record's
// own field order. Requested fields the record lacks are skipped. An empty
// field list returns the record unchanged.
func (r Record) Project(fields []string) Record {
	if len(fields) == 0 {
		return r
	}
	wanted := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		wanted[f] = struct{}{}
	}

	out := Record{values: make(map[string]json.RawMessage)}
	for _, k := range r.keys {
		if _, ok := wanted[k]; ok {
			out.keys = append(out.keys, k)
			out.values[k] = r.values[k]
		}
	}
	return out
}

// Equal reports whether both records hold the same fields, in the same
// order, with the same compacted values.
func (r Record) Equal(other Record) bool {
	if len(r.keys) != len(other.keys) {
		return false
	}
	for i, k := range r.keys {
		if other.keys[i] != k {
			return false
		}
		if !bytes.Equal(r.values[k], other.values[k]) {
			return false
		}
	}
	return true
}

// Lookup resolves a field by name. When no field carries the exact name and
// the name is dotted ("shipping.city"), it descends into nested objects.
func (r Record) Lookup(name string) (json.RawMessage, bool) {
	if v, ok := r.values[name]; ok {
		return v, true
	}
	head, rest, dotted := strings.Cut(name, ".")
	if !dotted {
		return nil, false
	}
	v, ok := r.values[head]
	if !ok {
		return nil, false
	}
	var nested Record
	if err := json.Unmarshal(v, &nested); err != nil {
		return nil, false
	}
	return nested.Lookup(rest)
}

// Text renders a field as plain text: strings unquoted, numbers and
// booleans verbatim, null as empty, objects and arrays as compact JSON.
// Missing fields render as the empty string.
func (r Record) Text(name string) string {
	v, ok := r.Lookup(name)
	if !ok {
		return ""
	}
	return rawText(v)
}

func rawText(v json.RawMessage) string {
	switch {
	case len(v) == 0, bytes.Equal(v, []byte("null")):
		return ""
	case v[0] == '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return string(v)
		}
		return s
	default:
		return string(v)
	}
}

// MarshalJSON implements json.Marshaler, writing fields in order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(r.values[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping the document's field order.
// Duplicate names keep their first position and last value. A JSON null
// decodes as an empty record.
func (r *Record) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = Record{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ErrNotObject
	}

	out := Record{values: make(map[string]json.RawMessage)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record: unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("record: field %q: %w", name, err)
		}
		out.Set(name, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = out
	return nil
}

// String returns the compact JSON form of the record.
func (r Record) String() string {
	b, _ := r.MarshalJSON()
	return string(b)
}
