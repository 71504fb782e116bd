package simpleregistry

import "net/url"

// Envelope is an immutable set of protocol metadata fields. Only fields that
// were present in the request are recorded, so absence stays observable.
type Envelope struct {
	fields map[string]string
}

// NewEnvelope captures the named fields from values in one step. When no
// names are given every field in values is captured.
func NewEnvelope(values url.Values, names ...string) Envelope {
	fields := make(map[string]string)
	if len(names) == 0 {
		for name := range values {
			fields[name] = values.Get(name)
		}
		return Envelope{fields: fields}
	}
	for _, name := range names {
		if values.Has(name) {
			fields[name] = values.Get(name)
		}
	}
	return Envelope{fields: fields}
}

// Lookup returns the field value and whether it was present
func (e Envelope) Lookup(name string) (string, bool) {
	v, ok := e.fields[name]
	return v, ok
}

// Value returns the field value, empty when absent
func (e Envelope) Value(name string) string {
	return e.fields[name]
}

// Has reports whether the field was present
func (e Envelope) Has(name string) bool {
	_, ok := e.fields[name]
	return ok
}

// Len returns the number of present fields
func (e Envelope) Len() int {
	return len(e.fields)
}

// Fields returns a copy of the present fields
func (e Envelope) Fields() map[string]string {
	out := make(map[string]string, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out
}
