package simpleregistry

import (
	"strings"
	"sync"
)

// AllowLists is a registration table of accepted values per protocol field
type AllowLists struct {
	mu    sync.RWMutex
	lists map[string][]string
}

// NewAllowLists creates an empty table
func NewAllowLists() *AllowLists {
	return &AllowLists{lists: make(map[string][]string)}
}

// Register adds accepted values for a field, keeping registration order
func (a *AllowLists) Register(field string, values ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	existing := a.lists[field]
	for _, v := range values {
		if v == "" || contains(existing, v) {
			continue
		}
		existing = append(existing, v)
	}
	a.lists[field] = existing
}

// Values returns a copy of the accepted values for a field
func (a *AllowLists) Values(field string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return append([]string(nil), a.lists[field]...)
}

// Validate returns a *ValidationError unless value is accepted for field.
// Empty and blank values are never accepted.
func (a *AllowLists) Validate(field, value string) error {
	allowed := a.Values(field)
	if strings.TrimSpace(value) == "" || !contains(allowed, value) {
		return &ValidationError{Field: field, Value: value, Allowed: allowed}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
