package env

import (
	"fmt"
	"os"
)

// LookupFunc reports the value of a named setting and whether it was present.
type LookupFunc func(name string) (string, bool)

// MissingError is returned by Require when a required setting is absent or empty.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("Missing %s. Set %s environment variable.", e.Name, e.Name)
}

// Resolver reads named settings through Lookup. A zero Resolver reads the OS environment.
type Resolver struct {
	Lookup LookupFunc
}

func (r Resolver) lookup(name string) (string, bool) {
	if r.Lookup == nil {
		return os.LookupEnv(name)
	}
	return r.Lookup(name)
}

// Get returns the value of name, or def when it is not set. It never fails.
func (r Resolver) Get(name, def string) string {
	if v, ok := r.lookup(name); ok {
		return v
	}
	return def
}

// Require returns the value of name, or a *MissingError when it is absent or empty.
func (r Resolver) Require(name string) (string, error) {
	v, ok := r.lookup(name)
	if !ok || v == "" {
		return "", &MissingError{Name: name}
	}
	return v, nil
}
