package env

import (
	"os"
	"sort"
	"strings"
)

// Var is a set of environment variables keyed by name.
type Var map[string]string

// Env composes a child process environment from the parent environment
// and a set of overrides.
type Env struct {
	Var Var // overrides (K->V)
	env Var // cached base from OS environment
}

func New() *Env {
	return &Env{
		Var: make(Var),
	}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	e.env = parse(os.Environ())
}

// FromList uses kv ("K=V" entries) as the base instead of the OS environment.
func (e *Env) FromList(kv []string) {
	e.env = parse(kv)
}

// Set sets an override K=V.
func (e *Env) Set(k, v string) {
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// Merge renders the final environment: the base (OS env unless FromList was
// called) with overrides applied last. The result is sorted by key.
func (e *Env) Merge() []string {
	if e.env == nil {
		e.FromOS()
	}
	m := make(Var, len(e.env)+len(e.Var))
	for k, v := range e.env {
		m[k] = v
	}
	for k, v := range e.Var {
		if k == "" {
			continue
		}
		m[k] = v
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+m[k])
	}
	return out
}

func parse(kv []string) Var {
	base := make(Var, len(kv))
	for _, item := range kv {
		if i := strings.IndexByte(item, '='); i >= 0 {
			k := item[:i]
			if k == "" {
				continue
			}
			base[k] = item[i+1:]
		}
	}
	return base
}
