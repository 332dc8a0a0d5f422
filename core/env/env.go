// Package env holds the shell's variables.
package env

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

const (
	Home   = "HOME"
	PWD    = "PWD"
	OldPWD = "OLDPWD"
	Path   = "PATH"
)

// splitEntry splits "key=value", treating a missing '=' as an empty value.
func splitEntry(e string) (string, string) {
	split := strings.SplitN(e, "=", 2)
	key, value := split[0], ""
	if len(split) > 1 {
		value = split[1]
	}
	return key, value
}

// NewMapEnvFromEnvList creates an environment from "key=value" pairs such as
// os.Environ().
func NewMapEnvFromEnvList(environ []string) *MapEnv {
	out := &MapEnv{}
	for _, e := range environ {
		out.Setenv(splitEntry(e))
	}
	return out
}

// MapEnv is an in-memory environment. It's the shell's source of truth for
// variables; children receive a copy when they start.
type MapEnv struct {
	rw  sync.RWMutex
	env map[string]string
}

// Unsetenv removes a variable.
func (m *MapEnv) Unsetenv(key string) {
	m.rw.Lock()
	defer m.rw.Unlock()
	if m.env != nil {
		delete(m.env, key)
	}
}

// Setenv sets a variable.
func (m *MapEnv) Setenv(key, value string) {
	m.rw.Lock()
	defer m.rw.Unlock()

	if m.env == nil {
		m.env = make(map[string]string)
	}
	m.env[key] = value
}

// LookupEnv retrieves a variable and whether it was set.
func (m *MapEnv) LookupEnv(key string) (string, bool) {
	m.rw.RLock()
	defer m.rw.RUnlock()

	val, ok := m.env[key]
	return val, ok
}

// Getenv retrieves a variable, empty if unset.
func (m *MapEnv) Getenv(key string) string {
	val, _ := m.LookupEnv(key)
	return val
}

// ExpandEnv replaces $var and ${var} in s.
func (m *MapEnv) ExpandEnv(s string) string {
	return os.Expand(s, m.Getenv)
}

// Environ returns the variables as sorted "key=value" pairs.
func (m *MapEnv) Environ() []string {
	m.rw.RLock()
	defer m.rw.RUnlock()

	var env []string
	for k, v := range m.env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(env)
	return env
}

// ValidName reports whether name can be used as a variable name.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
