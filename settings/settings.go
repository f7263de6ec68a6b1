// Package settings provides the environment-shaped configuration loader
// every Application reads from (spec §4.6) and a Vault-backed SecretManager
// for values that should never live in plain environment variables.
package settings

import (
	"os"
	"strconv"
	"strings"
)

// Env is a read-only view over configuration key/value pairs, layered the
// same way eventsourcing.application.Application.construct_env layers its
// env: explicit overrides first, then the process environment filling in
// anything not already set.
type Env struct {
	values map[string]string
}

// New builds an Env from explicit overrides, then fills in any key not
// already present from os.Environ().
func New(overrides map[string]string) *Env {
	values := make(map[string]string, len(overrides))
	for k, v := range overrides {
		values[k] = v
	}
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if _, exists := values[parts[0]]; !exists {
			values[parts[0]] = parts[1]
		}
	}
	return &Env{values: values}
}

// Get returns the raw string value for key, and whether it was set at all.
func (e *Env) Get(key string) (string, bool) {
	v, ok := e.values[key]
	return v, ok
}

// GetString returns key's value, or fallback if unset.
func (e *Env) GetString(key, fallback string) string {
	if v, ok := e.values[key]; ok {
		return v
	}
	return fallback
}

// GetInt parses key's value as an integer, or returns fallback if unset or
// unparseable.
func (e *Env) GetInt(key string, fallback int) int {
	v, ok := e.values[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// GetBool parses key's value the way the original implementation treats
// IS_SNAPSHOTTING_ENABLED and similar flags: "y", "yes", "t", "true", "on",
// "1" (case-insensitive) are truthy; everything else, including unset, is
// false.
func (e *Env) GetBool(key string) bool {
	v, ok := e.values[key]
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "y", "yes", "t", "true", "on", "1":
		return true
	default:
		return false
	}
}
