// Package config holds the dot-keyed settings map shared by the config stores.
package config

import (
	"maps"
	"slices"
	"strings"
	"sync"
)

// Values is a flat view of docqa settings keyed by dotted names such as
// "rag.chunk_size" or "history.redis_addr". It is safe for concurrent use.
type Values struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewValues returns an empty settings map.
func NewValues() *Values {
	return &Values{m: make(map[string]any)}
}

// Get returns the raw value stored under key.
func (v *Values) Get(key string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.m[key]
	return val, ok
}

// Put stores value under key.
func (v *Values) Put(key string, value any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.m[key] = value
}

// Replace swaps the whole map for m, which is flattened first.
func (v *Values) Replace(m map[string]any) {
	flat := Flatten(m)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.m = flat
}

// GetString returns the string under key, or "" when it is missing or not a string.
func (v *Values) GetString(key string) string {
	val, _ := v.Get(key)
	str, _ := val.(string)
	return str
}

// GetInt returns the integer under key. TOML decodes integers as int64 and
// JSON as float64, so both are accepted.
func (v *Values) GetInt(key string) int {
	val, _ := v.Get(key)
	switch n := val.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// GetFloat returns the number under key. Integers are widened, since TOML
// writes a temperature of 1.0 set from code as 1.
func (v *Values) GetFloat(key string) float64 {
	val, _ := v.Get(key)
	switch n := val.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// GetBool returns the boolean under key, or false.
func (v *Values) GetBool(key string) bool {
	val, _ := v.Get(key)
	b, _ := val.(bool)
	return b
}

// GetStringSlice returns the strings under key. Non-string items of a
// decoded array are skipped.
func (v *Values) GetStringSlice(key string) []string {
	val, _ := v.Get(key)
	switch items := val.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// Nested regroups the dotted keys into tables, so "rag.chunk_size" is
// written under [rag]. A key whose prefix is already a scalar stays dotted.
func (v *Values) Nested() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()

	root := make(map[string]any, len(v.m))
	for _, key := range slices.Sorted(maps.Keys(v.m)) {
		table := root
		parts := strings.Split(key, ".")
		for len(parts) > 1 {
			next, ok := table[parts[0]].(map[string]any)
			if !ok {
				if _, taken := table[parts[0]]; taken {
					break
				}
				next = make(map[string]any)
				table[parts[0]] = next
			}
			table = next
			parts = parts[1:]
		}
		table[strings.Join(parts, ".")] = v.m[key]
	}
	return root
}

// Flatten converts nested tables to dotted keys: {"rag": {"retriever_k": 3}}
// becomes {"rag.retriever_k": 3}.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	flattenInto(out, m, "")
	return out
}

func flattenInto(out, m map[string]any, prefix string) {
	for key, value := range m {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flattenInto(out, nested, key)
			continue
		}
		out[key] = value
	}
}
