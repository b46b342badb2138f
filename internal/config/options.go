// Package config holds job configuration for the aggregate and curate
// commands, plus the loosely typed Options bag used by parsers.
package config

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Options is a free-form option map decoded from JSON config.
//
// Accessors never fail: a missing key or a value of the wrong type yields the
// supplied default. JSON numbers arrive as float64, so the numeric accessors
// accept that as well as native Go ints.
type Options map[string]any

// Any returns the raw value for key, or nil.
func (o Options) Any(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

// Bool returns a boolean option. Strings "true"/"false"/"1"/"0" are accepted.
func (o Options) Bool(key string, def bool) bool {
	switch v := o.Any(key).(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// Int returns an integer option.
func (o Options) Int(key string, def int) int {
	switch v := o.Any(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// String returns a string option.
func (o Options) String(key string, def string) string {
	if v, ok := o.Any(key).(string); ok {
		return v
	}
	return def
}

// Rune returns the first rune of a string option, e.g. a CSV delimiter.
// "\t" written literally in JSON config is accepted as a tab.
func (o Options) Rune(key string, def rune) rune {
	s, ok := o.Any(key).(string)
	if !ok || s == "" {
		return def
	}
	if s == `\t` {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return def
	}
	return r
}

// StringSlice returns a list option. Both []string and JSON []any of strings
// are accepted.
func (o Options) StringSlice(key string, def []string) []string {
	switch v := o.Any(key).(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return def
}

// StringMap returns a string->string option (e.g. a header rename map).
func (o Options) StringMap(key string) map[string]string {
	switch v := o.Any(key).(type) {
	case map[string]string:
		return v
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, e := range v {
			if s, ok := e.(string); ok {
				out[k] = s
			}
		}
		return out
	}
	return nil
}
