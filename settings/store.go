/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package settings

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

//go:embed defaults.toml
var defaultsTOML string

// Store holds layered agent settings as nested tables.
// Keys are matched case-insensitively.
type Store struct {
	mu   sync.RWMutex
	root map[string]any
}

// Option configures Load.
type Option func(*Store) error

// WithFile layers a TOML settings file over the defaults.
// A missing file is an error.
func WithFile(path string) Option {
	return func(s *Store) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading settings file %s: %w", path, err)
		}
		if err := s.MergeTOML(data); err != nil {
			return fmt.Errorf("merging settings file %s: %w", path, err)
		}
		return nil
	}
}

// WithOptionalFile is WithFile that ignores files which do not exist.
func WithOptionalFile(path string) Option {
	return func(s *Store) error {
		if path == "" {
			return nil
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return WithFile(path)(s)
	}
}

// WithTOML layers raw TOML content over the defaults.
func WithTOML(data string) Option {
	return func(s *Store) error {
		return s.MergeTOML([]byte(data))
	}
}

// WithEnv layers environment variables named SECTION__KEY or section.key
// over the settings. Variables whose section is not already a table are
// ignored, and values are parsed like command-line overrides.
func WithEnv(environ []string) Option {
	return func(s *Store) error {
		sections := map[string]bool{}
		for _, name := range s.Sections() {
			sections[strings.ToLower(name)] = true
		}
		for _, kv := range environ {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || value == "" {
				continue
			}
			key := strings.ToLower(strings.ReplaceAll(name, "__", "."))
			section, _, ok := strings.Cut(key, ".")
			if !ok || !sections[section] {
				continue
			}
			s.Set(key, parseArgValue(value))
		}
		return nil
	}
}

// Load builds a Store from the embedded defaults and the given layers.
func Load(opts ...Option) (*Store, error) {
	s := &Store{root: map[string]any{}}
	if err := s.MergeTOML([]byte(defaultsTOML)); err != nil {
		return nil, fmt.Errorf("decoding defaults: %w", err)
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MustLoad is Load for tests and static initialization.
func MustLoad(opts ...Option) *Store {
	s, err := Load(opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Clone returns an independent deep copy.
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Store{root: deepCopy(s.root).(map[string]any)}
}

// MergeTOML merges a TOML document section by section.
// Keys inside a section replace existing keys; other keys of the section are kept.
// Top-level keys that are not tables are set directly.
func (s *Store) MergeTOML(data []byte) error {
	var doc map[string]any
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return fmt.Errorf("decoding toml: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for section, contents := range doc {
		table, ok := contents.(map[string]any)
		if !ok {
			setKey(s.root, []string{section}, contents)
			continue
		}
		for key, value := range table {
			setKey(s.root, []string{section, key}, deepCopy(value))
		}
	}
	return nil
}

// Get resolves a dotted key like "config.model".
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := lookup(s.root, splitKey(key))
	if !ok {
		return nil, false
	}
	return deepCopy(v), true
}

// Set assigns a value at a dotted key, creating intermediate tables.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setKey(s.root, splitKey(key), deepCopy(value))
}

// String returns the value at key formatted as a string, or "".
func (s *Store) String(key string) string {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// Bool returns the value at key as a bool, or false.
func (s *Store) Bool(key string) bool {
	v, ok := s.Get(key)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	}
	return false
}

// Int returns the value at key as an int, or def when missing or not numeric.
func (s *Store) Int(key string, def int) int {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

// Float returns the value at key as a float64, or def.
func (s *Store) Float(key string, def float64) float64 {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return def
}

// Strings returns a list value. A comma separated string is split.
func (s *Store) Strings(key string) []string {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case []string:
		return t
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out
	}
	return []string{fmt.Sprint(v)}
}

// Table returns a copy of the table at key.
func (s *Store) Table(key string) map[string]any {
	v, ok := s.Get(key)
	if !ok {
		return nil
	}
	t, _ := v.(map[string]any)
	return t
}

// Sections lists top-level table names.
func (s *Store) Sections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.root))
	for k, v := range s.root {
		if _, ok := v.(map[string]any); ok {
			names = append(names, k)
		}
	}
	return names
}

// ApplySecrets fills dotted keys from a secret provider.
// Values already configured are left untouched.
func (s *Store) ApplySecrets(secrets map[string]string) {
	for key, value := range secrets {
		if current, ok := s.Get(key); ok && !isZero(current) {
			continue
		}
		s.Set(key, value)
	}
}

// TOML renders the whole store as a TOML document.
func (s *Store) TOML() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(s.root); err != nil {
		return "", fmt.Errorf("encoding settings: %w", err)
	}
	return sb.String(), nil
}

func splitKey(key string) []string {
	return strings.Split(strings.Trim(key, "."), ".")
}

func findKey(m map[string]any, key string) (string, bool) {
	if _, ok := m[key]; ok {
		return key, true
	}
	for k := range m {
		if strings.EqualFold(k, key) {
			return k, true
		}
	}
	return "", false
}

func lookup(m map[string]any, path []string) (any, bool) {
	var cur any = m
	for _, seg := range path {
		table, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		k, ok := findKey(table, seg)
		if !ok {
			return nil, false
		}
		cur = table[k]
	}
	return cur, true
}

func setKey(m map[string]any, path []string, value any) {
	cur := m
	for depth, seg := range path {
		k, ok := findKey(cur, seg)
		if !ok {
			k = seg
			// section names are stored lower-case; option names keep their case
			if depth == 0 {
				k = strings.ToLower(seg)
			}
		}
		if depth == len(path)-1 {
			cur[k] = value
			return
		}
		next, ok := cur[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[k] = next
		}
		cur = next
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	default:
		return v
	}
}

func isZero(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case int64:
		return t == 0
	case int:
		return t == 0
	case bool:
		return !t
	case []any:
		return len(t) == 0
	}
	return false
}
