// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package config parses the INI-like configuration consumed by the reduction
// pipeline: a [dispatcher], [input] and [projection] section, each a flat
// mapping of string keys to string values. The "type" key in each section
// selects a backend/strategy by name; every plugin advertises its recognized
// keys through the Plugin interface so unrecognized keys can be rejected up
// front, with a nearest-match suggestion, instead of being silently ignored.
package config

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// Section names every configuration file must be able to carry. Other
// sections are preserved as-is; the core only ever asks for these three.
const (
	SectionDispatcher = "dispatcher"
	SectionInput      = "input"
	SectionProjection = "projection"
)

// TypeKey is the per-section key naming the backend/strategy to instantiate.
const TypeKey = "type"

// Section is one flat key/value mapping. Keys are stored lowercased.
type Section map[string]string

// Config is the parsed file: section name (lowercased) to Section.
type Config map[string]Section

// Plugin is the capability interface every pluggable component (input
// backend, projection, dispatcher strategy) implements: it names itself and
// enumerates the configuration keys it understands.
type Plugin interface {
	Name() string
	ConfigKeys() []string
}

// Load reads and parses the configuration at path. The path may name any
// backend github.com/grailbio/base/file supports (local or s3://).
func Load(ctx context.Context, path string) (Config, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: open %s", path)
	}
	defer in.Close(ctx) // nolint: errcheck
	cfg, err := Parse(bufio.NewReader(in.Reader(ctx)))
	if err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}
	return cfg, nil
}

// Parse reads the INI-like format: "[section]" headers, "key = value" or
// "key: value" entries, '#' and ';' comments, blank lines ignored. Section
// and key names are case-insensitive; values keep their case.
func Parse(r *bufio.Reader) (Config, error) {
	cfg := Config{}
	var current Section
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		if line[0] == '[' {
			if line[len(line)-1] != ']' {
				return nil, errors.Errorf("line %d: malformed section header %q", lineno, line)
			}
			name := strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			if name == "" {
				return nil, errors.Errorf("line %d: empty section name", lineno)
			}
			if _, ok := cfg[name]; !ok {
				cfg[name] = Section{}
			}
			current = cfg[name]
			continue
		}
		sep := strings.IndexAny(line, "=:")
		if sep < 0 {
			return nil, errors.Errorf("line %d: expected key = value, got %q", lineno, line)
		}
		if current == nil {
			return nil, errors.Errorf("line %d: key %q appears before any section header", lineno, line[:sep])
		}
		key := strings.ToLower(strings.TrimSpace(line[:sep]))
		if key == "" {
			return nil, errors.Errorf("line %d: empty key", lineno)
		}
		current[key] = strings.TrimSpace(line[sep+1:])
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return cfg, nil
}

// Section returns the named section, or an empty one if absent.
func (c Config) Section(name string) Section {
	if s, ok := c[strings.ToLower(name)]; ok {
		return s
	}
	return Section{}
}

// Get returns the value for key and whether it was present.
func (s Section) Get(key string) (string, bool) {
	v, ok := s[strings.ToLower(key)]
	return v, ok
}

// GetString returns the value for key, or def when absent.
func (s Section) GetString(key, def string) string {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// GetInt returns the value for key parsed as an integer, or def when absent.
func (s Section) GetInt(key string, def int) (int, error) {
	v, ok := s.Get(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "config key %q", key)
	}
	return n, nil
}

// GetFloat returns the value for key parsed as a float64, or def when absent.
func (s Section) GetFloat(key string, def float64) (float64, error) {
	v, ok := s.Get(key)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "config key %q", key)
	}
	return f, nil
}

// GetBool returns the value for key parsed as a boolean, or def when absent.
func (s Section) GetBool(key string, def bool) (bool, error) {
	v, ok := s.Get(key)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "config key %q", key)
	}
	return b, nil
}

// Validate checks that every key in s is one the plugin recognizes (plus
// TypeKey, which belongs to the section itself). An unrecognized key is an
// error carrying a nearest-match suggestion when one is close enough.
func (s Section) Validate(p Plugin) error {
	known := append([]string{TypeKey}, p.ConfigKeys()...)
	for i := range known {
		known[i] = strings.ToLower(known[i])
	}
	for key := range s {
		found := false
		for _, k := range known {
			if key == k {
				found = true
				break
			}
		}
		if found {
			continue
		}
		if suggestion, ok := suggest(key, known); ok {
			return errors.Errorf("%s: unrecognized key %q (did you mean %q?)", p.Name(), key, suggestion)
		}
		return errors.Errorf("%s: unrecognized key %q", p.Name(), key)
	}
	return nil
}

// suggest proposes the closest known key by edit distance, rejecting matches
// that differ in more than half their characters.
func suggest(want string, known []string) (string, bool) {
	best, bestDist := "", -1
	for _, k := range known {
		d := matchr.Levenshtein(want, k)
		if bestDist == -1 || d < bestDist {
			best, bestDist = k, d
		}
	}
	if bestDist == -1 || bestDist*2 > len(want) {
		return "", false
	}
	return best, true
}
