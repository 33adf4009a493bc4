// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plugins

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/tombee/herald/internal/command"
)

// FilePattern selects command files below a commands directory.
const FilePattern = "**/*.{yaml,yml}"

// Loader discovers command files in a directory and keeps track of which
// file produced which registered command.
type Loader struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	byPath map[string]string
}

// NewLoader returns a Loader rooted at dir.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		dir:    dir,
		logger: logger.With(slog.String("component", "plugins"), slog.String("dir", dir)),
		byPath: make(map[string]string),
	}
}

// Dir returns the commands directory.
func (l *Loader) Dir() string { return l.dir }

// Discover lists command files below the directory in lexical order.
func (l *Loader) Discover() ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(l.dir), FilePattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("discover commands in %s: %w", l.dir, err)
	}
	sort.Strings(matches)

	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = filepath.Join(l.dir, filepath.FromSlash(m))
	}
	return paths, nil
}

// IsCommandFile reports whether path names a command file.
func IsCommandFile(path string) bool {
	ok, _ := doublestar.Match("*.{yaml,yml}", filepath.Base(path))
	return ok
}

// LoadFile parses and compiles one command file. A file without a name
// takes its base name without the extension.
func (l *Loader) LoadFile(path string) (*DeclarativeEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes a YAML command definition. Unknown fields are rejected.
func Parse(data []byte, source string) (*DeclarativeEntry, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	if def.Name == "" {
		base := filepath.Base(source)
		def.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return Compile(def, source)
}

// LoadInto registers every command file in the directory. Files that fail
// to load are skipped and reported together; the rest are registered.
func (l *Loader) LoadInto(reg *command.Registry) (int, error) {
	paths, err := l.Discover()
	if err != nil {
		return 0, err
	}

	var errs []error
	loaded := 0
	for _, p := range paths {
		if err := l.Reload(reg, p); err != nil {
			l.logger.Warn("skipping command file", slog.String("path", p), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		loaded++
	}
	return loaded, errors.Join(errs...)
}

// Reload loads path and registers the result, replacing any command with
// the same name. If the file previously produced a command under a
// different name, that command is removed.
func (l *Loader) Reload(reg *command.Registry, path string) error {
	entry, err := l.LoadFile(path)
	if err != nil {
		return err
	}
	if err := reg.Register(entry); err != nil {
		return err
	}

	l.mu.Lock()
	prev, had := l.byPath[path]
	l.byPath[path] = entry.Name()
	orphaned := had && prev != entry.Name() && !l.claimedLocked(prev)
	l.mu.Unlock()

	if orphaned {
		reg.Unregister(prev)
	}
	l.logger.Info("command loaded", slog.String("command", entry.Name()), slog.String("path", path))
	return nil
}

// Remove unregisters the command loaded from path, if any.
func (l *Loader) Remove(reg *command.Registry, path string) bool {
	l.mu.Lock()
	name, ok := l.byPath[path]
	delete(l.byPath, path)
	shared := ok && l.claimedLocked(name)
	l.mu.Unlock()

	// Another file now owns the name.
	if !ok || shared {
		return false
	}
	removed := reg.Unregister(name)
	if removed {
		l.logger.Info("command removed", slog.String("command", name), slog.String("path", path))
	}
	return removed
}

// Name returns the command name loaded from path.
func (l *Loader) Name(path string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name, ok := l.byPath[path]
	return name, ok
}

func (l *Loader) claimedLocked(name string) bool {
	for _, n := range l.byPath {
		if n == name {
			return true
		}
	}
	return false
}
