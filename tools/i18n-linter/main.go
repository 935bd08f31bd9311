// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// i18n-linter checks that every translation key used through i18n.T exists
// in the primary locale, that every other locale carries the same keys, and
// lists keys nothing references.
//
//	go run ./tools/i18n-linter [project-root]
package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	localesDir    = "internal/i18n/locales"
	primaryLocale = "en.yaml"
)

var (
	// i18n.T("game.title")
	literalKey = regexp.MustCompile(`i18n\.T\("([a-z0-9_.]+)"\s*[,)]`)
	// i18n.T("game.mode." + m.String())
	prefixKey = regexp.MustCompile(`i18n\.T\("([a-z0-9_.]+\.)"\s*\+`)
)

// usage is what the source tree references.
type usage struct {
	keys     map[string]struct{}
	prefixes map[string]struct{}
}

func (u usage) covers(key string) bool {
	if _, ok := u.keys[key]; ok {
		return true
	}
	for p := range u.prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// report is the outcome of one lint run.
type report struct {
	undefined []string            // used in code, absent from the primary locale
	orphaned  []string            // in the primary locale, never used
	missing   map[string][]string // locale file -> keys it lacks
}

func (r report) failed() bool {
	if len(r.undefined) > 0 {
		return true
	}
	for _, keys := range r.missing {
		if len(keys) > 0 {
			return true
		}
	}
	return false
}

func main() {
	root := "."
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	r, err := lint(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "i18n-linter: %v\n", err)
		os.Exit(2)
	}
	r.print(os.Stdout)
	if r.failed() {
		os.Exit(1)
	}
}

func lint(root string) (report, error) {
	used, err := findUsedKeys(root)
	if err != nil {
		return report{}, fmt.Errorf("scan sources: %w", err)
	}
	dir := filepath.Join(root, localesDir)
	primary, err := loadKeysFromLocale(filepath.Join(dir, primaryLocale))
	if err != nil {
		return report{}, fmt.Errorf("load primary locale: %w", err)
	}

	r := report{missing: map[string][]string{}}
	for key := range used.keys {
		if _, ok := primary[key]; !ok {
			r.undefined = append(r.undefined, key)
		}
	}
	for key := range primary {
		if !used.covers(key) {
			r.orphaned = append(r.orphaned, key)
		}
	}
	sort.Strings(r.undefined)
	sort.Strings(r.orphaned)

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return report{}, err
	}
	for _, file := range files {
		if filepath.Base(file) == primaryLocale {
			continue
		}
		keys, err := loadKeysFromLocale(file)
		if err != nil {
			return report{}, fmt.Errorf("load %s: %w", file, err)
		}
		var lacking []string
		for key := range primary {
			if _, ok := keys[key]; !ok {
				lacking = append(lacking, key)
			}
		}
		sort.Strings(lacking)
		r.missing[filepath.Base(file)] = lacking
	}
	return r, nil
}

func (r report) print(w io.Writer) {
	section := func(title string, keys []string) {
		fmt.Fprintf(w, "--- %s ---\n", title)
		if len(keys) == 0 {
			fmt.Fprintln(w, "  none")
		}
		for _, k := range keys {
			fmt.Fprintf(w, "  - %s\n", k)
		}
	}
	section("Undefined keys (used in code, not in "+primaryLocale+")", r.undefined)
	section("Orphaned keys (in "+primaryLocale+", never used)", r.orphaned)

	locales := make([]string, 0, len(r.missing))
	for l := range r.missing {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	for _, l := range locales {
		section("Missing from "+l, r.missing[l])
	}
}

// findUsedKeys scans non-test .go files for i18n.T calls.
func findUsedKeys(root string) (usage, error) {
	u := usage{keys: map[string]struct{}{}, prefixes: map[string]struct{}{}}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (name == "tools" || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, m := range literalKey.FindAllStringSubmatch(string(content), -1) {
			u.keys[m[1]] = struct{}{}
		}
		for _, m := range prefixKey.FindAllStringSubmatch(string(content), -1) {
			u.prefixes[m[1]] = struct{}{}
		}
		return nil
	})
	return u, err
}

// loadKeysFromLocale reads a YAML file and returns a flat set of its keys.
func loadKeysFromLocale(path string) (map[string]struct{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, err
	}
	keys := make(map[string]struct{})
	flattenYAML("", data, keys)
	return keys, nil
}

// flattenYAML turns nested maps into dot-separated keys.
func flattenYAML(prefix string, node any, keys map[string]struct{}) {
	switch v := node.(type) {
	case map[string]any:
		for k, val := range v {
			next := k
			if prefix != "" {
				next = prefix + "." + k
			}
			flattenYAML(next, val, keys)
		}
	default:
		if prefix != "" {
			keys[prefix] = struct{}{}
		}
	}
}
