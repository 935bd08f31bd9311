// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package i18n provides localized player-facing strings. Translation files
// are YAML and embedded into the binary.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

var (
	mu        sync.RWMutex
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
	lang      string
)

// Init loads every embedded locale and selects lang. Unknown languages fall
// back to English.
func Init(l string) {
	b := i18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, _ := fs.ReadDir(localeFS, "locales")
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + f.Name())
		if err != nil {
			continue
		}
		_, _ = b.ParseMessageFileBytes(data, f.Name())
	}

	mu.Lock()
	bundle = b
	localizer = i18n.NewLocalizer(b, l)
	lang = l
	mu.Unlock()
}

// Lang returns the language passed to the last Init.
func Lang() string {
	mu.RLock()
	defer mu.RUnlock()
	return lang
}

// Available lists the language tags that have an embedded locale file.
func Available() []string {
	mu.RLock()
	b := bundle
	mu.RUnlock()
	if b == nil {
		Init("en")
		mu.RLock()
		b = bundle
		mu.RUnlock()
	}
	tags := b.LanguageTags()
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.String())
	}
	return out
}

// T translates messageID. Extra args are applied fmt-style to the
// translated text. Unknown IDs are returned as-is.
func T(messageID string, args ...any) string {
	mu.RLock()
	loc := localizer
	mu.RUnlock()
	if loc == nil {
		Init("en")
		mu.RLock()
		loc = localizer
		mu.RUnlock()
	}
	msg, err := loc.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		return messageID
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}
