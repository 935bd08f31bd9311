// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package assets

import (
	"image/color"

	"github.com/toeirei/blockmove/internal/logging"
)

// Set holds the sprite for each picture name ("normal", "scared").
type Set struct {
	sprites map[string]Sprite
}

// Get returns the sprite called name, falling back to "normal".
func (s *Set) Get(name string) Sprite {
	if sp, ok := s.sprites[name]; ok {
		return sp
	}
	return s.sprites["normal"]
}

// LoadSet decodes the configured pictures. A missing or unreadable file is
// logged and replaced by the built-in picture of the same name.
func LoadSet(paths map[string]string) *Set {
	set := &Set{sprites: map[string]Sprite{
		"normal": Builtin("normal"),
		"scared": Builtin("scared"),
	}}
	for name, path := range paths {
		if path == "" {
			continue
		}
		sp, err := LoadFile(path, MaxWidth)
		if err != nil {
			logging.Warnf("asset %s: %v; using built-in picture", name, err)
			continue
		}
		set.sprites[name] = sp
	}
	return set
}

var palette = map[byte]color.NRGBA{
	'#': {0x30, 0x30, 0x30, 0xff},
	'y': {0xf5, 0xd0, 0x3b, 0xff},
	'w': {0xff, 0xff, 0xff, 0xff},
	'b': {0x3b, 0x82, 0xf5, 0xff},
	'r': {0xe0, 0x40, 0x40, 0xff},
}

var builtins = map[string][]string{
	"normal": {
		"...######...",
		"..#yyyyyy#..",
		".#yyyyyyyy#.",
		"#yyw#yyw#yy#",
		"#yyw#yyw#yy#",
		"#yyyyyyyyyy#",
		"#yy#yyyy#yy#",
		".#yy####yy#.",
		"..#yyyyyy#..",
		"...######...",
	},
	"scared": {
		"...######...",
		"..#yyyyyy#..",
		".#yywwywwy#.",
		"#yyw#yw#yyb#",
		"#yywwywwyyb#",
		"#yyyyyyyyyy#",
		"#yyy####yyy#",
		".#yy#rr#yy#.",
		"..#y####y#..",
		"...######...",
	},
}

// Builtin returns the embedded fallback picture for name.
func Builtin(name string) Sprite {
	rows, ok := builtins[name]
	if !ok {
		rows = builtins["normal"]
	}
	w := len(rows[0])
	s := Sprite{Width: w, Height: len(rows), Pix: make([]color.NRGBA, w*len(rows))}
	for y, row := range rows {
		for x := 0; x < len(row) && x < w; x++ {
			s.Pix[y*w+x] = palette[row[x]]
		}
	}
	return s
}
