// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package assets loads the pictures shown next to the board and turns them
// into terminal sprites drawn with half-block characters.
package assets

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png" // register the PNG decoder
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// MaxWidth caps sprite width in terminal columns. Larger pictures are
// scaled down.
const MaxWidth = 24

// Sprite is a small RGBA picture. Fully transparent pixels are left blank
// when rendered.
type Sprite struct {
	Width  int
	Height int
	Pix    []color.NRGBA // row-major
}

func (s Sprite) at(x, y int) color.NRGBA {
	if x < 0 || y < 0 || x >= s.Width || y >= s.Height {
		return color.NRGBA{}
	}
	return s.Pix[y*s.Width+x]
}

// Decode reads a picture and scales it so it is at most maxWidth pixels
// wide, preserving the aspect ratio.
func Decode(img image.Image, maxWidth int) Sprite {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxWidth <= 0 {
		maxWidth = MaxWidth
	}
	tw, th := w, h
	if tw > maxWidth {
		tw = maxWidth
		th = h * maxWidth / w
		if th == 0 {
			th = 1
		}
	}
	s := Sprite{Width: tw, Height: th, Pix: make([]color.NRGBA, tw*th)}
	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			sx := b.Min.X + x*w/tw
			sy := b.Min.Y + y*h/th
			s.Pix[y*tw+x] = color.NRGBAModel.Convert(img.At(sx, sy)).(color.NRGBA)
		}
	}
	return s
}

// LoadFile decodes the PNG at path.
func LoadFile(path string, maxWidth int) (Sprite, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sprite{}, err
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	if err != nil {
		return Sprite{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return Decode(img, maxWidth), nil
}

func hex(c color.NRGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

// Render draws the sprite with one terminal cell per two vertical pixels.
// Colours go through r so they match the client's terminal profile.
func (s Sprite) Render(r *lipgloss.Renderer) string {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	var sb strings.Builder
	for y := 0; y < s.Height; y += 2 {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < s.Width; x++ {
			top, bot := s.at(x, y), s.at(x, y+1)
			switch {
			case top.A == 0 && bot.A == 0:
				sb.WriteByte(' ')
			case bot.A == 0:
				sb.WriteString(r.NewStyle().Foreground(hex(top)).Render("▀"))
			case top.A == 0:
				sb.WriteString(r.NewStyle().Foreground(hex(bot)).Render("▄"))
			default:
				sb.WriteString(r.NewStyle().Foreground(hex(top)).Background(hex(bot)).Render("▀"))
			}
		}
	}
	return sb.String()
}
