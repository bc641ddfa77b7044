package services

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// ErrInvalidName is returned when the display name is empty or cannot be used
// as a storage key.
var ErrInvalidName = errors.New("invalid display name")

const hexDigits = "0123456789ABCDEF"

// AvatarGenerator rasterizes letter avatars: a colored square tile with the
// uppercased first letter of the display name centered on it. Backgrounds are
// random per call; only the glyph is stable for a given name.
type AvatarGenerator struct {
	dir  string
	size int

	mu   sync.Mutex // the sfnt face keeps internal buffers; serialize drawing
	face font.Face
}

// NewAvatarGenerator prepares a generator writing files under dir with square
// tiles of the given size in pixels. Zero size falls back to 100.
func NewAvatarGenerator(dir string, size int) (*AvatarGenerator, error) {
	if size <= 0 {
		size = 100
	}
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse embedded font: %w", err)
	}
	// Glyph at half the tile size keeps a single letter legible and leaves margin.
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    float64(size) / 2,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("build font face: %w", err)
	}
	return &AvatarGenerator{dir: dir, size: size, face: face}, nil
}

// Generate renders the avatar for the display name and returns PNG bytes.
// It has no side effects.
func (g *AvatarGenerator) Generate(displayName string) ([]byte, error) {
	letter, err := initialOf(displayName)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, g.size, g.size))
	draw.Draw(img, img.Bounds(), image.NewUniform(randomColor()), image.Point{}, draw.Src)

	g.mu.Lock()
	defer g.mu.Unlock()

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: g.face,
	}
	advance := drawer.MeasureString(letter)
	metrics := g.face.Metrics()
	drawer.Dot = fixed.Point26_6{
		X: (fixed.I(g.size) - advance) / 2,
		Y: (fixed.I(g.size) + metrics.Ascent - metrics.Descent) / 2,
	}
	drawer.DrawString(letter)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}

// GenerateAndStore renders the avatar and writes it to <dir>/<name>.png,
// creating the directory if needed. The file is written to a temp path and
// renamed into place so a concurrent reader never sees a partial image; a
// later call for the same name fully replaces the previous file. The returned
// reference is the public URL the static file route serves the image under.
func (g *AvatarGenerator) GenerateAndStore(displayName string) (string, error) {
	data, err := g.Generate(displayName)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("create avatar dir: %w", err)
	}

	filename := displayName + ".png"
	tmp, err := os.CreateTemp(g.dir, "."+filename+".*")
	if err != nil {
		return "", fmt.Errorf("create avatar temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write avatar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("flush avatar: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("chmod avatar: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(g.dir, filename)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("store avatar: %w", err)
	}

	return "/static/avatars/" + filename, nil
}

// initialOf validates the display name and returns its uppercased first letter.
func initialOf(displayName string) (string, error) {
	if displayName == "" {
		return "", ErrInvalidName
	}
	// The name doubles as a file name; refuse anything that escapes the dir.
	if strings.ContainsAny(displayName, `/\`) || strings.Contains(displayName, "..") {
		return "", ErrInvalidName
	}
	r, _ := utf8.DecodeRuneInString(displayName)
	if r == utf8.RuneError {
		return "", ErrInvalidName
	}
	return string(unicode.ToUpper(r)), nil
}

// randomColor picks six hex digits independently at random, matching the
// classic letter-avatar palette. Reproducibility is not required.
func randomColor() color.RGBA {
	digits := make([]byte, 6)
	for i := range digits {
		digits[i] = hexDigits[rand.Intn(len(hexDigits))]
	}
	rgb, _ := hex.DecodeString(string(digits))
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xFF}
}
