package scene

import (
	"context"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/bitsmakerde/planemirror/internal/plane"
)

// Theme maps plane classifications to material colors. Colors load from a
// YAML file and can be hot-reloaded while the service runs; entities pick up
// theme changes on their next rebuild.
type Theme struct {
	mu      sync.RWMutex
	colors  map[plane.Classification]color.RGBA
	def     color.RGBA
	path    string
	version int
}

// themeFile is the on-disk YAML schema. Colors are "#RRGGBB" or "#RRGGBBAA".
type themeFile struct {
	Default         string            `yaml:"default"`
	Classifications map[string]string `yaml:"classifications"`
}

// DefaultTheme returns the built-in palette used when no theme file is
// configured.
func DefaultTheme() *Theme {
	return &Theme{
		def: color.RGBA{R: 0xBF, G: 0xBF, B: 0xBF, A: 0xFF},
		colors: map[plane.Classification]color.RGBA{
			plane.ClassFloor:   {R: 0x4C, G: 0xAF, B: 0x50, A: 0xFF},
			plane.ClassCeiling: {R: 0x90, G: 0xA4, B: 0xAE, A: 0xFF},
			plane.ClassWall:    {R: 0x21, G: 0x96, B: 0xF3, A: 0xFF},
			plane.ClassTable:   {R: 0xFF, G: 0x98, B: 0x00, A: 0xFF},
			plane.ClassSeat:    {R: 0x9C, G: 0x27, B: 0xB0, A: 0xFF},
			plane.ClassWindow:  {R: 0x00, G: 0xBC, B: 0xD4, A: 0xFF},
			plane.ClassDoor:    {R: 0x79, G: 0x55, B: 0x48, A: 0xFF},
		},
	}
}

// LoadTheme reads a theme file, falling back to the default palette for any
// classification the file omits.
func LoadTheme(path string) (*Theme, error) {
	t := DefaultTheme()
	t.path = path
	if err := t.reload(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Theme) reload() error {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return fmt.Errorf("read theme file: %w", err)
	}
	var tf themeFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("parse theme file: %w", err)
	}

	colors := DefaultTheme().colors
	def := DefaultTheme().def
	if tf.Default != "" {
		c, err := parseHexColor(tf.Default)
		if err != nil {
			return fmt.Errorf("theme default: %w", err)
		}
		def = c
	}
	for name, hex := range tf.Classifications {
		class := plane.Classification(name)
		if !class.Valid() {
			return fmt.Errorf("theme: unknown classification %q", name)
		}
		c, err := parseHexColor(hex)
		if err != nil {
			return fmt.Errorf("theme %s: %w", name, err)
		}
		colors[class] = c
	}

	t.mu.Lock()
	t.colors = colors
	t.def = def
	t.version++
	t.mu.Unlock()
	return nil
}

// Color returns the material color for a classification, or the default
// color for classifications the palette does not cover.
func (t *Theme) Color(c plane.Classification) color.RGBA {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if col, ok := t.colors[c]; ok {
		return col
	}
	return t.def
}

// Version increments on every successful reload.
func (t *Theme) Version() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Watch hot-reloads the theme file until ctx is cancelled. Reload failures
// keep the previous palette and log the error.
func (t *Theme) Watch(ctx context.Context) error {
	if t.path == "" {
		return fmt.Errorf("theme has no file to watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors replace files on save, which drops
	// per-file watches.
	if err := w.Add(filepath.Dir(t.path)); err != nil {
		_ = w.Close()
		return err
	}

	go func() {
		defer w.Close()
		var lastReload time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(t.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if time.Since(lastReload) < 100*time.Millisecond {
					continue
				}
				lastReload = time.Now()
				if err := t.reload(); err != nil {
					log.Printf("[theme] reload failed, keeping previous palette: %v", err)
				} else {
					log.Printf("[theme] reloaded %s (version %d)", t.path, t.Version())
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("[theme] watcher error: %v", err)
			}
		}
	}()
	return nil
}

func parseHexColor(s string) (color.RGBA, error) {
	if len(s) == 0 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("color %q must start with '#'", s)
	}
	hex := s[1:]
	if len(hex) != 6 && len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("color %q must be #RRGGBB or #RRGGBBAA", s)
	}
	v, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xFF
	}
	return color.RGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}
