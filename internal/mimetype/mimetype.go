// Package mimetype guesses the media type of a file from its extension.
package mimetype

import (
	_ "embed"
	"io"
	"mime"
	"path"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// OctetStream is the media type of files with an unknown extension.
const OctetStream = "application/octet-stream"

//go:embed types.toml
var defaultTable string

// Table maps file extensions (including the leading dot) to media types.
type Table struct {
	// Fallback is returned when no lookup succeeds.
	Fallback string `toml:"fallback"`
	// Types holds the extension table, e.g. ".html" -> "text/html".
	Types map[string]string `toml:"types"`
	// System enables the operating system's mime table as a second lookup.
	System bool `toml:"-"`
}

var (
	defaultOnce sync.Once
	defaultTab  *Table
)

// Default returns the built-in table. It is decoded once and shared.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Load(strings.NewReader(defaultTable))
		if err != nil {
			panic(err)
		}
		t.System = true
		defaultTab = t
	})
	return defaultTab
}

// Load decodes a TOML extension table.
func Load(r io.Reader) (*Table, error) {
	var t Table
	if _, err := toml.NewDecoder(r).Decode(&t); err != nil {
		return nil, errors.Wrap(err, "decode mime table")
	}
	if t.Fallback == "" {
		t.Fallback = OctetStream
	}
	if t.Types == nil {
		t.Types = make(map[string]string)
	}
	return &t, nil
}

// TypeOf returns the media type for name.
// The extension is looked up as-is, then lower-cased, then in the
// system table when enabled. Unknown extensions yield the fallback.
func (t *Table) TypeOf(name string) string {
	base := path.Base(name)
	ext := path.Ext(base)
	// A leading dot names a hidden file, not an extension.
	if ext == "" || ext == base {
		return t.Fallback
	}
	if typ, ok := t.Types[ext]; ok {
		return typ
	}
	lower := strings.ToLower(ext)
	if typ, ok := t.Types[lower]; ok {
		return typ
	}
	if t.System {
		if typ := mime.TypeByExtension(lower); typ != "" {
			return typ
		}
	}
	return t.Fallback
}
