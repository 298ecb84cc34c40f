// Package source loads the list of data holders to crawl.
//
// Two formats are supported, chosen by file extension: a JSON array of
// holder objects and a TOML document with one [[sources]] table per holder.
// Both accept "bankName"/"url" as well as "name"/"baseUrl" keys.
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/JakeFAU/bank-product-crawler/internal/crawler"
)

// ErrUnsupportedFormat is returned for files that are neither JSON nor TOML.
var ErrUnsupportedFormat = errors.New("unsupported source list format")

// Format identifies the encoding of a source list.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// holder mirrors one entry of a source list. Empty fields are kept so the
// caller can report and skip them.
type holder struct {
	BankName string `json:"bankName" toml:"bankName"`
	URL      string `json:"url" toml:"url"`
	Name     string `json:"name" toml:"name"`
	BaseURL  string `json:"baseUrl" toml:"baseUrl"`
}

func (h holder) source() crawler.Source {
	name := h.BankName
	if name == "" {
		name = h.Name
	}
	base := h.URL
	if base == "" {
		base = h.BaseURL
	}
	return crawler.Source{
		Name:    strings.TrimSpace(name),
		BaseURL: strings.TrimSpace(base),
	}
}

type tomlDocument struct {
	Sources []holder `toml:"sources"`
}

// FormatFor picks a Format from the file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadFile reads the source list at path. Records are returned in file order,
// including ones with missing fields.
func LoadFile(path string) ([]crawler.Source, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open source list: %w", err)
	}
	defer func() { _ = f.Close() }()

	sources, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("source list %s: %w", path, err)
	}
	return sources, nil
}

// Decode parses a source list from r.
func Decode(r io.Reader, format Format) ([]crawler.Source, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read source list: %w", err)
	}

	var holders []holder
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		if err := dec.Decode(&holders); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case FormatTOML:
		var doc tomlDocument
		if err := toml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
		holders = doc.Sources
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	out := make([]crawler.Source, 0, len(holders))
	for _, h := range holders {
		out = append(out, h.source())
	}
	return out, nil
}

// Partition splits sources into records that can be crawled and records
// missing a name or URL. Order is preserved in both slices.
func Partition(sources []crawler.Source) (valid, skipped []crawler.Source) {
	for _, src := range sources {
		if src.Valid() {
			valid = append(valid, src)
			continue
		}
		skipped = append(skipped, src)
	}
	return valid, skipped
}
