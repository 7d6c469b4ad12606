package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// NetworkSource produces the network description the engine loads once.
type NetworkSource interface {
	Load(ctx context.Context) (*NetworkDescription, error)
}

// NetworkFormat names a supported encoding of a NetworkDescription.
type NetworkFormat string

const (
	FormatJSON    NetworkFormat = "json"
	FormatMsgpack NetworkFormat = "msgpack"
)

// FormatFromPath picks the codec from a file name. A trailing ".zst" marks
// zstd compression of the inner format, e.g. "track.msgpack.zst".
func FormatFromPath(path string) (format NetworkFormat, compressed bool, err error) {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, ".zst") {
		compressed = true
		name = strings.TrimSuffix(name, ".zst")
	}
	switch filepath.Ext(name) {
	case ".json":
		return FormatJSON, compressed, nil
	case ".msgpack", ".mpk":
		return FormatMsgpack, compressed, nil
	default:
		return "", false, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
}

// DecodeNetwork reads one NetworkDescription from r.
func DecodeNetwork(r io.Reader, format NetworkFormat, compressed bool) (*NetworkDescription, error) {
	if compressed {
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	var desc NetworkDescription
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&desc); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", ErrMalformedNetwork, err)
		}
	case FormatMsgpack:
		dec := msgpack.NewDecoder(r)
		dec.SetCustomStructTag("json")
		if err := dec.Decode(&desc); err != nil {
			return nil, fmt.Errorf("%w: decode msgpack: %v", ErrMalformedNetwork, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return &desc, nil
}

// EncodeNetwork writes desc to w in the given format.
func EncodeNetwork(w io.Writer, desc *NetworkDescription, format NetworkFormat, compressed bool) error {
	if compressed {
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("zstd writer: %w", err)
		}
		if err := EncodeNetwork(zw, desc, format, false); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(desc)
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		return enc.Encode(desc)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// FileSource loads a network description from a file on disk.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) (*NetworkDescription, error) {
	format, compressed, err := FormatFromPath(s.Path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open network %q: %w", s.Path, err)
	}
	defer f.Close()

	desc, err := DecodeNetwork(f, format, compressed)
	if err != nil {
		return nil, fmt.Errorf("load network %q: %w", s.Path, err)
	}
	return desc, nil
}

// StaticSource serves an in-memory description.
type StaticSource struct {
	Description *NetworkDescription
}

func (s StaticSource) Load(context.Context) (*NetworkDescription, error) {
	if s.Description == nil {
		return nil, fmt.Errorf("%w: nil description", ErrMalformedNetwork)
	}
	return s.Description, nil
}

// LoadNetwork fetches a description from src and builds the store.
func LoadNetwork(ctx context.Context, src NetworkSource) (*NetworkStore, error) {
	if src == nil {
		return nil, fmt.Errorf("LoadNetwork: nil source")
	}
	desc, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewNetworkStore(desc)
}

// IsSQLitePath reports whether path names a SQLite network database.
func IsSQLitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// SourceForPath returns the source matching the file's extension.
func SourceForPath(path string) NetworkSource {
	if IsSQLitePath(path) {
		return SQLiteSource{Path: path}
	}
	return FileSource{Path: path}
}

// SaveNetwork writes desc to path in the format implied by its extension.
func SaveNetwork(ctx context.Context, desc *NetworkDescription, path string) error {
	if IsSQLitePath(path) {
		db, err := OpenNetworkDB(path)
		if err != nil {
			return err
		}
		defer db.Close()
		return WriteNetworkSQLite(ctx, db, desc)
	}

	format, compressed, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if err := EncodeNetwork(f, desc, format, compressed); err != nil {
		f.Close()
		return fmt.Errorf("encode network %q: %w", path, err)
	}
	return f.Close()
}
