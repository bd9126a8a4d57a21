package embedded

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// Magic bytes to identify snapshot files
	MagicBytes = "GOUS"
	// Current version
	FormatVersion = 1
	// Conventional extension for snapshot files
	FileExtension = ".godb"
)

// Header flags
const (
	FlagLZ4 uint8 = 1 << iota
)

// FileHeader represents the header of a snapshot file
type FileHeader struct {
	Magic    [4]byte // "GOUS"
	Version  uint8   // Format version
	Flags    uint8   // FlagLZ4 when the body is an lz4 frame
	Reserved [2]byte // Reserved for future use
}

// WriteHeader writes the file header to the given writer
func WriteHeader(w io.Writer, flags uint8) error {
	header := FileHeader{
		Magic:   [4]byte{'G', 'O', 'U', 'S'},
		Version: FormatVersion,
		Flags:   flags,
	}

	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates the file header
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("invalid file format: expected %s, got %s", MagicBytes, string(header.Magic[:]))
	}

	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported file version: %d", header.Version)
	}

	return &header, nil
}

// snapshot is the persisted form of the engine: database -> collection -> raw BSON documents
// in insertion order.
type snapshot struct {
	Databases map[string]map[string][][]byte `msgpack:"databases"`
	SavedAt   time.Time                      `msgpack:"saved_at"`
}

// writeSnapshot atomically replaces path with the encoded snapshot.
func writeSnapshot(path string, snap *snapshot, compress bool) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	var flags uint8
	if compress {
		flags |= FlagLZ4
	}
	if err := WriteHeader(tmp, flags); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	var body io.Writer = tmp
	var zw *lz4.Writer
	if compress {
		zw = lz4.NewWriter(tmp)
		body = zw
	}

	if err := msgpack.NewEncoder(body).Encode(snap); err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to compress data: %w", err)
		}
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// readSnapshot loads a snapshot file. A missing file yields (nil, nil).
func readSnapshot(path string) (*snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	header, err := ReadHeader(file)
	if err != nil {
		return nil, fmt.Errorf("invalid file header: %w", err)
	}

	var body io.Reader = file
	if header.Flags&FlagLZ4 != 0 {
		body = lz4.NewReader(file)
	}

	var snap snapshot
	if err := msgpack.NewDecoder(body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	return &snap, nil
}
