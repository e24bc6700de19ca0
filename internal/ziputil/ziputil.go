// Package ziputil reads member listings from zip-format archives (jars, apks)
// and writes small deterministic archives.
package ziputil

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"time"
)

// FixedZipTime ensures byte-for-byte reproducible archives (1980-01-01 UTC).
var FixedZipTime = time.Unix(315532800, 0).UTC()

// ErrFormat is wrapped by errors for files that are not valid zip archives.
var ErrFormat = errors.New("invalid archive")

// Entry is a single member to write with Create.
type Entry struct {
	Name string
	Data []byte
}

// EntryNames lists member names in central directory order. Names are
// returned exactly as stored (forward slashes, directories with a trailing
// '/').
func EntryNames(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) || errors.Is(err, zip.ErrChecksum) {
			return nil, fmt.Errorf("%s: %w: %v", path, ErrFormat, err)
		}
		return nil, err
	}
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names, nil
}

// Create writes an archive at path containing entries in the given order.
// Timestamps and modes are fixed so identical entries give identical bytes.
func Create(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)
	for _, e := range entries {
		if err := WriteText(zw, e.Name, e.Data); err != nil {
			_ = zw.Close()
			_ = f.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteText writes raw bytes as an entry with fixed timestamp and mode.
func WriteText(zw *zip.Writer, name string, data []byte) error {
	h := &zip.FileHeader{Name: name, Method: zip.Deflate}
	h.SetMode(0o644)
	h.Modified = FixedZipTime
	w, err := zw.CreateHeader(h)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
