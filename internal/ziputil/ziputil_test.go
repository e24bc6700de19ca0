package ziputil

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEntryNamesKeepsArchiveOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.jar")
	entries := []Entry{
		{Name: "META-INF/MANIFEST.MF", Data: []byte("Manifest-Version: 1.0\n")},
		{Name: "org/z/Last.class"},
		{Name: "org/a/First.class"},
	}
	if err := Create(path, entries); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := EntryNames(path)
	if err != nil {
		t.Fatalf("EntryNames: %v", err)
	}
	want := []string{"META-INF/MANIFEST.MF", "org/z/Last.class", "org/a/First.class"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestEntryNamesRejectsNonArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jar")
	if err := os.WriteFile(path, []byte("definitely not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := EntryNames(path)
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestEntryNamesMissingFile(t *testing.T) {
	_, err := EntryNames(filepath.Join(t.TempDir(), "missing.jar"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestCreateIsReproducible(t *testing.T) {
	dir := t.TempDir()
	entries := []Entry{{Name: "a/B.class", Data: []byte{0xca, 0xfe, 0xba, 0xbe}}}
	a, b := filepath.Join(dir, "a.jar"), filepath.Join(dir, "b.jar")
	if err := Create(a, entries); err != nil {
		t.Fatal(err)
	}
	if err := Create(b, entries); err != nil {
		t.Fatal(err)
	}
	ab, _ := os.ReadFile(a)
	bb, _ := os.ReadFile(b)
	if !bytes.Equal(ab, bb) {
		t.Fatalf("archives differ")
	}
}
