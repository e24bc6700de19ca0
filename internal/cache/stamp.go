// Package cache gates expensive build steps on a content fingerprint of their
// declared inputs.
//
// A step is described by its input files (and optionally input strings such
// as tool flags) and a record path. The fingerprint of those inputs is
// compared with the one stored at the record path; the step only runs when
// they differ, and the record is rewritten only after the step succeeded.
//
// Conventions:
//   - The fingerprint is a lowercase hex MD5 digest.
//   - The record file holds the digest followed by a single '\n'.
//   - Records are written atomically (temp file + rename).
//
// Invocations targeting the same record path must be serialized by the caller.
package cache

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"buildtools/internal/fileutil"
)

// RecordError reports a record file that could not be read or written.
// Input files are never the cause.
type RecordError struct {
	Path string
	Err  error
}

func (e *RecordError) Error() string { return fmt.Sprintf("record %s: %v", e.Path, e.Err) }
func (e *RecordError) Unwrap() error { return e.Err }

type options struct {
	inputStrings []string
	force        bool
}

// Option customizes CallAndRecordIfStale.
type Option func(*options)

// WithInputStrings adds non-file inputs (tool flags, versions) to the
// fingerprint. Their order is significant.
func WithInputStrings(s ...string) Option {
	return func(o *options) { o.inputStrings = append(o.inputStrings, s...) }
}

// WithForce runs the operation even when the recorded fingerprint matches.
func WithForce(force bool) Option {
	return func(o *options) { o.force = o.force || force }
}

// CallAndRecordIfStale runs op when the fingerprint of inputPaths differs
// from the one stored at recordPath (or no record exists), then records the
// new fingerprint. It reports whether op ran.
//
// If op fails its error is returned and recordPath is left untouched, so the
// next invocation retries from scratch. An unreadable input fails before op
// runs and nothing is recorded. Failures on the record file itself are
// reported as *RecordError.
func CallAndRecordIfStale(op func() error, recordPath string, inputPaths []string, opts ...Option) (bool, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sum, err := Fingerprint(inputPaths, o.inputStrings)
	if err != nil {
		return false, err
	}

	prev, err := readRecord(recordPath)
	if err != nil {
		return false, err
	}
	if !o.force && prev == sum {
		return false, nil
	}

	if err := op(); err != nil {
		return true, err
	}
	if err := fileutil.WriteAtomic(recordPath, []byte(sum+"\n"), 0o644); err != nil {
		return true, &RecordError{Path: recordPath, Err: err}
	}
	return true, nil
}

// Fingerprint hashes the input strings (in order) followed by the content of
// every input path, visited in lexicographic path order. Each field is
// length-prefixed so adjacent fields cannot run together. Paths themselves
// are not hashed: moving an unchanged input does not make a step stale.
func Fingerprint(inputPaths, inputStrings []string) (string, error) {
	h := md5.New()
	writeField(h, []byte(strconv.Itoa(len(inputStrings))))
	for _, s := range inputStrings {
		writeField(h, []byte(s))
	}

	sorted := make([]string, len(inputPaths))
	copy(sorted, inputPaths)
	sort.Strings(sorted)
	for _, p := range sorted {
		if err := writeFile(h, p); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Clear removes the record so the next call runs unconditionally.
// Safe to call when the record does not exist.
func Clear(recordPath string) error {
	err := os.Remove(recordPath)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func writeFile(h hash.Hash, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read input %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("read input %s: %w", path, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("read input %s: is a directory", path)
	}

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(fi.Size()))
	h.Write(n[:])
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("read input %s: %w", path, err)
	}
	return nil
}

func writeField(h hash.Hash, data []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(data)))
	h.Write(n[:])
	h.Write(data)
}

// readRecord returns the stored digest, or "" when there is no usable record.
func readRecord(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", &RecordError{Path: path, Err: err}
	}
	s := strings.TrimSpace(string(b))
	if !isHex(s) {
		return "", nil
	}
	return s, nil
}

// isHex checks if s is a lowercase hex string.
func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
