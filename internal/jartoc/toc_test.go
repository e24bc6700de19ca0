package jartoc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildtools/internal/javap"
	"buildtools/internal/ziputil"
)

// fakeJavap records invocations and answers with canned disassembly.
type fakeJavap struct {
	mu     sync.Mutex
	calls  [][]string
	output func(classes []string) string
	err    error
}

func (f *fakeJavap) Disassemble(_ context.Context, archivePath string, classNames []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{archivePath}, classNames...))
	if f.err != nil {
		return "", f.err
	}
	if f.output != nil {
		return f.output(classNames), nil
	}
	var b strings.Builder
	for _, c := range classNames {
		b.WriteString("public class " + c + "\n")
		b.WriteString("  minor version: 0\n")
		b.WriteString("const #1 = Asciz " + c + ";\n")
		b.WriteString("  Code:\n")
	}
	return b.String(), nil
}

func (f *fakeJavap) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func writeJar(t *testing.T, path string, members ...string) {
	t.Helper()
	entries := make([]ziputil.Entry, 0, len(members))
	for _, m := range members {
		var data []byte
		if !strings.HasSuffix(m, "/") {
			data = []byte(m)
		}
		entries = append(entries, ziputil.Entry{Name: m, Data: data})
	}
	require.NoError(t, ziputil.Create(path, entries))
}

func TestEnumerateClasses(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "base.jar")
	writeJar(t, jar,
		"META-INF/MANIFEST.MF",
		"org/chromium/base/Foo$Bar.class",
		"org/chromium/base/",
		"org/chromium/base/Foo.class",
		"org/chromium/base/res.txt",
	)
	got, err := EnumerateClasses(jar)
	require.NoError(t, err)
	want := []string{"org.chromium.base.Foo$Bar", "org.chromium.base.Foo"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("classes mismatch (-want +got):\n%s", diff)
	}
}

func TestClassName(t *testing.T) {
	name, ok := ClassName("org/chromium/base/Foo$Bar.class")
	assert.True(t, ok)
	assert.Equal(t, "org.chromium.base.Foo$Bar", name)

	_, ok = ClassName("org/chromium/base/Foo.java")
	assert.False(t, ok)
}

func TestEnumerateClassesCorruptArchive(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "bad.jar")
	require.NoError(t, os.WriteFile(jar, []byte("PK but not really"), 0o644))
	_, err := EnumerateClasses(jar)
	var inErr *InputError
	require.True(t, errors.As(err, &inErr))
	assert.ErrorIs(t, err, ziputil.ErrFormat)
}

func TestUpdateTocIfStaleIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "base.jar")
	toc := filepath.Join(dir, "base.jar.TOC")
	writeJar(t, jar, "org/a/A.class", "org/a/B.class")

	fj := &fakeJavap{}
	u := NewUpdater(fj, nil)

	res, err := u.UpdateTocIfStale(context.Background(), jar, toc)
	require.NoError(t, err)
	assert.True(t, res.Regenerated)
	assert.True(t, res.APIChanged)
	assert.Equal(t, 2, res.Classes)
	first, err := os.ReadFile(toc)
	require.NoError(t, err)
	assert.Equal(t, "public class org.a.A\n  minor version: 0\npublic class org.a.B\n  minor version: 0", string(first))

	res, err = u.UpdateTocIfStale(context.Background(), jar, toc)
	require.NoError(t, err)
	assert.False(t, res.Regenerated)
	second, _ := os.ReadFile(toc)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fj.callCount())

	// Classes are passed in archive order after the fixed flags' classpath.
	assert.Equal(t, []string{jar, "org.a.A", "org.a.B"}, fj.calls[0])
	assert.FileExists(t, RecordPath(toc))
}

func TestUpdateTocIfStaleReactsToJarChange(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "base.jar")
	toc := filepath.Join(dir, "base.jar.TOC")
	writeJar(t, jar, "org/a/A.class")

	fj := &fakeJavap{}
	u := NewUpdater(fj, nil)
	_, err := u.UpdateTocIfStale(context.Background(), jar, toc)
	require.NoError(t, err)

	writeJar(t, jar, "org/a/A.class", "org/a/C.class")
	res, err := u.UpdateTocIfStale(context.Background(), jar, toc)
	require.NoError(t, err)
	assert.True(t, res.Regenerated)
	assert.True(t, res.APIChanged)
	assert.Equal(t, 2, fj.callCount())

	got, _ := os.ReadFile(toc)
	assert.Contains(t, string(got), "public class org.a.C")
}

func TestUpdateTocIfStaleRebuiltJarWithSameAPI(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "base.jar")
	toc := filepath.Join(dir, "base.jar.TOC")
	writeJar(t, jar, "org/a/A.class")

	fj := &fakeJavap{output: func([]string) string { return "public class A\n  Code:\n   0: nop\n" }}
	u := NewUpdater(fj, nil)
	_, err := u.UpdateTocIfStale(context.Background(), jar, toc)
	require.NoError(t, err)

	// Different bytes in the jar, same API surface.
	require.NoError(t, ziputil.Create(jar, []ziputil.Entry{{Name: "org/a/A.class", Data: []byte("new body")}}))
	fj.output = func([]string) string { return "public class A\n  Code:\n   0: aload_0\n" }
	res, err := u.UpdateTocIfStale(context.Background(), jar, toc)
	require.NoError(t, err)
	assert.True(t, res.Regenerated)
	assert.False(t, res.APIChanged)
}

func TestUpdateTocIfStaleToolFailureLeavesFilesUntouched(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "base.jar")
	toc := filepath.Join(dir, "base.jar.TOC")
	writeJar(t, jar, "org/a/A.class")

	fj := &fakeJavap{}
	u := NewUpdater(fj, nil)
	_, err := u.UpdateTocIfStale(context.Background(), jar, toc)
	require.NoError(t, err)
	tocBefore, _ := os.ReadFile(toc)
	recBefore, _ := os.ReadFile(RecordPath(toc))

	writeJar(t, jar, "org/a/A.class", "org/a/B.class")
	fj.err = &javap.ToolError{Tool: "javap", ExitCode: 1, Output: "boom"}
	_, err = u.UpdateTocIfStale(context.Background(), jar, toc)

	var te *javap.ToolError
	require.True(t, errors.As(err, &te), "want ToolError, got %v", err)
	tocAfter, _ := os.ReadFile(toc)
	recAfter, _ := os.ReadFile(RecordPath(toc))
	assert.Equal(t, tocBefore, tocAfter)
	assert.Equal(t, recBefore, recAfter)

	// Once the tool works again the step reruns.
	fj.err = nil
	res, err := u.UpdateTocIfStale(context.Background(), jar, toc)
	require.NoError(t, err)
	assert.True(t, res.Regenerated)
}

func TestUpdateTocIfStaleNoClassesSkipsDisassembler(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "res.jar")
	toc := filepath.Join(dir, "res.jar.TOC")
	writeJar(t, jar, "META-INF/MANIFEST.MF", "res/values.xml")

	fj := &fakeJavap{}
	res, err := NewUpdater(fj, nil).UpdateTocIfStale(context.Background(), jar, toc)
	require.NoError(t, err)
	assert.True(t, res.Regenerated)
	assert.Zero(t, res.Classes)
	assert.Zero(t, fj.callCount())

	got, err := os.ReadFile(toc)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.FileExists(t, RecordPath(toc))
}

func TestUpdateTocIfStaleMissingJar(t *testing.T) {
	dir := t.TempDir()
	toc := filepath.Join(dir, "x.TOC")
	_, err := NewUpdater(&fakeJavap{}, nil).UpdateTocIfStale(context.Background(), filepath.Join(dir, "missing.jar"), toc)

	var inErr *InputError
	require.True(t, errors.As(err, &inErr))
	assert.NoFileExists(t, toc)
	assert.NoFileExists(t, RecordPath(toc))
}

func TestUpdateTocIfStaleCorruptJarWritesNothing(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "bad.jar")
	toc := filepath.Join(dir, "bad.jar.TOC")
	require.NoError(t, os.WriteFile(jar, []byte("garbage"), 0o644))

	_, err := NewUpdater(&fakeJavap{}, nil).UpdateTocIfStale(context.Background(), jar, toc)
	var inErr *InputError
	require.True(t, errors.As(err, &inErr))
	assert.NoFileExists(t, toc)
	assert.NoFileExists(t, RecordPath(toc))
}

func TestUpdateTocIfStaleRegeneratesDeletedToc(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "base.jar")
	toc := filepath.Join(dir, "base.jar.TOC")
	writeJar(t, jar, "org/a/A.class")

	fj := &fakeJavap{}
	u := NewUpdater(fj, nil)
	_, err := u.UpdateTocIfStale(context.Background(), jar, toc)
	require.NoError(t, err)
	require.NoError(t, os.Remove(toc))

	res, err := u.UpdateTocIfStale(context.Background(), jar, toc)
	require.NoError(t, err)
	assert.True(t, res.Regenerated)
	got, _ := os.ReadFile(toc)
	assert.Contains(t, string(got), "public class org.a.A")
}

func TestUpdateTocIfStaleDropsOrphanRecord(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "base.jar")
	toc := filepath.Join(dir, "base.jar.TOC")
	writeJar(t, jar, "org/a/A.class")

	fj := &fakeJavap{}
	u := NewUpdater(fj, nil)
	_, err := u.UpdateTocIfStale(context.Background(), jar, toc)
	require.NoError(t, err)
	require.NoError(t, os.Remove(toc))

	fj.err = errors.New("javap crashed")
	_, err = u.UpdateTocIfStale(context.Background(), jar, toc)
	require.Error(t, err)
	assert.NoFileExists(t, toc)
	assert.NoFileExists(t, RecordPath(toc))
}

func TestUpdateTocIfStaleUnreadableRecordBlamesRecord(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "base.jar")
	toc := filepath.Join(dir, "base.jar.TOC")
	writeJar(t, jar, "org/a/A.class")
	require.NoError(t, os.WriteFile(toc, []byte("public class org.a.A"), 0o644))
	require.NoError(t, os.Mkdir(RecordPath(toc), 0o755))

	fj := &fakeJavap{}
	_, err := NewUpdater(fj, nil).UpdateTocIfStale(context.Background(), jar, toc)

	var inErr *InputError
	assert.False(t, errors.As(err, &inErr), "record failure must not be reported as a jar problem")
	var wrErr *WriteError
	require.True(t, errors.As(err, &wrErr), "want *WriteError, got %v", err)
	assert.Equal(t, RecordPath(toc), wrErr.Path)
	assert.Zero(t, fj.callCount())
}

func TestUpdateTocIfStaleTouchesOnCacheHit(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "base.jar")
	toc := filepath.Join(dir, "base.jar.TOC")
	writeJar(t, jar, "org/a/A.class")

	u := NewUpdater(&fakeJavap{}, nil)
	_, err := u.UpdateTocIfStale(context.Background(), jar, toc)
	require.NoError(t, err)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(toc, old, old))
	res, err := u.UpdateTocIfStale(context.Background(), jar, toc)
	require.NoError(t, err)
	require.False(t, res.Regenerated)

	fi, err := os.Stat(toc)
	require.NoError(t, err)
	assert.True(t, fi.ModTime().After(old.Add(30*time.Minute)))
}

func TestForceRegenerates(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "base.jar")
	toc := filepath.Join(dir, "base.jar.TOC")
	writeJar(t, jar, "org/a/A.class")

	fj := &fakeJavap{}
	u := NewUpdater(fj, nil)
	_, err := u.UpdateTocIfStale(context.Background(), jar, toc)
	require.NoError(t, err)

	u.Force = true
	res, err := u.UpdateTocIfStale(context.Background(), jar, toc)
	require.NoError(t, err)
	assert.True(t, res.Regenerated)
	assert.False(t, res.APIChanged)
	assert.Equal(t, 2, fj.callCount())
}

func TestRunTouchesStamp(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "base.jar")
	toc := filepath.Join(dir, "base.jar.TOC")
	stamp := filepath.Join(dir, "stamps", "jar_toc.stamp")
	writeJar(t, jar, "org/a/A.class")

	_, err := NewUpdater(&fakeJavap{}, nil).Run(context.Background(), jar, toc, stamp)
	require.NoError(t, err)
	assert.FileExists(t, stamp)
}

func TestRunDoesNotTouchStampOnFailure(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "base.jar")
	toc := filepath.Join(dir, "base.jar.TOC")
	stamp := filepath.Join(dir, "jar_toc.stamp")
	writeJar(t, jar, "org/a/A.class")

	fj := &fakeJavap{err: &javap.ToolError{Tool: "javap", ExitCode: 2}}
	_, err := NewUpdater(fj, nil).Run(context.Background(), jar, toc, stamp)
	require.Error(t, err)
	assert.NoFileExists(t, stamp)
	assert.NoFileExists(t, toc)
	assert.NoFileExists(t, RecordPath(toc))
}
