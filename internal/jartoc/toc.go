package jartoc

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"buildtools/internal/cache"
	"buildtools/internal/diff"
	"buildtools/internal/fileutil"
	"buildtools/internal/javap"
	"buildtools/internal/logging"
)

// recordSuffix names the fingerprint record stored next to the TOC.
const recordSuffix = ".md5.stamp"

// RecordPath returns the fingerprint record path for tocPath.
func RecordPath(tocPath string) string { return tocPath + recordSuffix }

// Result describes one UpdateTocIfStale call.
type Result struct {
	// Regenerated is true when the jar was disassembled again.
	Regenerated bool
	// APIChanged is true when the TOC content differs from the previous one
	// (or there was no previous TOC).
	APIChanged bool
	// Classes is the number of classes found; zero when not regenerated.
	Classes int
}

// Updater keeps a jar's TOC file up to date.
//
// One Updater call owns its TOC and record files for the duration of the
// call; concurrent calls for the same TOC path are not supported.
type Updater struct {
	Disassembler javap.Disassembler
	Logger       *zap.Logger
	// Force regenerates the TOC even when the jar is unchanged.
	Force bool
}

// NewUpdater returns an Updater using d to disassemble classes.
func NewUpdater(d javap.Disassembler, logger *zap.Logger) *Updater {
	return &Updater{Disassembler: d, Logger: logger}
}

// Run updates the TOC if stale and then touches stampPath, when given, to
// signal success to the build system.
func (u *Updater) Run(ctx context.Context, jarPath, tocPath, stampPath string) (Result, error) {
	res, err := u.UpdateTocIfStale(ctx, jarPath, tocPath)
	if err != nil {
		return res, err
	}
	if stampPath != "" {
		if err := fileutil.Touch(stampPath); err != nil {
			return res, &WriteError{Path: stampPath, Err: err}
		}
	}
	return res, nil
}

// UpdateTocIfStale regenerates tocPath when the content of jarPath changed
// since the last successful run, or when tocPath does not exist. In every
// successful case tocPath is touched afterwards so timestamp-based
// dependency trackers consider it fresh.
//
// On failure the TOC and its record are left as they were, except that a
// record whose TOC no longer exists is removed first.
func (u *Updater) UpdateTocIfStale(ctx context.Context, jarPath, tocPath string) (Result, error) {
	log := logging.OrNop(u.Logger).With(zap.String("jar", jarPath))

	if _, err := os.Stat(jarPath); err != nil {
		return Result{}, &InputError{Path: jarPath, Err: err}
	}

	var res Result
	op := func() error {
		r, err := u.updateToc(ctx, jarPath, tocPath, log)
		res = r
		return err
	}

	force := u.Force
	if !fileutil.Exists(tocPath) {
		force = true
		if err := cache.Clear(RecordPath(tocPath)); err != nil {
			return Result{}, &WriteError{Path: RecordPath(tocPath), Err: err}
		}
	}
	ran, err := cache.CallAndRecordIfStale(op, RecordPath(tocPath), []string{jarPath},
		cache.WithInputStrings(javap.Flags...),
		cache.WithForce(force))
	if err != nil {
		return res, classify(err, jarPath, RecordPath(tocPath), ran)
	}
	if !ran {
		log.Debug("jar unchanged, TOC up to date", zap.String("toc", tocPath))
	}

	if err := fileutil.Touch(tocPath); err != nil {
		return res, &WriteError{Path: tocPath, Err: err}
	}
	return res, nil
}

// updateToc is the cache-guarded step: enumerate, disassemble, extract,
// write.
func (u *Updater) updateToc(ctx context.Context, jarPath, tocPath string, log *zap.Logger) (Result, error) {
	classes, err := EnumerateClasses(jarPath)
	if err != nil {
		return Result{}, err
	}

	// An archive without classes has an empty API; the disassembler is not
	// invoked with an empty class list.
	var disassembly string
	if len(classes) > 0 {
		disassembly, err = u.Disassembler.Disassemble(ctx, jarPath, classes)
		if err != nil {
			return Result{}, fmt.Errorf("disassemble %s: %w", jarPath, err)
		}
	} else {
		log.Debug("no classes in jar, skipping disassembler")
	}
	toc := ExtractAPI(disassembly)

	old, readErr := os.ReadFile(tocPath)
	hadOld := readErr == nil
	if err := fileutil.WriteAtomic(tocPath, []byte(toc), 0o644); err != nil {
		return Result{}, &WriteError{Path: tocPath, Err: err}
	}

	res := Result{Regenerated: true, Classes: len(classes), APIChanged: !hadOld || string(old) != toc}
	switch {
	case !hadOld:
		log.Info("wrote TOC", zap.String("toc", tocPath), zap.Int("classes", len(classes)))
	case res.APIChanged:
		st := diff.Count(old, []byte(toc))
		log.Info("API changed",
			zap.String("toc", tocPath),
			zap.Int("added", st.Added),
			zap.Int("removed", st.Removed))
		if ce := log.Check(zap.DebugLevel, "TOC diff"); ce != nil {
			body, _ := diff.Unified("a/"+tocPath, "b/"+tocPath, old, []byte(toc), diff.Options{MaxBytes: 4 << 20})
			ce.Write(zap.String("diff", body))
		}
	default:
		log.Info("jar changed but API did not", zap.String("toc", tocPath))
	}
	return res, nil
}

// classify maps errors escaping the cache onto the package's taxonomy.
// Errors already typed by the guarded step pass through unchanged.
func classify(err error, jarPath, recordPath string, ran bool) error {
	var (
		inErr   *InputError
		wrErr   *WriteError
		toolErr *javap.ToolError
	)
	if errors.As(err, &inErr) || errors.As(err, &wrErr) || errors.As(err, &toolErr) {
		return err
	}
	var recErr *cache.RecordError
	if errors.As(err, &recErr) {
		return &WriteError{Path: recErr.Path, Err: recErr.Err}
	}
	if !ran {
		return &InputError{Path: jarPath, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &WriteError{Path: recordPath, Err: err}
}
