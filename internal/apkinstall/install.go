package apkinstall

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"buildtools/internal/logging"
)

// PackageInstaller installs a package on one device.
type PackageInstaller interface {
	Install(ctx context.Context, serial, apkPath string, reinstall bool) error
}

// Result is the outcome of installing on one device.
type Result struct {
	Serial   string
	Err      error
	Duration time.Duration
}

// InstallAll installs apkPath on every serial with at most jobs installs in
// flight (jobs <= 0 means one per device). Every device is attempted
// regardless of failures elsewhere. Results follow the order of serials; the error
// joins all per-device failures.
func InstallAll(ctx context.Context, inst PackageInstaller, serials []string, apkPath string, reinstall bool, jobs int, logger *zap.Logger) ([]Result, error) {
	log := logging.OrNop(logger)
	if jobs <= 0 || jobs > len(serials) {
		jobs = len(serials)
	}

	results := make([]Result, len(serials))
	var g errgroup.Group
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, serial := range serials {
		i, serial := i, serial // per-iteration copy (go.mod targets go 1.21)
		g.Go(func() error {
			start := time.Now()
			log.Info("installing", zap.String("device", serial), zap.String("apk", apkPath))
			err := inst.Install(ctx, serial, apkPath, reinstall)
			results[i] = Result{Serial: serial, Err: err, Duration: time.Since(start)}
			if err != nil {
				log.Error("install failed", zap.String("device", serial), zap.Error(err))
			} else {
				log.Info("installed", zap.String("device", serial), zap.Duration("took", results[i].Duration))
			}
			// Failures are collected in results; returning nil keeps the
			// other devices going.
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Serial, r.Err))
		}
	}
	return results, errors.Join(errs...)
}
