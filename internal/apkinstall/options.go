package apkinstall

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"buildtools/internal/logging"
)

// Options configure one install run.
type Options struct {
	// APK is the package to install, as given by the user.
	APK string
	// KeepData reinstalls while keeping the application's data.
	KeepData bool
	// Device restricts the install to one serial.
	Device string
	// OutDir is the build output directory searched for <OutDir>/apks/<APK>.
	OutDir string
	// Jobs bounds parallel installs; 0 means one per device.
	Jobs  int
	Retry RetryPolicy
}

// ResolveAPKPath qualifies the APK name the way the build lays out
// packages: ".apk" is appended when missing, and a name that does not exist
// as given is looked up under <outDir>/apks/.
func ResolveAPKPath(apk, outDir string) string {
	if !strings.HasSuffix(apk, ".apk") {
		apk += ".apk"
	}
	if _, err := os.Stat(apk); err == nil {
		return apk
	}
	return filepath.Join(outDir, "apks", apk)
}

// Client is the adb surface needed for a full install run.
type Client interface {
	DeviceLister
	PackageInstaller
}

// Run discovers devices and installs the APK on all of them.
func Run(ctx context.Context, c Client, opts Options, logger *zap.Logger) ([]Result, error) {
	if opts.APK == "" {
		return nil, errors.New("apk target not specified")
	}
	log := logging.OrNop(logger).With(zap.String("session", uuid.NewString()))
	apk := ResolveAPKPath(opts.APK, opts.OutDir)

	d := &Discoverer{Lister: c, Policy: opts.Retry, Logger: log}
	serials, err := d.Discover(ctx, opts.Device)
	if err != nil {
		return nil, err
	}
	log.Info("found devices", zap.Strings("devices", serials), zap.String("apk", apk))
	return InstallAll(ctx, c, serials, apk, opts.KeepData, opts.Jobs, log)
}
