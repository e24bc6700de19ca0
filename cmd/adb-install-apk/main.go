// Command adb-install-apk installs an APK on every attached Android device,
// or on the one given with --device.
//
//	adb-install-apk [--release] [--keep_data] ContentShell
//
// A bare name is looked up as <out>/<build type>/apks/<name>.apk.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"buildtools/internal/adb"
	"buildtools/internal/apkinstall"
	"buildtools/internal/config"
	"buildtools/internal/logging"
)

type options struct {
	apk              string
	apkPackage       string
	keepData         bool
	debug            bool
	release          bool
	device           string
	adb              string
	jobs             int
	retries          int
	retryInterval    time.Duration
	maxRetryInterval time.Duration
	verbose          bool
}

func newRootCmd(env config.Env) *cobra.Command {
	var (
		opts   options
		logger *zap.Logger
	)
	cmd := &cobra.Command{
		Use:           "adb-install-apk [target]",
		Short:         "Install an APK on attached Android devices",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = logging.New(opts.verbose)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = logger.Sync() }()
			target, err := resolveTarget(opts.apk, args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, env, target, opts, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.apk, "apk", "", "APK name or path to install")
	f.StringVar(&opts.apkPackage, "apk_package", "", "package name of the APK")
	f.BoolVar(&opts.keepData, "keep_data", false, "keep the package data when reinstalling")
	f.BoolVar(&opts.debug, "debug", false, "use the Debug build (default from BUILDTYPE)")
	f.BoolVar(&opts.release, "release", false, "use the Release build")
	f.StringVarP(&opts.device, "device", "d", "", "install only on this device serial")
	f.StringVar(&opts.adb, "adb", env.ADB, "adb executable")
	f.IntVar(&opts.jobs, "jobs", 0, "parallel installs (0 = one per device)")
	f.IntVar(&opts.retries, "retries", apkinstall.DefaultRetryPolicy.Attempts, "device discovery attempts")
	f.DurationVar(&opts.retryInterval, "retry-interval", apkinstall.DefaultRetryPolicy.Interval, "first wait between discovery attempts")
	f.DurationVar(&opts.maxRetryInterval, "max-retry-interval", apkinstall.DefaultRetryPolicy.MaxInterval, "longest wait between discovery attempts")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	_ = f.MarkDeprecated("apk_package", "it is no longer used")
	cmd.MarkFlagsMutuallyExclusive("debug", "release")
	return cmd
}

// resolveTarget picks the APK from --apk or the single positional argument.
func resolveTarget(apkFlag string, args []string) (string, error) {
	switch {
	case apkFlag != "" && len(args) > 0:
		return "", errors.New("--apk and a positional target are mutually exclusive")
	case len(args) > 1:
		return "", fmt.Errorf("expected at most one target, got %d", len(args))
	case len(args) == 1:
		return args[0], nil
	case apkFlag != "":
		return apkFlag, nil
	}
	return "", errors.New("no APK target given; pass --apk or a positional target")
}

func buildType(env config.Env, opts options) string {
	switch {
	case opts.release:
		return config.BuildTypeRelease
	case opts.debug:
		return config.BuildTypeDebug
	}
	return env.BuildType
}

func run(ctx context.Context, env config.Env, target string, opts options, logger *zap.Logger) error {
	results, err := apkinstall.Run(ctx, adb.New(opts.adb), apkinstall.Options{
		APK:      target,
		KeepData: opts.keepData,
		Device:   opts.device,
		OutDir:   env.OutDirectory(buildType(env, opts)),
		Jobs:     opts.jobs,
		Retry: apkinstall.RetryPolicy{
			Attempts:    opts.retries,
			Interval:    opts.retryInterval,
			MaxInterval: opts.maxRetryInterval,
		},
	}, logger)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if len(results) > 0 {
		logger.Info("install finished", zap.Int("devices", len(results)), zap.Int("failed", failed))
	}
	return err
}

func main() {
	if err := newRootCmd(config.Load()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "adb-install-apk:", err)
		os.Exit(1)
	}
}
