// Command modules-gypi writes modules.gypi, the Blink modules source lists,
// leaving out the groups of disabled features.
//
//	modules-gypi [accessibility bluetooth geo_features indexeddb mediastream
//	              notifications plugins speech webaudio webcl webdatabase webmidi]
//	modules-gypi --disable webgl,vr --features features.yaml -o modules.gypi
//
// Positional values are booleans; true disables the feature.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"buildtools/internal/diff"
	"buildtools/internal/fileutil"
	"buildtools/internal/gypi"
	"buildtools/internal/logging"
	"buildtools/internal/validate"
)

// errStale is returned by --check when the output would change.
var errStale = errors.New("output is out of date")

type options struct {
	disable  []string
	features string
	output   string
	check    bool
	verbose  bool
}

func newRootCmd() *cobra.Command {
	var (
		opts   options
		logger *zap.Logger
	)
	cmd := &cobra.Command{
		Use:           "modules-gypi [" + strings.Join(gypi.LegacyArgOrder, " ") + "]",
		Short:         "Generate the Blink modules gypi source lists",
		Args:          cobra.MaximumNArgs(len(gypi.LegacyArgOrder)),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = logging.New(opts.verbose)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = logger.Sync() }()
			f, err := features(args, opts)
			if err != nil {
				return err
			}
			return generate(cmd.OutOrStdout(), f, opts, logger)
		},
	}

	fl := cmd.Flags()
	fl.StringSliceVar(&opts.disable, "disable", nil, "features to disable (comma-separated)")
	fl.StringVar(&opts.features, "features", "", "YAML file mapping feature name to disabled")
	fl.StringVarP(&opts.output, "output", "o", "modules.gypi", "output file")
	fl.BoolVar(&opts.check, "check", false, "fail if the output file is out of date instead of writing it")
	fl.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

// features combines the toggles: positional values first, then the feature
// file, then --disable.
func features(args []string, opts options) (gypi.Features, error) {
	f, err := gypi.ParseLegacyArgs(args)
	if err != nil {
		return f, err
	}
	if opts.features != "" {
		if err := f.ApplyFile(opts.features); err != nil {
			return f, err
		}
	}
	if err := f.Disable(opts.disable...); err != nil {
		return f, err
	}
	return f, nil
}

func generate(stdout io.Writer, f gypi.Features, opts options, logger *zap.Logger) error {
	m, err := gypi.Default()
	if err != nil {
		return err
	}
	if err := validate.Model(m); err != nil {
		return fmt.Errorf("invalid modules model:\n%w", err)
	}
	content := []byte(gypi.Render(m.Select(f)))
	logger.Debug("features", zap.Strings("disabled", f.DisabledNames()))

	old, _ := os.ReadFile(opts.output)
	if opts.check {
		if string(old) == string(content) {
			return nil
		}
		body, _ := diff.Unified("a/"+opts.output, "b/"+opts.output, old, content, diff.Options{})
		fmt.Fprint(stdout, body)
		return fmt.Errorf("%s: %w", opts.output, errStale)
	}

	changed, err := fileutil.WriteIfChanged(opts.output, content, 0o644)
	if err != nil {
		return err
	}
	if !changed {
		logger.Info("up to date", zap.String("output", opts.output))
		return nil
	}
	st := diff.Count(old, content)
	logger.Info("wrote", zap.String("output", opts.output), zap.Int("added", st.Added), zap.Int("removed", st.Removed))
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "modules-gypi:", err)
		os.Exit(1)
	}
}
