// Command jar-toc writes a table of contents for a jar: the protected-level
// API surface of its classes as reported by javap. The TOC is rewritten only
// when the jar content changes, and callers depend on the TOC instead of
// the jar so that implementation-only changes do not trigger rebuilds.
//
//	jar-toc --jar-path out/lib.jar --toc-path out/lib.jar.TOC [--stamp out/lib.stamp]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"buildtools/internal/config"
	"buildtools/internal/jartoc"
	"buildtools/internal/javap"
	"buildtools/internal/logging"
)

type options struct {
	jarPath string
	tocPath string
	stamp   string
	ignore  string
	javap   string
	force   bool
	watch   bool
	verbose bool
}

func newRootCmd(env config.Env) *cobra.Command {
	var (
		opts   options
		logger *zap.Logger
	)
	cmd := &cobra.Command{
		Use:           "jar-toc",
		Short:         "Write the API table of contents of a jar",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = logging.New(opts.verbose)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = logger.Sync() }()
			return run(cmd.Context(), opts, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.jarPath, "jar-path", "", "input jar")
	f.StringVar(&opts.tocPath, "toc-path", "", "output TOC file")
	f.StringVar(&opts.stamp, "stamp", "", "file to touch on success")
	f.StringVar(&opts.ignore, "ignore", "", "accepted for compatibility and ignored")
	f.StringVar(&opts.javap, "javap", env.Javap, "javap executable")
	f.BoolVar(&opts.force, "force", false, "regenerate even if the jar is unchanged")
	f.BoolVar(&opts.watch, "watch", false, "keep running and regenerate whenever the jar changes")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("jar-path")
	_ = cmd.MarkFlagRequired("toc-path")
	_ = f.MarkHidden("ignore")
	return cmd
}

func run(ctx context.Context, opts options, logger *zap.Logger) error {
	u := jartoc.NewUpdater(javap.NewRunner(opts.javap, logger), logger)
	u.Force = opts.force

	if opts.watch {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return u.Watch(ctx, opts.jarPath, opts.tocPath, opts.stamp)
	}

	res, err := u.Run(ctx, opts.jarPath, opts.tocPath, opts.stamp)
	if err != nil {
		return err
	}
	logger.Debug("done",
		zap.Bool("regenerated", res.Regenerated),
		zap.Bool("api_changed", res.APIChanged),
		zap.Int("classes", res.Classes))
	return nil
}

func main() {
	if err := newRootCmd(config.Load()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "jar-toc:", err)
		os.Exit(1)
	}
}
