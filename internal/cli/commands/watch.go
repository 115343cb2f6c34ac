package commands

import (
	"os/signal"
	"syscall"

	"github.com/liftoff-dev/liftoff/internal/cli/output"
	"github.com/liftoff-dev/liftoff/internal/state"
	"github.com/liftoff-dev/liftoff/internal/status"
	"github.com/liftoff-dev/liftoff/internal/watch"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// WatchOptions holds options for the watch command.
type WatchOptions struct {
	Launch    bool
	Serve     string
	KeepGoing bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [-- build-args...]",
		Short: "Rebuild affected steps on file changes",
		Long: `Build everything once, then watch every step's directory and rebuild the
affected steps (plus their dependents) whenever source files change.
Events are debounced; dot directories, node_modules, and target are
ignored.

With --launch the target is restarted after each fully successful
rebuild. With --serve a JSON status API is exposed while watching:
GET /api/status, GET /api/runs, and an SSE stream at /events that pings
on every rebuild.`,
		Example: `  # Watch and rebuild
  liftoff watch

  # Forward arguments to every rebuild
  liftoff watch -- --release

  # Restart the target after each successful rebuild
  liftoff watch --launch

  # Expose the status API while watching
  liftoff watch --serve :4040`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts, forwardedArgs(cmd, args))
		},
	}

	cmd.Flags().BoolVar(&opts.Launch, "launch", false, "Restart the launch target after each successful rebuild")
	cmd.Flags().StringVar(&opts.Serve, "serve", "", "Address for the status API (e.g. :4040)")
	cmd.Flags().BoolVar(&opts.KeepGoing, "keep-going", false, "Continue independent steps after a failure")

	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions, buildArgs []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	if err := cfg.ValidateDirectories(); err != nil {
		return err
	}

	serveAddr := opts.Serve
	if serveAddr == "" {
		serveAddr = cfg.Watch.Serve
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var notifier *status.Notifier
	var srv *status.Server
	if serveAddr != "" {
		srv = status.NewServer(status.Config{
			Engine: eng,
			Addr:   serveAddr,
			Logger: cmdCtx.Logger,
		})
		notifier = srv.Notifier()
	}

	events := textRunEvents(r, "")
	if r.EffectiveMode() == output.ModeJSON {
		events = jsonRunEvents(r.Writer())
	}

	watcher, err := watch.New(watch.Options{
		Engine:    eng,
		Args:      buildArgs,
		KeepGoing: opts.KeepGoing,
		Relaunch:  opts.Launch,
		Debounce:  cfg.Watch.Debounce,
		Ignore:    cfg.Watch.Ignore,
		Logger:    cmdCtx.Logger,
		Events:    events,
		OnRun: func(_ *state.Run) {
			if notifier != nil {
				notifier.Broadcast()
			}
		},
	})
	if err != nil {
		return err
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return watcher.Run(egctx) })
	if srv != nil {
		eg.Go(func() error { return srv.Serve(egctx) })
	}

	r.Println("Watching for changes (ctrl-c to stop)...")
	return eg.Wait()
}
