// Package watch rebuilds pipeline steps when their source files change.
// File events are debounced, mapped to their owning step, and expanded
// to downstream dependents before a normal sequential build run.
package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/liftoff-dev/liftoff/internal/engine"
	"github.com/liftoff-dev/liftoff/internal/state"
)

// DefaultDebounce is the window in which file events are coalesced
// before a rebuild starts.
const DefaultDebounce = 400 * time.Millisecond

// alwaysIgnored directories are skipped in every project: VCS and
// editor noise, dependency trees, and common build output.
var alwaysIgnored = []string{"node_modules", "target"}

// Options configures a Watcher.
type Options struct {
	// Engine executes the rebuilds. The watcher never closes it.
	Engine *engine.Engine
	// Args are forwarded verbatim to every rebuilt entrypoint, exactly
	// as in a plain build run.
	Args []string
	// KeepGoing continues independent steps after a failure.
	KeepGoing bool
	// Relaunch restarts the launch target after every fully successful
	// rebuild.
	Relaunch bool
	// Debounce is the event coalescing window. Zero means
	// DefaultDebounce.
	Debounce time.Duration
	// Ignore lists directory names to skip in addition to dot
	// directories, node_modules, and target.
	Ignore []string
	// Logger is optional; nil discards.
	Logger *slog.Logger
	// Events receives run progress for each rebuild, like a normal run.
	Events func(engine.RunEvent)
	// OnRun is called after each rebuild finishes, whatever its outcome.
	OnRun func(run *state.Run)
}

// Watcher owns the fsnotify loop for one engine.
type Watcher struct {
	opts    Options
	logger  *slog.Logger
	ignored map[string]bool
	sup     *engine.Supervisor

	// stepDirs maps each watched root to its owning step, longest
	// directory first so nested step dirs resolve to the inner step.
	stepDirs []stepDir
}

type stepDir struct {
	dir  string
	step string
}

// New validates the options and prepares a watcher. Call Run to start.
func New(opts Options) (*Watcher, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("watch: engine is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Relaunch && opts.Engine.GetLaunch() == nil {
		return nil, fmt.Errorf("watch: relaunch requested but no launch target configured")
	}

	ignored := make(map[string]bool)
	for _, name := range alwaysIgnored {
		ignored[name] = true
	}
	for _, name := range opts.Ignore {
		ignored[name] = true
	}

	w := &Watcher{
		opts:    opts,
		logger:  opts.Logger,
		ignored: ignored,
	}
	if opts.Relaunch {
		w.sup = engine.NewSupervisor(opts.Engine)
	}

	for _, s := range opts.Engine.GetSteps() {
		w.stepDirs = append(w.stepDirs, stepDir{dir: filepath.Clean(s.Dir), step: s.Name})
	}
	sort.Slice(w.stepDirs, func(i, j int) bool {
		return len(w.stepDirs[i].dir) > len(w.stepDirs[j].dir)
	})

	return w, nil
}

// Run builds everything once, then blocks rebuilding affected steps on
// file changes until ctx is cancelled. Cancellation is the normal way
// out and returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	w.rebuild(ctx, nil)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, sd := range w.stepDirs {
		if err := w.watchTree(watcher, sd.dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", sd.dir, err)
		}
	}

	w.logger.Info("watching for changes", "dirs", len(watcher.WatchList()), "debounce", w.opts.Debounce)

	var debounce *time.Timer
	var fire <-chan time.Time
	changed := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			if w.sup != nil {
				_ = w.sup.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if w.ignoredPath(event.Name) {
				continue
			}

			// New directories join the watch set so fresh source
			// trees keep triggering rebuilds.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watchTree(watcher, event.Name)
				}
			}

			step := w.owner(event.Name)
			if step == "" {
				continue
			}
			changed[step] = true

			if debounce == nil {
				debounce = time.NewTimer(w.opts.Debounce)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(w.opts.Debounce)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			steps := sortedKeys(changed)
			changed = make(map[string]bool)

			w.logger.Info("source changed, rebuilding", "steps", steps)
			w.rebuild(ctx, steps)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// rebuild runs the affected steps (all of them when steps is nil) and
// restarts the launch target on full success.
func (w *Watcher) rebuild(ctx context.Context, steps []string) {
	run, err := w.opts.Engine.Run(ctx, engine.RunOptions{
		Args:       w.opts.Args,
		Only:       steps,
		Downstream: len(steps) > 0,
		KeepGoing:  w.opts.KeepGoing,
		Events:     w.opts.Events,
	})

	if w.opts.OnRun != nil && run != nil {
		w.opts.OnRun(run)
	}

	if err != nil {
		w.logger.Error("rebuild failed", "error", err)
		return
	}

	if w.sup != nil {
		if err := w.sup.Start(ctx); err != nil {
			w.logger.Error("relaunch failed", "error", err)
		}
	}
}

// watchTree recursively registers dir and its subdirectories.
func (w *Watcher) watchTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		name := info.Name()
		if path != dir && (w.ignored[name] || strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// ignoredPath reports whether any element of path is an ignored or
// hidden directory name.
func (w *Watcher) ignoredPath(path string) bool {
	for _, part := range strings.Split(filepath.Clean(path), string(filepath.Separator)) {
		if w.ignored[part] || (len(part) > 1 && part[0] == '.') {
			return true
		}
	}
	return false
}

// owner resolves the step whose directory contains path, "" when the
// path belongs to no step.
func (w *Watcher) owner(path string) string {
	path = filepath.Clean(path)
	for _, sd := range w.stepDirs {
		if path == sd.dir || strings.HasPrefix(path, sd.dir+string(filepath.Separator)) {
			return sd.step
		}
	}
	return ""
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
