package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openfroyo/junction/pkg/config"
	"github.com/openfroyo/junction/pkg/engine"
	"github.com/openfroyo/junction/pkg/policy"
	"github.com/openfroyo/junction/pkg/telemetry"
)

// DefaultWatchDelay collapses a burst of file events into one check.
const DefaultWatchDelay = 300 * time.Millisecond

// Summary counts what a check loaded.
type Summary struct {
	Target     string `json:"target" yaml:"target"`
	Processors int    `json:"processors" yaml:"processors"`
	Resources  int    `json:"resources" yaml:"resources"`
	Policies   int    `json:"policies" yaml:"policies"`
}

// Check loads every catalogue and resolves every processor descriptor for
// the selected target.
func (w *Workspace) Check(ctx context.Context) (*Summary, error) {
	if err := w.Preload(ctx); err != nil {
		return nil, err
	}
	processors, err := w.Processors()
	if err != nil {
		return nil, err
	}
	resources, err := w.Resources()
	if err != nil {
		return nil, err
	}
	tc, err := w.Target()
	if err != nil {
		return nil, err
	}
	descriptors, err := processors.ProcessorDescriptors(tc.TemplateMapping())
	if err != nil {
		return nil, err
	}

	s := &Summary{Target: tc.String(), Processors: len(descriptors)}
	for _, t := range engine.ResourceTypes() {
		s.Resources += resources.Count(t)
	}
	eng, err := w.Policy()
	if err != nil {
		return nil, err
	}
	if eng != nil {
		s.Policies = len(eng.Policies())
	}
	return s, nil
}

// Watch checks a fresh workspace built from settings, then again after every
// change to a catalogue file, and hands each result to report. It blocks
// until ctx is done.
func Watch(ctx context.Context, settings *config.Settings, opts Options, delay time.Duration, report func(*Summary, error)) error {
	logger := telemetry.FromContext(ctx).NewComponentLogger("watch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range []string{settings.ProcessorDir, settings.ResourceDir, settings.PolicyDir} {
		if dir == "" {
			continue
		}
		if err := watchDirectory(watcher, dir); err != nil {
			return engine.NewConfigError("failed to watch directory", err).
				WithCode(engine.ErrCodeInvalidConfig).
				WithSubjectString("dir", dir)
		}
	}
	logger.Infof("watching %d directories", len(watcher.WatchList()))

	check := func() {
		ws := New(settings, opts)
		s, err := ws.Check(ctx)
		if cerr := ws.Close(); cerr != nil {
			logger.WithError(cerr).Warn("failed to close workspace")
		}
		report(s, err)
	}
	check()

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchDirectory(watcher, event.Name); err != nil {
						logger.WithError(err).Warnf("failed to watch %s", event.Name)
					}
					continue
				}
			}
			if event.Op == fsnotify.Chmod || !catalogueFile(event.Name) {
				continue
			}
			logger.WithField("file", event.Name).Debugf("catalogue file changed (%s)", event.Op)
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(delay)
			pending = timer.C

		case <-pending:
			pending = nil
			check()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("watcher error")
		}
	}
}

// watchDirectory adds dir and every directory below it.
func watchDirectory(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func catalogueFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == policy.Extension || slices.Contains(config.Extensions, ext)
}
