package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/amp-labs/tickfsm/herd"
	"github.com/amp-labs/tickfsm/logger"
	"github.com/amp-labs/tickfsm/statemachine"
	"github.com/amp-labs/tickfsm/statemachine/presets"
	"github.com/fsnotify/fsnotify"
)

// isGraphFile reports whether source names a YAML file rather than a preset.
func isGraphFile(source string) bool {
	ext := strings.ToLower(filepath.Ext(source))

	return ext == ".yaml" || ext == ".yml" || strings.ContainsRune(source, filepath.Separator)
}

// loadGraph builds the graph named by source, either a preset or a YAML file.
func loadGraph(source string) (*statemachine.Graph, statemachine.StateID, error) {
	if !isGraphFile(source) {
		return presets.Load(source, nil)
	}

	cfg, err := statemachine.LoadConfig(source)
	if err != nil {
		return nil, statemachine.NoState, err
	}

	return cfg.Build(nil)
}

// reloader swaps the herd graph when the file's contents change. The
// fingerprint covers states and transitions only, so the initial state is
// tracked beside it.
type reloader struct {
	path        string
	herd        *herd.Herd
	fingerprint uint64
	initial     string
}

func newReloader(path string, h *herd.Herd) *reloader {
	graph, initial := h.Graph()

	return &reloader{path: path, herd: h, fingerprint: graph.Fingerprint(), initial: initial}
}

// reload returns false when the file produced the graph already running.
func (r *reloader) reload(ctx context.Context) (bool, error) {
	graph, initial, err := loadGraph(r.path)
	if err != nil {
		return false, err
	}

	state, ok := graph.State(initial)
	if !ok {
		return false, statemachine.ErrInitialStateNotFound
	}

	if graph.Fingerprint() == r.fingerprint && state.Name() == r.initial {
		return false, nil
	}

	report, err := r.herd.Replace(ctx, graph, initial)
	if err != nil {
		return false, err
	}

	r.fingerprint = graph.Fingerprint()
	r.initial = state.Name()

	logger.Get(ctx).Info("graph reloaded",
		logger.Graph(graph.Name()),
		slog.Int("restored", report.Restored),
		slog.Int("reset", report.Reset))

	return true, nil
}

// watchGraph reloads path on every write until ctx is done or the returned
// watcher is closed. The directory is watched so editors that replace the
// file by rename are still seen.
func watchGraph(ctx context.Context, path string, h *herd.Herd) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create graph watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to watch %s: %w", path, err), watcher.Close())
	}

	r := newReloader(path, h)
	target := filepath.Clean(path)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				if _, err := r.reload(ctx); err != nil {
					logger.Get(ctx).Error("graph reload failed, keeping current graph",
						slog.String("path", path), logger.Error(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				logger.Get(ctx).Warn("graph watcher error", logger.Error(err))
			}
		}
	}()

	return watcher, nil
}
