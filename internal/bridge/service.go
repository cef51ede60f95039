// Package bridge runs the scan and link pipeline and owns the exclusion
// actions exposed to the trigger surfaces.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/obridge/internal/apperr"
	"github.com/starford/obridge/internal/linker"
	"github.com/starford/obridge/internal/models"
	"github.com/starford/obridge/internal/scanner"
	"github.com/starford/obridge/internal/settings"
	"github.com/starford/obridge/internal/snapshot"
	"github.com/starford/obridge/internal/storage"
)

// Run kinds.
const (
	KindScan   = "scan"
	KindLink   = "link"
	KindBridge = "bridge"
)

// Report is the outcome of one pipeline run.
type Report struct {
	models.Run
	Changed []string `json:"changed"`
}

// LinkOptions tune a manual link pass.
type LinkOptions struct {
	DryRun bool
}

// Service coordinates the document store, the snapshot database and the
// settings file. At most one pipeline run is active at a time.
type Service struct {
	store    storage.Provider
	db       snapshot.Store
	settings *settings.Store
	notifier Notifier
	logger   *slog.Logger

	running atomic.Bool

	mu      sync.RWMutex
	current settings.Settings
}

// NewService loads the current settings and returns a ready service.
func NewService(store storage.Provider, db snapshot.Store, st *settings.Store, notifier Notifier, logger *slog.Logger) (*Service, error) {
	cur, err := st.Load()
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Service{
		store:    store,
		db:       db,
		settings: st,
		notifier: notifier,
		logger:   logger,
		current:  cur,
	}, nil
}

// Settings returns a copy of the active settings.
func (s *Service) Settings() settings.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// ApplySettings replaces the active settings without persisting them.
// It is the callback for external edits picked up by the settings watcher.
func (s *Service) ApplySettings(v settings.Settings) {
	s.mu.Lock()
	s.current = v.Clone()
	s.mu.Unlock()
}

// Scan rebuilds and persists the alias snapshot.
func (s *Service) Scan(_ context.Context) (Report, error) {
	return s.run(KindScan, func(r *Report) error {
		return s.scan(r)
	})
}

// Link rewrites documents from the persisted snapshot.
func (s *Service) Link(_ context.Context, opts LinkOptions) (Report, error) {
	return s.run(KindLink, func(r *Report) error {
		return s.link(r, opts)
	})
}

// Bridge scans and then links, the single "scan and link" action.
func (s *Service) Bridge(_ context.Context) (Report, error) {
	return s.run(KindBridge, func(r *Report) error {
		if err := s.scan(r); err != nil {
			return err
		}
		return s.link(r, LinkOptions{})
	})
}

func (s *Service) scan(r *Report) error {
	cur := s.Settings()
	snap, err := scanner.Scan(s.store, cur.Policy, s.logger)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if err := s.db.Replace(snap); err != nil {
		return fmt.Errorf("scan: persist snapshot: %w", err)
	}
	r.Records = len(snap)
	s.notifier.Notify("Scan complete!")
	return nil
}

func (s *Service) link(r *Report, opts LinkOptions) error {
	cur := s.Settings()
	snap, err := s.db.Load()
	if err != nil {
		return fmt.Errorf("link: load snapshot: %w", err)
	}
	sum, err := linker.Link(s.store, snap, cur.Policy, linker.Options{
		AddAliasToSelf: cur.AddAliasToSelf,
		DryRun:         opts.DryRun,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("link: %w", err)
	}
	r.Substitutions = sum.Substitutions
	r.Links = sum.Links
	r.Documents = sum.Documents
	r.Changed = sum.Changed
	if opts.DryRun {
		s.notifier.Notify(fmt.Sprintf("Preview complete! %d links would be added.", sum.Substitutions))
		return nil
	}
	s.notifier.Notify(fmt.Sprintf("Bridging complete! %d links added.", sum.Substitutions))
	return nil
}

// run applies the in-flight guard, times fn and records the run.
func (s *Service) run(kind string, fn func(*Report) error) (Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Report{}, apperr.ErrRunInProgress
	}
	defer s.running.Store(false)

	r := Report{
		Run:     models.Run{ID: uuid.NewString(), Kind: kind, StartedAt: time.Now().UTC()},
		Changed: []string{},
	}
	err := fn(&r)
	r.FinishedAt = time.Now().UTC()
	if err != nil {
		r.Error = err.Error()
		s.logger.Error("run failed",
			slog.String("run_id", r.ID),
			slog.String("kind", kind),
			slog.String("error", err.Error()))
	} else {
		s.logger.Info("run finished",
			slog.String("run_id", r.ID),
			slog.String("kind", kind),
			slog.Int("records", r.Records),
			slog.Int("links", r.Links),
			slog.Int("documents", r.Documents))
	}
	if recErr := s.db.RecordRun(r.Run); recErr != nil {
		s.logger.Warn("record run failed", slog.String("run_id", r.ID), slog.String("error", recErr.Error()))
	}
	if l, ok := s.notifier.(RunListener); ok {
		l.RunFinished(r.Run)
	}
	return r, err
}

// Running reports whether a pipeline run is in flight.
func (s *Service) Running() bool { return s.running.Load() }

// Snapshot returns the persisted snapshot.
func (s *Service) Snapshot(_ context.Context) (models.Snapshot, error) {
	return s.db.Load()
}

// Runs returns recent run history, newest first.
func (s *Service) Runs(_ context.Context, limit int) ([]models.Run, error) {
	return s.db.ListRuns(limit)
}

func (s *Service) stat(path string) (models.Entry, error) {
	e, err := s.store.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Entry{}, apperr.ErrNotFound
		}
		if errors.Is(err, storage.ErrInvalidPath) {
			return models.Entry{}, apperr.ErrInvalidPath
		}
		return models.Entry{}, err
	}
	return e, nil
}
