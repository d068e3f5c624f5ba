// Package app runs place group update cycles: at startup, on demand and on a
// timer.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mohammed-shakir/geodb-places/internal/core/config"
	"github.com/mohammed-shakir/geodb-places/internal/core/observability"
	"github.com/mohammed-shakir/geodb-places/internal/geodb"
	mylog "github.com/mohammed-shakir/geodb-places/internal/logger"
	"github.com/mohammed-shakir/geodb-places/internal/places"
)

// GeoDB is what a cycle needs from the geoDB client.
type GeoDB interface {
	places.GeoDB
	WhoAmI(ctx context.Context) (string, error)
}

// CycleRegistry is the registry as seen by the cycle.
type CycleRegistry interface {
	places.Registry
	BeginCycle(ctx context.Context) error
}

type Options struct {
	Config     config.Config
	Registry   CycleRegistry
	Annotator  places.FeatureAnnotator
	HTTPClient *http.Client
	Logger     *slog.Logger
	// NewGeoDB overrides how the client is built from resolved credentials.
	NewGeoDB func(config.Connection) (GeoDB, error)
}

// Syncer runs update cycles one at a time.
type Syncer struct {
	cfg      config.Config
	reg      CycleRegistry
	ann      places.FeatureAnnotator
	hc       *http.Client
	logger   *slog.Logger
	newGeoDB func(config.Connection) (GeoDB, error)

	mu      sync.Mutex
	last    atomic.Pointer[places.Report]
	watched atomic.Pointer[map[string]struct{}]
	trigger chan string
}

func NewSyncer(opts Options) *Syncer {
	s := &Syncer{
		cfg:      opts.Config,
		reg:      opts.Registry,
		ann:      opts.Annotator,
		hc:       opts.HTTPClient,
		logger:   opts.Logger,
		newGeoDB: opts.NewGeoDB,
		trigger:  make(chan string, 1),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.newGeoDB == nil {
		s.newGeoDB = s.defaultGeoDB
	}
	empty := map[string]struct{}{}
	s.watched.Store(&empty)
	return s
}

func (s *Syncer) defaultGeoDB(c config.Connection) (GeoDB, error) {
	return geodb.New(geodb.Options{
		ServerURL:    c.ServerURL,
		ServerPort:   c.ServerPort,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Audience:     c.Audience,
		AuthDomain:   c.AuthDomain.Raw,
		HTTPClient:   s.hc,
		Logger:       s.logger,
	})
}

// RunCycle loads the places configuration and updates every place group.
// Configuration and credential failures abort the cycle; per-group failures
// are reported in the returned Report.
func (s *Syncer) RunCycle(ctx context.Context) places.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = mylog.WithComponent(mylog.WithCycleID(ctx, ""), "sync")
	start := time.Now()
	rep := s.cycle(ctx)
	rep.CycleID = mylog.CycleID(ctx)
	rep.Elapsed = time.Since(start)
	if rep.Err != nil {
		rep.Error = rep.Err.Error()
	}

	observability.ObserveCycle(rep.Result(), rep.Elapsed.Seconds())
	s.last.Store(&rep)

	switch {
	case rep.Skipped:
		s.logger.InfoContext(ctx, "geoDB places disabled, cycle skipped", "config", s.cfg.PlacesConfig)
	case rep.Err != nil:
		s.logger.ErrorContext(ctx, "update cycle failed", "err", rep.Err, "groups", len(rep.Outcomes))
	default:
		s.logger.InfoContext(ctx, "update cycle done",
			"result", rep.Result(), "groups", len(rep.Outcomes), "failed", rep.Failed(), "elapsed", rep.Elapsed)
	}
	return rep
}

func (s *Syncer) cycle(ctx context.Context) places.Report {
	file, err := config.LoadPlaces(s.cfg.PlacesConfig)
	if err != nil {
		return places.Report{Aborted: true, Err: err}
	}
	if !file.HasGeoDB() {
		return places.Report{Skipped: true}
	}

	conn, err := config.ResolveConnection(file.Resolver())
	if err != nil {
		return places.Report{Aborted: true, Err: fmt.Errorf("resolve geoDB connection: %w", err)}
	}
	descs, err := file.Descriptors()
	if err != nil {
		return places.Report{Aborted: true, Err: err}
	}
	s.watch(descs)

	db, err := s.newGeoDB(conn)
	if err != nil {
		return places.Report{Aborted: true, Err: fmt.Errorf("geoDB client: %w", err)}
	}
	if who, err := db.WhoAmI(ctx); err != nil {
		s.logger.WarnContext(ctx, "geoDB whoami failed", "err", err)
	} else {
		s.logger.DebugContext(ctx, "geoDB whoami", "user", who)
	}

	if err := s.reg.BeginCycle(ctx); err != nil {
		return places.Report{Aborted: true, Err: fmt.Errorf("reset group cache: %w", err)}
	}

	u := places.NewUpdater(db, s.reg, places.Options{
		BaseURL:     s.cfg.BaseURL,
		StopOnError: s.cfg.StopOnError,
		Annotator:   s.ann,
		Logger:      s.logger,
	})
	return u.Run(ctx, descs)
}

func (s *Syncer) watch(descs []places.Descriptor) {
	set := make(map[string]struct{}, len(descs))
	for _, d := range descs {
		if q, err := places.ParseQuery(d.Query); err == nil {
			set[q.Database+"_"+q.Collection] = struct{}{}
		}
	}
	s.watched.Store(&set)
}

// Watches reports whether the relation "<database>_<collection>" backs a
// place group of the last loaded configuration.
func (s *Syncer) Watches(name string) bool {
	_, ok := (*s.watched.Load())[name]
	return ok
}

// LastReport returns the report of the most recent cycle.
func (s *Syncer) LastReport() (places.Report, bool) {
	r := s.last.Load()
	if r == nil {
		return places.Report{}, false
	}
	return *r, true
}

// Readiness is true once a cycle has finished, whatever its outcome.
func (s *Syncer) Readiness() (bool, string) {
	r, ok := s.LastReport()
	if !ok {
		return false, "initial update cycle running"
	}
	return true, r.Result()
}

// Trigger requests a cycle. Requests arriving while one is pending coalesce.
func (s *Syncer) Trigger(reason string) {
	select {
	case s.trigger <- reason:
	default:
	}
}

// Loop runs a cycle immediately, then on every trigger and every interval
// (when positive) until ctx ends. before runs once ahead of the first cycle.
func (s *Syncer) Loop(ctx context.Context, interval time.Duration, before func(context.Context) error) error {
	if before != nil {
		if err := before(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
	s.RunCycle(ctx)

	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case reason := <-s.trigger:
			s.logger.InfoContext(ctx, "reload requested", "reason", reason)
			s.RunCycle(ctx)
		case <-tick:
			s.RunCycle(ctx)
		}
	}
}
