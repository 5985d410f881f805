package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/weftlang/weft/internal/lang"
	"github.com/weftlang/weft/internal/query"
	"github.com/weftlang/weft/internal/store"
)

// Runner executes build sessions for one project configuration. The
// provider registry is built once; each Run is an independent session
// with its own query context over the shared persistent caches.
type Runner struct {
	cfg    *Config
	reg    *query.Registry
	logger *slog.Logger
}

// UnitResult is the outcome of one root unit in a session.
type UnitResult struct {
	Module string
	Result *lang.CodegenResult // nil when Err is set
	Err    error
}

// Report summarizes one completed session.
type Report struct {
	// SessionID uniquely identifies the session in logs.
	SessionID string

	// Units holds one result per configured unit, in manifest order.
	Units []UnitResult

	// Stats counts provider executions and green reuses.
	Stats query.Stats

	// Duration is the wall time of the session.
	Duration time.Duration
}

// Failed counts units that did not build.
func (r *Report) Failed() int {
	n := 0
	for _, u := range r.Units {
		if u.Err != nil {
			n++
		}
	}
	return n
}

// NewRunner creates a runner with the full stage pipeline registered.
func NewRunner(cfg *Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	reg := query.NewRegistry()
	lang.RegisterProviders(reg)
	return &Runner{cfg: cfg, reg: reg, logger: logger}
}

// Run executes one build session: load the previous-session table, force
// codegen for every configured unit with up to jobs parallel workers,
// then merge the session's entries back and persist the table.
//
// Per-unit failures (syntax, type, ownership errors) land in the report
// and do not stop sibling units. Import cycles and engine misconfiguration
// are fatal: they cancel outstanding units and fail the session. The
// session table is persisted even when units fail, so the successful
// portion of the work is reusable next time.
func (r *Runner) Run(ctx context.Context, force bool, jobs int) (*Report, error) {
	start := time.Now()
	sessionID := uuid.NewString()
	logger := r.logger.With("session", sessionID)

	opts, err := r.cfg.BuildOptions(force)
	if err != nil {
		return nil, err
	}

	optsFP := opts.Digest()
	cachePath := r.cfg.CachePath(optsFP.Hex())
	prev := store.Load(cachePath, optsFP, BuildDigest())
	logger.Debug("previous session loaded", "entries", prev.Len(), "path", cachePath)

	arts := store.NewArtifactCache(r.cfg.ArtifactDir())
	qctx := query.NewContext(opts, r.reg, prev, arts, logger)

	report := &Report{
		SessionID: sessionID,
		Units:     make([]UnitResult, len(r.cfg.Units)),
	}

	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, module := range r.cfg.Units {
		i, module := i, module
		report.Units[i].Module = module
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				report.Units[i].Err = err
				return nil
			}
			unit := lang.UnitFor(r.cfg.SourceDir, module)
			result, err := forceUnit(qctx, unit)
			if err != nil {
				report.Units[i].Err = err
				if fatal(err) {
					return err
				}
				logger.Warn("unit failed", "unit", module, "error", err)
				return nil
			}
			report.Units[i].Result = result
			return nil
		})
	}
	groupErr := g.Wait()

	report.Stats = qctx.Stats()
	report.Duration = time.Since(start)

	prev.SessionTime = time.Now().UnixMilli()
	prev.Merge(qctx.Entries())
	if err := store.Save(cachePath, prev); err != nil {
		logger.Warn("session table not persisted", "error", err)
	}

	logger.Info("session complete",
		"executed", report.Stats.TotalExecuted(),
		"reused", report.Stats.Reused,
		"failed", report.Failed(),
		"duration", report.Duration)

	if groupErr != nil {
		return report, fmt.Errorf("build aborted: %w", groupErr)
	}
	return report, nil
}

func forceUnit(qctx *query.Context, unit query.UnitID) (*lang.CodegenResult, error) {
	v, err := qctx.Force(qctx.KeyFor(query.StageCodegenUnit, unit))
	if err != nil {
		return nil, err
	}
	return v.(*lang.CodegenResult), nil
}

// fatal reports whether an error must abort the whole session rather
// than fail a single unit.
func fatal(err error) bool {
	var ce *query.CycleError
	var np *query.NoProviderError
	return errors.As(err, &ce) || errors.As(err, &np)
}
