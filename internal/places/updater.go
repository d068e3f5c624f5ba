package places

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/geodb-places/internal/core/observability"
	"github.com/mohammed-shakir/geodb-places/internal/geodb"
	mylog "github.com/mohammed-shakir/geodb-places/internal/logger"
	"github.com/mohammed-shakir/geodb-places/internal/reproject"
)

// GeoDB is the subset of the geoDB client used by an update cycle.
type GeoDB interface {
	SchemaFetcher
	GetCollection(ctx context.Context, collection, query, database string) (*geodb.Collection, error)
}

type Options struct {
	BaseURL string
	// StopOnError aborts the remaining descriptors after the first failure.
	StopOnError bool
	Annotator   FeatureAnnotator
	Logger      *slog.Logger
}

type Updater struct {
	db          GeoDB
	reg         Registry
	asm         *Assembler
	stopOnError bool
	logger      *slog.Logger
	now         func() time.Time
}

func NewUpdater(db GeoDB, reg Registry, opts Options) *Updater {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		db:  db,
		reg: reg,
		asm: &Assembler{
			Registry:  reg,
			BaseURL:   opts.BaseURL,
			Annotator: opts.Annotator,
		},
		stopOnError: opts.StopOnError,
		logger:      logger,
		now:         time.Now,
	}
}

// Run updates every descriptor in order. Descriptors are processed one at a
// time; remote calls block the cycle.
func (u *Updater) Run(ctx context.Context, descs []Descriptor) Report {
	start := u.now()
	rep := Report{CycleID: mylog.CycleID(ctx), Outcomes: make([]Outcome, 0, len(descs))}

	for i, d := range descs {
		if err := ctx.Err(); err != nil {
			rep.Aborted = true
			rep.Err = err
			break
		}
		o := u.UpdateGroup(ctx, d)
		rep.Outcomes = append(rep.Outcomes, o)
		if o.Kind.Failed() && u.stopOnError {
			rep.Aborted = i < len(descs)-1
			rep.Err = o.Err
			break
		}
	}

	rep.Elapsed = u.now().Sub(start)
	if rep.Err != nil {
		rep.Error = rep.Err.Error()
	}
	return rep
}

// UpdateGroup runs the whole pipeline for one descriptor.
func (u *Updater) UpdateGroup(ctx context.Context, d Descriptor) Outcome {
	start := u.now()
	d = d.WithDefaults()
	o := Outcome{Identifier: d.Identifier}

	err := u.update(ctx, d, &o)
	o.Duration = u.now().Sub(start)
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) && ce.Group == "" {
			ce.Group = d.Identifier
		}
		o.Kind = Classify(err)
		o.Err = err
		o.Error = err.Error()
	}
	observability.IncGroupOutcome(o.Kind.String())

	lctx := mylog.WithGroupID(ctx, o.GroupID)
	if err != nil {
		u.logger.ErrorContext(lctx, "place group update failed",
			"identifier", d.Identifier, "outcome", o.Kind.String(), "err", err)
	} else {
		u.logger.InfoContext(lctx, "place group updated",
			"identifier", d.Identifier, "outcome", o.Kind.String(),
			"features", o.Features, "dropped", o.Dropped, "duration", o.Duration)
	}
	return o
}

func (u *Updater) update(ctx context.Context, d Descriptor, o *Outcome) error {
	if err := d.Validate(); err != nil {
		return err
	}

	id := u.reg.CollisionSafeID(d)
	o.GroupID = id

	cached, ok, err := u.reg.GetCachedGroup(ctx, id)
	if err != nil {
		return fmt.Errorf("cached group %q: %w", id, err)
	}
	if ok && cached.Populated() {
		o.Kind = OutcomeCached
		o.Features = cached.Len()
		return nil
	}

	q, err := BuildQuery(ctx, d.Query, u.db)
	if err != nil {
		return err
	}
	o.Query = q.String()

	col, err := u.db.GetCollection(ctx, q.Collection, q.Constraints, q.Database)
	if err != nil {
		return err
	}
	if err := reproject.ToWGS84(col.Features, col.SRID); err != nil {
		return fmt.Errorf("reproject %s: %w", q.String(), err)
	}

	g, dropped, changed, err := u.asm.Assemble(ctx, id, Fetched{Descriptor: d, Features: col.Features})
	if err != nil {
		return err
	}
	o.Features = g.Len()
	o.Dropped = dropped
	if !changed {
		o.Kind = OutcomeCached
		return nil
	}
	observability.SetGroupFeatures(id, g.Len())
	return nil
}
