// Package reconcile turns validated extraction records into inspection
// records and keeps each hive's latest-inspection projection current.
package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/beekeep/internal/model"
	"github.com/sells-group/beekeep/internal/resolve"
)

// RuleUnresolved is the Result.Rules key for records no rule matched.
const RuleUnresolved = "unresolved"

// Projection moves a hive's latest-inspection pointer. Stores apply it only
// when Timestamp is not older than the hive's current LastInspectedAt.
type Projection struct {
	HiveID       string
	InspectionID string
	Timestamp    time.Time
}

// Batch is the unit of work committed atomically: the new inspections and
// one projection per touched hive.
type Batch struct {
	Inspections []model.InspectionRecord
	Latest      []Projection
}

// Store is the persistence capability the engine needs. Commit must append
// every inspection and apply every projection in one transaction, or
// nothing at all.
type Store interface {
	Commit(ctx context.Context, batch Batch) error
}

// Result is the outcome of Reconcile. Created and Unresolved together
// account for every input record.
type Result struct {
	Created    []model.InspectionRecord
	Unresolved []model.ExtractionRecord
	// Rules counts records per matching rule name, plus RuleUnresolved.
	Rules map[string]int
}

// Engine reconciles extraction records against a hive registry snapshot.
type Engine struct {
	store    Store
	resolver *resolve.Resolver
	clock    func() time.Time
	newID    func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the batch timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithIDFunc overrides inspection id generation.
func WithIDFunc(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithResolver replaces the default resolver.
func WithResolver(r *resolve.Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// New creates an Engine committing to store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		resolver: resolve.New(),
		clock:    func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Reconcile resolves each record against hives and commits an inspection
// for every match. Records that match no hive are returned unchanged in
// Result.Unresolved. All inspections of one call share a timestamp. On a
// storage failure nothing is reported as created.
func (e *Engine) Reconcile(ctx context.Context, sessionID string, records []model.ExtractionRecord, hives []model.Hive) (*Result, error) {
	now := e.clock()
	res := &Result{Rules: make(map[string]int)}

	for _, rec := range records {
		m := e.resolver.Resolve(rec.Hive, hives)
		if !m.Resolved() {
			res.Unresolved = append(res.Unresolved, rec)
			res.Rules[RuleUnresolved]++
			continue
		}
		res.Rules[m.Rule]++
		res.Created = append(res.Created, e.inspect(rec, m.Hive, sessionID, now, false))
	}

	if err := e.commit(ctx, res.Created); err != nil {
		return nil, eris.Wrapf(err, "reconcile: session %s", sessionID)
	}

	zap.L().Info("reconcile: batch committed",
		zap.String("session_id", sessionID),
		zap.Int("records", len(records)),
		zap.Int("created", len(res.Created)),
		zap.Int("unresolved", len(res.Unresolved)),
	)
	return res, nil
}

// inspect builds the inspection for rec on hive.
func (e *Engine) inspect(rec model.ExtractionRecord, hive *model.Hive, sessionID string, now time.Time, confirmed bool) model.InspectionRecord {
	return model.InspectionRecord{
		ID:           e.newID(),
		HiveID:       hive.ID,
		HiveName:     hive.Name,
		Date:         now.Format(model.DateLayout),
		Timestamp:    now,
		Observations: rec.Observations,
		Source:       model.SourceAI,
		SessionID:    sessionID,
		Confirmed:    confirmed,
	}
}

// commit stores inspections with one projection per hive. Within a batch
// the last inspection for a hive in iteration order wins.
func (e *Engine) commit(ctx context.Context, inspections []model.InspectionRecord) error {
	if len(inspections) == 0 {
		return nil
	}
	batch := Batch{Inspections: inspections}
	index := make(map[string]int)
	for _, ins := range inspections {
		p := Projection{HiveID: ins.HiveID, InspectionID: ins.ID, Timestamp: ins.Timestamp}
		if i, ok := index[ins.HiveID]; ok {
			batch.Latest[i] = p
			continue
		}
		index[ins.HiveID] = len(batch.Latest)
		batch.Latest = append(batch.Latest, p)
	}
	return e.store.Commit(ctx, batch)
}
