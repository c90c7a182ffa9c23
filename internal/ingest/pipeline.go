// Package ingest runs extraction output through normalization, validation
// and reconciliation, recording each run as a session.
package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/beekeep/internal/model"
	"github.com/sells-group/beekeep/internal/monitoring"
	"github.com/sells-group/beekeep/internal/reconcile"
	"github.com/sells-group/beekeep/internal/salvage"
	"github.com/sells-group/beekeep/internal/schema"
	"github.com/sells-group/beekeep/internal/store"
)

// ErrInvalidAssignment is returned for assignments that do not name an
// unresolved record of the session.
var ErrInvalidAssignment = eris.New("invalid assignment")

// IngestRequest describes one extraction run.
type IngestRequest struct {
	Source       model.SessionSource
	RecordingURL string
	Transcript   string
	// Raw is the language-model response text.
	Raw string
	// ReceivedAt overrides the session timestamp when set.
	ReceivedAt time.Time
}

// Outcome reports what one run produced.
type Outcome struct {
	Session    *model.Session           `json:"session"`
	Created    []model.InspectionRecord `json:"created"`
	Unresolved []model.ExtractionRecord `json:"unresolved"`
	Skipped    int                      `json:"skipped"`
	NonObjects int                      `json:"non_objects"`
	Repaired   bool                     `json:"repaired"`
	Rules      map[string]int           `json:"rules,omitempty"`
}

// IndexAssignment assigns the unresolved record at Index to HiveID.
type IndexAssignment struct {
	Index  int    `json:"index"`
	HiveID string `json:"hive_id"`
}

// AssignOutcome reports the result of AssignUnresolved.
type AssignOutcome struct {
	Created []model.InspectionRecord `json:"created"`
	// Dropped counts assignments naming an unknown or inactive hive.
	Dropped   int                      `json:"dropped"`
	Remaining []model.ExtractionRecord `json:"remaining"`
}

// Pipeline orchestrates ingestion against a store.
type Pipeline struct {
	store   store.Store
	engine  *reconcile.Engine
	metrics *monitoring.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records pipeline counters on m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a Pipeline. engine must commit to st.
func New(st store.Store, engine *reconcile.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{store: st, engine: engine}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ProcessText ingests a raw language-model response. The session is
// recorded before normalization, so a malformed or empty response still
// leaves the transcript behind for manual entry; in that case the returned
// Outcome carries the session alongside the error.
func (p *Pipeline) ProcessText(ctx context.Context, req IngestRequest) (*Outcome, error) {
	sess, err := p.openSession(ctx, req)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Session: sess}

	res := salvage.Normalize(req.Raw)
	p.metrics.ExtractionOutcome(outcomeLabel(res))
	if err := res.Err(); err != nil {
		zap.L().Warn("ingest: extraction not usable",
			zap.String("session_id", sess.ID),
			zap.Stringer("status", res.Status),
		)
		return out, eris.Wrapf(err, "ingest: session %s", sess.ID)
	}
	out.Repaired = res.Repaired

	cands, nonObjects, err := schema.Decode(res.JSON)
	if err != nil {
		// Valid JSON that is neither an object nor an array.
		return out, eris.Wrapf(&salvage.MalformedError{Original: req.Raw, Repaired: res.JSON},
			"ingest: session %s", sess.ID)
	}

	return p.reconcile(ctx, out, cands, nonObjects)
}

// ProcessCandidates ingests already-decoded candidates, such as the
// structured data of a voice-agent call.
func (p *Pipeline) ProcessCandidates(ctx context.Context, req IngestRequest, cands []model.ExtractionCandidate, nonObjects int) (*Outcome, error) {
	sess, err := p.openSession(ctx, req)
	if err != nil {
		return nil, err
	}
	return p.reconcile(ctx, &Outcome{Session: sess}, cands, nonObjects)
}

func (p *Pipeline) openSession(ctx context.Context, req IngestRequest) (*model.Session, error) {
	sess := &model.Session{
		Source:       req.Source,
		RecordingURL: req.RecordingURL,
		Transcript:   req.Transcript,
		CreatedAt:    req.ReceivedAt,
	}
	if err := p.store.CreateSession(ctx, sess); err != nil {
		return nil, eris.Wrap(err, "ingest: create session")
	}
	return sess, nil
}

// reconcile validates candidates against one registry snapshot and
// records the result on the session.
func (p *Pipeline) reconcile(ctx context.Context, out *Outcome, cands []model.ExtractionCandidate, nonObjects int) (*Outcome, error) {
	sess := out.Session
	rep := schema.ValidateAll(cands)
	out.Skipped = rep.Skipped
	out.NonObjects = nonObjects
	p.metrics.Skipped("no_hive", rep.Skipped)
	p.metrics.Skipped("not_object", nonObjects)

	hives, err := p.store.ListHives(ctx, store.HiveFilter{})
	if err != nil {
		return out, eris.Wrap(err, "ingest: load hive registry")
	}

	res, err := p.engine.Reconcile(ctx, sess.ID, rep.Records, hives)
	if err != nil {
		return out, err
	}
	out.Created = res.Created
	out.Unresolved = res.Unresolved
	out.Rules = res.Rules
	p.metrics.Resolutions(res.Rules)
	p.metrics.InspectionsCreated(false, len(res.Created))

	if err := p.recordOnSession(ctx, sess, res.Created, res.Unresolved); err != nil {
		return out, err
	}

	zap.L().Info("ingest: session processed",
		zap.String("session_id", sess.ID),
		zap.String("source", string(sess.Source)),
		zap.Int("candidates", len(cands)),
		zap.Int("created", len(out.Created)),
		zap.Int("unresolved", len(out.Unresolved)),
		zap.Int("skipped", out.Skipped),
	)
	return out, nil
}

func (p *Pipeline) recordOnSession(ctx context.Context, sess *model.Session, created []model.InspectionRecord, unresolved []model.ExtractionRecord) error {
	if len(unresolved) > 0 {
		if err := p.store.UpdateSessionUnresolved(ctx, sess.ID, unresolved); err != nil {
			return eris.Wrap(err, "ingest: store unresolved records")
		}
		sess.Unresolved = unresolved
	}
	if len(created) > 0 {
		ids := inspectionIDs(created)
		if err := p.store.AttachInspections(ctx, sess.ID, ids); err != nil {
			return eris.Wrap(err, "ingest: attach inspections")
		}
		sess.InspectionIDs = append(sess.InspectionIDs, ids...)
	}
	return nil
}

// AssignUnresolved assigns unresolved records of a session to hives chosen
// by a human. Assignments to unknown or inactive hives are dropped and the
// record stays unresolved.
func (p *Pipeline) AssignUnresolved(ctx context.Context, sessionID string, assignments []IndexAssignment) (*AssignOutcome, error) {
	sess, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: load session")
	}

	seen := make(map[int]bool, len(assignments))
	for _, a := range assignments {
		if a.Index < 0 || a.Index >= len(sess.Unresolved) {
			return nil, eris.Wrapf(ErrInvalidAssignment, "ingest: index %d out of range (%d unresolved)", a.Index, len(sess.Unresolved))
		}
		if seen[a.Index] {
			return nil, eris.Wrapf(ErrInvalidAssignment, "ingest: index %d assigned twice", a.Index)
		}
		seen[a.Index] = true
	}

	hives, err := p.store.ListHives(ctx, store.HiveFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "ingest: load hive registry")
	}

	pairs := make([]reconcile.Assignment, 0, len(assignments))
	assigned := make(map[int]bool, len(assignments))
	for _, a := range assignments {
		pairs = append(pairs, reconcile.Assignment{Record: sess.Unresolved[a.Index], HiveID: a.HiveID})
		if model.FindHive(hives, a.HiveID) != nil {
			assigned[a.Index] = true
		}
	}

	created, err := p.engine.Assign(ctx, sessionID, pairs, hives)
	if err != nil {
		return nil, err
	}
	p.metrics.InspectionsCreated(true, len(created))

	remaining := make([]model.ExtractionRecord, 0, len(sess.Unresolved)-len(assigned))
	for i, rec := range sess.Unresolved {
		if !assigned[i] {
			remaining = append(remaining, rec)
		}
	}

	if len(created) > 0 {
		if err := p.store.UpdateSessionUnresolved(ctx, sessionID, remaining); err != nil {
			return nil, eris.Wrap(err, "ingest: store unresolved records")
		}
		if err := p.store.AttachInspections(ctx, sessionID, inspectionIDs(created)); err != nil {
			return nil, eris.Wrap(err, "ingest: attach inspections")
		}
	}

	return &AssignOutcome{
		Created:   created,
		Dropped:   len(assignments) - len(assigned),
		Remaining: remaining,
	}, nil
}

func inspectionIDs(recs []model.InspectionRecord) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}

func outcomeLabel(res salvage.Result) string {
	if res.Status == salvage.StatusParsed && res.Repaired {
		return "repaired"
	}
	return res.Status.String()
}
