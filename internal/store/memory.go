package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/beekeep/internal/model"
	"github.com/sells-group/beekeep/internal/reconcile"
)

// MemStore implements Store in process memory. Records are copied on the
// way in and out so callers never share state with the store.
type MemStore struct {
	mu sync.RWMutex

	hives       map[string]*model.Hive
	hiveOrder   []string
	inspections map[string]*model.InspectionRecord
	inspOrder   []string
	sessions    map[string]*model.Session
	sessOrder   []string

	now func() time.Time
}

// NewMemory creates an empty MemStore.
func NewMemory() *MemStore {
	return &MemStore{
		hives:       make(map[string]*model.Hive),
		inspections: make(map[string]*model.InspectionRecord),
		sessions:    make(map[string]*model.Session),
		now:         utcNow,
	}
}

func (s *MemStore) Migrate(context.Context) error { return nil }

func (s *MemStore) Ping(context.Context) error { return nil }

func (s *MemStore) Close() error { return nil }

func (s *MemStore) CreateHive(_ context.Context, hive *model.Hive) error {
	if err := prepareHive(hive, newID, s.now); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.hives[hive.ID]; exists {
		return eris.Errorf("memory: hive %s already exists", hive.ID)
	}
	h := *hive
	s.hives[h.ID] = &h
	s.hiveOrder = append(s.hiveOrder, h.ID)
	return nil
}

func (s *MemStore) GetHive(_ context.Context, id string) (*model.Hive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hives[id]
	if !ok {
		return nil, eris.Wrapf(ErrHiveNotFound, "memory: get hive %s", id)
	}
	return s.hiveCopy(h, true), nil
}

func (s *MemStore) ListHives(_ context.Context, filter HiveFilter) ([]model.Hive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Hive, 0, len(s.hiveOrder))
	for _, id := range s.hiveOrder {
		h := s.hives[id]
		if !h.Active && !filter.IncludeInactive {
			continue
		}
		out = append(out, *s.hiveCopy(h, filter.WithLatest))
	}
	return out, nil
}

func (s *MemStore) DeactivateHive(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hives[id]
	if !ok {
		return eris.Wrapf(ErrHiveNotFound, "memory: deactivate hive %s", id)
	}
	h.Active = false
	return nil
}

// hiveCopy must be called with s.mu held.
func (s *MemStore) hiveCopy(h *model.Hive, withLatest bool) *model.Hive {
	out := *h
	out.LatestInspection = nil
	if h.LastInspectedAt != nil {
		ts := *h.LastInspectedAt
		out.LastInspectedAt = &ts
	}
	if withLatest && h.LatestInspectionID != "" {
		if ins, ok := s.inspections[h.LatestInspectionID]; ok {
			c := *ins
			out.LatestInspection = &c
		}
	}
	return &out
}

// Commit validates the whole batch before touching any state, so a failed
// batch leaves the store unchanged.
func (s *MemStore) Commit(_ context.Context, batch reconcile.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(batch.Inspections))
	for _, ins := range batch.Inspections {
		if _, ok := s.hives[ins.HiveID]; !ok {
			return eris.Wrapf(ErrHiveNotFound, "memory: commit inspection %s", ins.ID)
		}
		if _, dup := s.inspections[ins.ID]; dup || seen[ins.ID] {
			return eris.Errorf("memory: duplicate inspection %s", ins.ID)
		}
		seen[ins.ID] = true
	}
	for _, p := range batch.Latest {
		if _, ok := s.hives[p.HiveID]; !ok {
			return eris.Wrapf(ErrHiveNotFound, "memory: project hive %s", p.HiveID)
		}
	}

	for _, ins := range batch.Inspections {
		c := ins
		s.inspections[c.ID] = &c
		s.inspOrder = append(s.inspOrder, c.ID)
	}
	for _, p := range batch.Latest {
		h := s.hives[p.HiveID]
		ins, ok := s.inspections[p.InspectionID]
		if !ok || !ins.NewerThan(h.LastInspectedAt) {
			continue
		}
		ts := p.Timestamp
		h.LatestInspectionID = p.InspectionID
		h.LastInspectedAt = &ts
	}
	return nil
}

func (s *MemStore) ListInspections(_ context.Context, filter InspectionFilter) ([]model.InspectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.InspectionRecord
	for i := len(s.inspOrder) - 1; i >= 0; i-- {
		ins := s.inspections[s.inspOrder[i]]
		if filter.HiveID != "" && ins.HiveID != filter.HiveID {
			continue
		}
		if filter.SessionID != "" && ins.SessionID != filter.SessionID {
			continue
		}
		if filter.Unconfirmed && ins.Confirmed {
			continue
		}
		out = append(out, *ins)
	}
	slices.SortStableFunc(out, func(a, b model.InspectionRecord) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return page(out, filter.Offset, filter.Limit), nil
}

func (s *MemStore) GetInspection(_ context.Context, id string) (*model.InspectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ins, ok := s.inspections[id]
	if !ok {
		return nil, eris.Wrapf(ErrInspectionNotFound, "memory: get inspection %s", id)
	}
	c := *ins
	return &c, nil
}

func (s *MemStore) ConfirmInspection(_ context.Context, id, editor, notes string) (*model.InspectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ins, ok := s.inspections[id]
	if !ok {
		return nil, eris.Wrapf(ErrInspectionNotFound, "memory: confirm inspection %s", id)
	}
	now := s.now()
	ins.Confirmed = true
	ins.EditedBy = editor
	ins.EditedAt = &now
	if notes != "" {
		ins.Notes = notes
	}
	c := *ins
	return &c, nil
}

func (s *MemStore) CreateSession(_ context.Context, session *model.Session) error {
	prepareSession(session, newID, s.now)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return eris.Errorf("memory: session %s already exists", session.ID)
	}
	s.sessions[session.ID] = sessionCopy(session)
	s.sessOrder = append(s.sessOrder, session.ID)
	return nil
}

func (s *MemStore) GetSession(_ context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, eris.Wrapf(ErrSessionNotFound, "memory: get session %s", id)
	}
	return sessionCopy(sess), nil
}

func (s *MemStore) ListSessions(_ context.Context, filter SessionFilter) ([]model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Session
	for i := len(s.sessOrder) - 1; i >= 0; i-- {
		sess := s.sessions[s.sessOrder[i]]
		if filter.WithUnresolved && len(sess.Unresolved) == 0 {
			continue
		}
		out = append(out, *sessionCopy(sess))
	}
	slices.SortStableFunc(out, func(a, b model.Session) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return page(out, filter.Offset, filter.Limit), nil
}

func (s *MemStore) UpdateSessionUnresolved(_ context.Context, id string, unresolved []model.ExtractionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return eris.Wrapf(ErrSessionNotFound, "memory: update session %s", id)
	}
	sess.Unresolved = slices.Clone(unresolved)
	return nil
}

func (s *MemStore) AttachInspections(_ context.Context, id string, inspectionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return eris.Wrapf(ErrSessionNotFound, "memory: attach inspections to %s", id)
	}
	sess.InspectionIDs = append(sess.InspectionIDs, inspectionIDs...)
	return nil
}

func sessionCopy(s *model.Session) *model.Session {
	c := *s
	c.InspectionIDs = slices.Clone(s.InspectionIDs)
	c.Unresolved = slices.Clone(s.Unresolved)
	return &c
}

// page applies offset and limit to an already ordered slice.
func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	if offset > 0 {
		items = items[offset:]
	}
	if l := limitOrDefault(limit); len(items) > l {
		items = items[:l]
	}
	return items
}
