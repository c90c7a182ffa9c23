package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/beekeep/internal/model"
	"github.com/sells-group/beekeep/internal/reconcile"
)

// Sentinel errors returned (wrapped) by every Store implementation.
var (
	ErrHiveNotFound       = eris.New("hive not found")
	ErrInspectionNotFound = eris.New("inspection not found")
	ErrSessionNotFound    = eris.New("session not found")
)

// HiveFilter specifies criteria for listing hives.
type HiveFilter struct {
	IncludeInactive bool `json:"include_inactive,omitempty"`
	// WithLatest loads each hive's LatestInspection.
	WithLatest bool `json:"with_latest,omitempty"`
}

// InspectionFilter specifies criteria for listing inspections.
type InspectionFilter struct {
	HiveID      string `json:"hive_id,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	Unconfirmed bool   `json:"unconfirmed,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// SessionFilter specifies criteria for listing sessions.
type SessionFilter struct {
	// WithUnresolved keeps only sessions that still have unresolved records.
	WithUnresolved bool `json:"with_unresolved,omitempty"`
	Limit          int  `json:"limit,omitempty"`
	Offset         int  `json:"offset,omitempty"`
}

const defaultListLimit = 100

func newID() string { return uuid.New().String() }

func utcNow() time.Time { return time.Now().UTC() }

func limitOrDefault(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

// Store defines the persistence interface for hives, inspections and
// recording sessions.
type Store interface {
	reconcile.Store

	// Hives. ListHives returns the registry in creation order.
	CreateHive(ctx context.Context, hive *model.Hive) error
	GetHive(ctx context.Context, id string) (*model.Hive, error)
	ListHives(ctx context.Context, filter HiveFilter) ([]model.Hive, error)
	DeactivateHive(ctx context.Context, id string) error

	// Inspections, newest first.
	ListInspections(ctx context.Context, filter InspectionFilter) ([]model.InspectionRecord, error)
	GetInspection(ctx context.Context, id string) (*model.InspectionRecord, error)
	ConfirmInspection(ctx context.Context, id, editor, notes string) (*model.InspectionRecord, error)

	// Sessions, newest first.
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error)
	UpdateSessionUnresolved(ctx context.Context, id string, unresolved []model.ExtractionRecord) error
	AttachInspections(ctx context.Context, id string, inspectionIDs []string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// prepareHive fills the defaults of a hive about to be created.
func prepareHive(h *model.Hive, newID func() string, now func() time.Time) error {
	h.Name = strings.TrimSpace(h.Name)
	if h.Name == "" {
		return eris.New("store: hive name is required")
	}
	if h.ID == "" {
		h.ID = newID()
	}
	if h.Color == "" {
		h.Color = model.DefaultHiveColor
	}
	if h.Created.IsZero() {
		h.Created = now()
	}
	h.Active = true
	return nil
}

// prepareSession fills the defaults of a session about to be created.
func prepareSession(s *model.Session, newID func() string, now func() time.Time) {
	if s.ID == "" {
		s.ID = newID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now()
	}
	if s.Source == "" {
		s.Source = model.SessionCLI
	}
}
