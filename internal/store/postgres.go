package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/beekeep/internal/db"
	"github.com/sells-group/beekeep/internal/model"
	"github.com/sells-group/beekeep/internal/reconcile"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	insertInspectionSQL = `INSERT INTO inspections (id, hive_id, hive_name, date, ts, observations, source, session_id, confirmed, notes) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	projectLatestSQL    = `UPDATE hives SET latest_inspection_id = $1, last_inspected_at = $2 WHERE id = $3 AND (last_inspected_at IS NULL OR last_inspected_at <= $2)`
)

// preparedStatements lists queries to prepare on each new connection. Both
// run once per record on every commit.
var preparedStatements = map[string]string{
	"insert_inspection": insertInspectionSQL,
	"project_latest":    projectLatestSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: utcNow}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS hives (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	seq                  BIGSERIAL,
	name                 TEXT NOT NULL,
	location             TEXT NOT NULL DEFAULT '',
	notes                TEXT NOT NULL DEFAULT '',
	color                TEXT NOT NULL DEFAULT '#10B981',
	is_active            BOOLEAN NOT NULL DEFAULT true,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	latest_inspection_id TEXT,
	last_inspected_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS inspections (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	hive_id      TEXT NOT NULL REFERENCES hives(id),
	hive_name    TEXT NOT NULL DEFAULT '',
	date         TEXT NOT NULL,
	ts           TIMESTAMPTZ NOT NULL,
	observations JSONB NOT NULL DEFAULT '{}',
	source       TEXT NOT NULL,
	session_id   TEXT NOT NULL DEFAULT '',
	confirmed    BOOLEAN NOT NULL DEFAULT false,
	edited_by    TEXT NOT NULL DEFAULT '',
	edited_at    TIMESTAMPTZ,
	notes        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source         TEXT NOT NULL,
	recording_url  TEXT NOT NULL DEFAULT '',
	transcript     TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	inspection_ids JSONB NOT NULL DEFAULT '[]',
	unresolved     JSONB NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_hives_active_seq ON hives(is_active, seq);
CREATE INDEX IF NOT EXISTS idx_inspections_hive_ts ON inspections(hive_id, ts DESC);
CREATE INDEX IF NOT EXISTS idx_inspections_session ON inspections(session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Hives ---

func (s *PostgresStore) CreateHive(ctx context.Context, hive *model.Hive) error {
	if err := prepareHive(hive, newID, s.now); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO hives (id, name, location, notes, color, is_active, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		hive.ID, hive.Name, hive.Location, hive.Notes, hive.Color, hive.Active, hive.Created,
	)
	return eris.Wrapf(err, "postgres: insert hive %s", hive.Name)
}

func (s *PostgresStore) GetHive(ctx context.Context, id string) (*model.Hive, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+hiveColumns+` FROM hives WHERE id = $1`, id)
	h, err := scanPostgresHive(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrHiveNotFound, "postgres: get hive %s", id)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadLatest(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *PostgresStore) ListHives(ctx context.Context, filter HiveFilter) ([]model.Hive, error) {
	query := `SELECT ` + hiveColumns + ` FROM hives`
	if !filter.IncludeInactive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY seq`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list hives")
	}
	defer rows.Close()

	var hives []model.Hive
	for rows.Next() {
		h, err := scanPostgresHive(rows)
		if err != nil {
			return nil, err
		}
		hives = append(hives, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list hives iterate")
	}

	if filter.WithLatest {
		for i := range hives {
			if err := s.loadLatest(ctx, &hives[i]); err != nil {
				return nil, err
			}
		}
	}
	return hives, nil
}

func (s *PostgresStore) DeactivateHive(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE hives SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: deactivate hive %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrHiveNotFound, "postgres: deactivate hive %s", id)
	}
	return nil
}

func (s *PostgresStore) loadLatest(ctx context.Context, h *model.Hive) error {
	if h.LatestInspectionID == "" {
		return nil
	}
	ins, err := s.GetInspection(ctx, h.LatestInspectionID)
	if err != nil {
		return eris.Wrapf(err, "postgres: load latest inspection of hive %s", h.ID)
	}
	h.LatestInspection = ins
	return nil
}

// --- Inspections ---

// Commit appends the batch's inspections and moves each hive's projection
// forward in a single transaction.
func (s *PostgresStore) Commit(ctx context.Context, batch reconcile.Batch) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, ins := range batch.Inspections {
			obs, err := json.Marshal(ins.Observations)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal observations")
			}
			_, err = tx.Exec(ctx, insertInspectionSQL,
				ins.ID, ins.HiveID, ins.HiveName, ins.Date, ins.Timestamp, obs,
				string(ins.Source), ins.SessionID, ins.Confirmed, ins.Notes,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: insert inspection %s", ins.ID)
			}
		}
		for _, p := range batch.Latest {
			if _, err := tx.Exec(ctx, projectLatestSQL, p.InspectionID, p.Timestamp, p.HiveID); err != nil {
				return eris.Wrapf(err, "postgres: project latest for hive %s", p.HiveID)
			}
		}
		return nil
	})
}


func (s *PostgresStore) ListInspections(ctx context.Context, filter InspectionFilter) ([]model.InspectionRecord, error) {
	query := `SELECT ` + inspectionColumns + ` FROM inspections WHERE 1=1`
	var args []any
	argN := 1

	if filter.HiveID != "" {
		query += ` AND hive_id = $` + strconv.Itoa(argN)
		args = append(args, filter.HiveID)
		argN++
	}
	if filter.SessionID != "" {
		query += ` AND session_id = $` + strconv.Itoa(argN)
		args = append(args, filter.SessionID)
		argN++
	}
	if filter.Unconfirmed {
		query += ` AND NOT confirmed`
	}
	query += ` ORDER BY ts DESC, id DESC LIMIT $` + strconv.Itoa(argN)
	args = append(args, limitOrDefault(filter.Limit))
	argN++

	if filter.Offset > 0 {
		query += ` OFFSET $` + strconv.Itoa(argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list inspections")
	}
	defer rows.Close()

	var out []model.InspectionRecord
	for rows.Next() {
		ins, err := scanPostgresInspection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ins)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list inspections iterate")
}

func (s *PostgresStore) GetInspection(ctx context.Context, id string) (*model.InspectionRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE id = $1`, id)
	ins, err := scanPostgresInspection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrInspectionNotFound, "postgres: get inspection %s", id)
	}
	return ins, err
}

func (s *PostgresStore) ConfirmInspection(ctx context.Context, id, editor, notes string) (*model.InspectionRecord, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE inspections SET confirmed = true, edited_by = $1, edited_at = $2,
		 notes = CASE WHEN $3 = '' THEN notes ELSE $3 END
		 WHERE id = $4 RETURNING `+inspectionColumns,
		editor, s.now(), notes, id,
	)
	ins, err := scanPostgresInspection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrInspectionNotFound, "postgres: confirm inspection %s", id)
	}
	return ins, err
}

// --- Sessions ---

func (s *PostgresStore) CreateSession(ctx context.Context, session *model.Session) error {
	prepareSession(session, newID, s.now)

	ids, unresolved, err := marshalSessionLists(session)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, string(session.Source), session.RecordingURL, session.Transcript,
		session.CreatedAt, ids, unresolved,
	)
	return eris.Wrapf(err, "postgres: insert session %s", session.ID)
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	sess, err := scanPostgresSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrSessionNotFound, "postgres: get session %s", id)
	}
	return sess, err
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if filter.WithUnresolved {
		query += ` WHERE jsonb_array_length(unresolved) > 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $1`
	args := []any{limitOrDefault(filter.Limit)}
	if filter.Offset > 0 {
		query += ` OFFSET $2`
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		sess, err := scanPostgresSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list sessions iterate")
}

func (s *PostgresStore) UpdateSessionUnresolved(ctx context.Context, id string, unresolved []model.ExtractionRecord) error {
	data, err := json.Marshal(nonNil(unresolved))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal unresolved")
	}
	tag, err := s.pool.Exec(ctx, `UPDATE sessions SET unresolved = $1 WHERE id = $2`, string(data), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update session %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrSessionNotFound, "postgres: update session %s", id)
	}
	return nil
}

func (s *PostgresStore) AttachInspections(ctx context.Context, id string, inspectionIDs []string) error {
	data, err := json.Marshal(nonNil(inspectionIDs))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal inspection ids")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET inspection_ids = inspection_ids || $1::jsonb WHERE id = $2`,
		string(data), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: attach inspections to %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrSessionNotFound, "postgres: attach inspections to %s", id)
	}
	return nil
}

// helpers

func scanPostgresHive(row pgx.Row) (*model.Hive, error) {
	var h model.Hive
	var latestID *string

	err := row.Scan(&h.ID, &h.Name, &h.Location, &h.Notes, &h.Color, &h.Active, &h.Created, &latestID, &h.LastInspectedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan hive")
	}
	if latestID != nil {
		h.LatestInspectionID = *latestID
	}
	return &h, nil
}

func scanPostgresInspection(row pgx.Row) (*model.InspectionRecord, error) {
	var ins model.InspectionRecord
	var source string
	var obs []byte

	err := row.Scan(&ins.ID, &ins.HiveID, &ins.HiveName, &ins.Date, &ins.Timestamp, &obs, &source,
		&ins.SessionID, &ins.Confirmed, &ins.EditedBy, &ins.EditedAt, &ins.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan inspection")
	}
	ins.Source = model.InspectionSource(source)
	if err := json.Unmarshal(obs, &ins.Observations); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal observations")
	}
	return &ins, nil
}

func scanPostgresSession(row pgx.Row) (*model.Session, error) {
	var sess model.Session
	var source string
	var ids, unresolved []byte

	err := row.Scan(&sess.ID, &source, &sess.RecordingURL, &sess.Transcript, &sess.CreatedAt, &ids, &unresolved)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan session")
	}
	sess.Source = model.SessionSource(source)
	if err := unmarshalSessionLists(&sess, ids, unresolved); err != nil {
		return nil, err
	}
	return &sess, nil
}
