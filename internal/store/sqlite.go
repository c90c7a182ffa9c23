package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/beekeep/internal/model"
	"github.com/sells-group/beekeep/internal/reconcile"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// A single connection is used so pragmas apply to every statement and
// writers never race for the database lock.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: utcNow}, nil
}

// Timestamps are stored as fixed-width UTC text so that string comparison
// in SQL orders them chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	return t, eris.Wrapf(err, "sqlite: parse time %q", s)
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS hives (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	location             TEXT NOT NULL DEFAULT '',
	notes                TEXT NOT NULL DEFAULT '',
	color                TEXT NOT NULL DEFAULT '#10B981',
	is_active            INTEGER NOT NULL DEFAULT 1,
	created_at           TEXT NOT NULL,
	latest_inspection_id TEXT,
	last_inspected_at    TEXT
);

CREATE TABLE IF NOT EXISTS inspections (
	id           TEXT PRIMARY KEY,
	hive_id      TEXT NOT NULL REFERENCES hives(id),
	hive_name    TEXT NOT NULL DEFAULT '',
	date         TEXT NOT NULL,
	ts           TEXT NOT NULL,
	observations TEXT NOT NULL DEFAULT '{}',
	source       TEXT NOT NULL,
	session_id   TEXT NOT NULL DEFAULT '',
	confirmed    INTEGER NOT NULL DEFAULT 0,
	edited_by    TEXT NOT NULL DEFAULT '',
	edited_at    TEXT,
	notes        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	source         TEXT NOT NULL,
	recording_url  TEXT NOT NULL DEFAULT '',
	transcript     TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL,
	inspection_ids TEXT NOT NULL DEFAULT '[]',
	unresolved     TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_hives_active ON hives(is_active);
CREATE INDEX IF NOT EXISTS idx_inspections_hive_ts ON inspections(hive_id, ts DESC);
CREATE INDEX IF NOT EXISTS idx_inspections_session ON inspections(session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Hives ---

func (s *SQLiteStore) CreateHive(ctx context.Context, hive *model.Hive) error {
	if err := prepareHive(hive, newID, s.now); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hives (id, name, location, notes, color, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		hive.ID, hive.Name, hive.Location, hive.Notes, hive.Color, hive.Active, formatTime(hive.Created),
	)
	return eris.Wrapf(err, "sqlite: insert hive %s", hive.Name)
}

func (s *SQLiteStore) GetHive(ctx context.Context, id string) (*model.Hive, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+hiveColumns+` FROM hives WHERE id = ?`, id)
	h, err := scanSQLiteHive(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrHiveNotFound, "sqlite: get hive %s", id)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadLatest(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *SQLiteStore) ListHives(ctx context.Context, filter HiveFilter) ([]model.Hive, error) {
	query := `SELECT ` + hiveColumns + ` FROM hives`
	if !filter.IncludeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list hives")
	}
	defer rows.Close()

	var hives []model.Hive
	for rows.Next() {
		h, err := scanSQLiteHive(rows)
		if err != nil {
			return nil, err
		}
		hives = append(hives, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list hives iterate")
	}
	rows.Close()

	if filter.WithLatest {
		for i := range hives {
			if err := s.loadLatest(ctx, &hives[i]); err != nil {
				return nil, err
			}
		}
	}
	return hives, nil
}

func (s *SQLiteStore) DeactivateHive(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE hives SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: deactivate hive %s", id)
	}
	return checkRowsAffected(res, ErrHiveNotFound, id)
}

func (s *SQLiteStore) loadLatest(ctx context.Context, h *model.Hive) error {
	if h.LatestInspectionID == "" {
		return nil
	}
	ins, err := s.GetInspection(ctx, h.LatestInspectionID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: load latest inspection of hive %s", h.ID)
	}
	h.LatestInspection = ins
	return nil
}

// --- Inspections ---

// Commit appends the batch's inspections and moves each hive's projection
// forward in a single transaction.
func (s *SQLiteStore) Commit(ctx context.Context, batch reconcile.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin commit")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, ins := range batch.Inspections {
		obs, err := json.Marshal(ins.Observations)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal observations")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO inspections (id, hive_id, hive_name, date, ts, observations, source, session_id, confirmed, notes)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ins.ID, ins.HiveID, ins.HiveName, ins.Date, formatTime(ins.Timestamp), string(obs),
			string(ins.Source), ins.SessionID, ins.Confirmed, ins.Notes,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert inspection %s", ins.ID)
		}
	}

	for _, p := range batch.Latest {
		ts := formatTime(p.Timestamp)
		_, err := tx.ExecContext(ctx,
			`UPDATE hives SET latest_inspection_id = ?, last_inspected_at = ?
			 WHERE id = ? AND (last_inspected_at IS NULL OR last_inspected_at <= ?)`,
			p.InspectionID, ts, p.HiveID, ts,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: project latest for hive %s", p.HiveID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit batch")
}

func (s *SQLiteStore) ListInspections(ctx context.Context, filter InspectionFilter) ([]model.InspectionRecord, error) {
	query := `SELECT ` + inspectionColumns + ` FROM inspections WHERE 1=1`
	var args []any

	if filter.HiveID != "" {
		query += ` AND hive_id = ?`
		args = append(args, filter.HiveID)
	}
	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	if filter.Unconfirmed {
		query += ` AND confirmed = 0`
	}
	query += ` ORDER BY ts DESC, rowid DESC LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list inspections")
	}
	defer rows.Close()

	var out []model.InspectionRecord
	for rows.Next() {
		ins, err := scanSQLiteInspection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ins)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list inspections iterate")
}

func (s *SQLiteStore) GetInspection(ctx context.Context, id string) (*model.InspectionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE id = ?`, id)
	ins, err := scanSQLiteInspection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrInspectionNotFound, "sqlite: get inspection %s", id)
	}
	return ins, err
}

func (s *SQLiteStore) ConfirmInspection(ctx context.Context, id, editor, notes string) (*model.InspectionRecord, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE inspections SET confirmed = 1, edited_by = ?, edited_at = ?,
		 notes = CASE WHEN ? = '' THEN notes ELSE ? END
		 WHERE id = ?`,
		editor, formatTime(s.now()), notes, notes, id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: confirm inspection %s", id)
	}
	if err := checkRowsAffected(res, ErrInspectionNotFound, id); err != nil {
		return nil, err
	}
	return s.GetInspection(ctx, id)
}

// --- Sessions ---

func (s *SQLiteStore) CreateSession(ctx context.Context, session *model.Session) error {
	prepareSession(session, newID, s.now)

	ids, unresolved, err := marshalSessionLists(session)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID, string(session.Source), session.RecordingURL, session.Transcript,
		formatTime(session.CreatedAt), ids, unresolved,
	)
	return eris.Wrapf(err, "sqlite: insert session %s", session.ID)
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSQLiteSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrSessionNotFound, "sqlite: get session %s", id)
	}
	return sess, err
}

func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	if filter.WithUnresolved {
		query += ` WHERE unresolved <> '[]'`
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		sess, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list sessions iterate")
}

func (s *SQLiteStore) UpdateSessionUnresolved(ctx context.Context, id string, unresolved []model.ExtractionRecord) error {
	data, err := json.Marshal(nonNil(unresolved))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal unresolved")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET unresolved = ? WHERE id = ?`, string(data), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update session %s", id)
	}
	return checkRowsAffected(res, ErrSessionNotFound, id)
}

func (s *SQLiteStore) AttachInspections(ctx context.Context, id string, inspectionIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin attach")
	}
	defer tx.Rollback() //nolint:errcheck

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT inspection_ids FROM sessions WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrSessionNotFound, "sqlite: attach inspections to %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: read session %s", id)
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return eris.Wrap(err, "sqlite: unmarshal inspection ids")
	}
	data, err := json.Marshal(append(ids, inspectionIDs...))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal inspection ids")
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET inspection_ids = ? WHERE id = ?`, string(data), id); err != nil {
		return eris.Wrapf(err, "sqlite: update session %s", id)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit attach")
}

// helpers

func checkRowsAffected(res sql.Result, notFound error, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(notFound, "%s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteHive(row scannable) (*model.Hive, error) {
	var h model.Hive
	var created string
	var latestID, lastAt sql.NullString

	err := row.Scan(&h.ID, &h.Name, &h.Location, &h.Notes, &h.Color, &h.Active, &created, &latestID, &lastAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan hive")
	}

	if h.Created, err = parseTime(created); err != nil {
		return nil, err
	}
	h.LatestInspectionID = latestID.String
	if lastAt.Valid {
		ts, err := parseTime(lastAt.String)
		if err != nil {
			return nil, err
		}
		h.LastInspectedAt = &ts
	}
	return &h, nil
}

func scanSQLiteInspection(row scannable) (*model.InspectionRecord, error) {
	var ins model.InspectionRecord
	var ts, obs, source string
	var editedAt sql.NullString

	err := row.Scan(&ins.ID, &ins.HiveID, &ins.HiveName, &ins.Date, &ts, &obs, &source,
		&ins.SessionID, &ins.Confirmed, &ins.EditedBy, &editedAt, &ins.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan inspection")
	}

	ins.Source = model.InspectionSource(source)
	if ins.Timestamp, err = parseTime(ts); err != nil {
		return nil, err
	}
	if editedAt.Valid {
		t, err := parseTime(editedAt.String)
		if err != nil {
			return nil, err
		}
		ins.EditedAt = &t
	}
	if err := json.Unmarshal([]byte(obs), &ins.Observations); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal observations")
	}
	return &ins, nil
}

func scanSQLiteSession(row scannable) (*model.Session, error) {
	var sess model.Session
	var source, created, ids, unresolved string

	err := row.Scan(&sess.ID, &source, &sess.RecordingURL, &sess.Transcript, &created, &ids, &unresolved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan session")
	}

	sess.Source = model.SessionSource(source)
	if sess.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if err := unmarshalSessionLists(&sess, []byte(ids), []byte(unresolved)); err != nil {
		return nil, err
	}
	return &sess, nil
}
