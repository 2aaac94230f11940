package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"pulseboard/internal/domain"
)

// Repo is the sqlite-backed persistence port. Reports and the active user
// identity live as whole JSON blobs under fixed keys, mirroring the
// read-all/write-all contract of the record store.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const (
	keyReports = "reports"
	keyUser    = "user"
)

func (r Repo) getValue(ctx context.Context, key string) (string, error) {
	var value string
	err := r.DB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

func (r Repo) putValue(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO kv(key, value, updated_at) VALUES (?,?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, now)
	return err
}

func (r Repo) deleteValue(ctx context.Context, key string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM kv WHERE key=?`, key)
	return err
}

// ReadReports loads the persisted report sequence. An absent or corrupt
// blob yields an empty sequence, not an error.
func (r Repo) ReadReports(ctx context.Context) ([]domain.Report, error) {
	value, err := r.getValue(ctx, keyReports)
	if errors.Is(err, ErrNotFound) {
		return []domain.Report{}, nil
	}
	if err != nil {
		return nil, err
	}
	var reports []domain.Report
	if err := json.Unmarshal([]byte(value), &reports); err != nil {
		return []domain.Report{}, nil
	}
	if reports == nil {
		reports = []domain.Report{}
	}
	return reports, nil
}

// WriteReports replaces the persisted sequence wholesale.
func (r Repo) WriteReports(ctx context.Context, reports []domain.Report) error {
	if reports == nil {
		reports = []domain.Report{}
	}
	data, err := json.Marshal(reports)
	if err != nil {
		return err
	}
	return r.putValue(ctx, keyReports, string(data))
}

// ReadUser returns the active workspace identity. A corrupt blob counts as
// absent.
func (r Repo) ReadUser(ctx context.Context) (domain.User, error) {
	value, err := r.getValue(ctx, keyUser)
	if err != nil {
		return domain.User{}, err
	}
	var u domain.User
	if err := json.Unmarshal([]byte(value), &u); err != nil {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

func (r Repo) WriteUser(ctx context.Context, u domain.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return r.putValue(ctx, keyUser, string(data))
}

func (r Repo) ClearUser(ctx context.Context) error {
	return r.deleteValue(ctx, keyUser)
}

// LatestEvents returns up to n events, newest first, optionally filtered.
func (r Repo) LatestEvents(ctx context.Context, n int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	query := `SELECT id, ts, type, entity_kind, COALESCE(entity_id,''), actor_id, payload_json FROM events`
	var (
		conds []string
		args  []any
	)
	if evtType != "" {
		conds = append(conds, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		conds = append(conds, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		conds = append(conds, "entity_id=?")
		args = append(args, entityID)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, n)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
