// Package storage persists a journal of transmission sessions in SQLite,
// so operators can audit what was radiated, where and when.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/radiolab/gnss-simulator/internal/geodesy"
	"github.com/radiolab/gnss-simulator/internal/transmit"
)

// SessionRecord is a journaled transmission session.
type SessionRecord struct {
	ID          int64            `json:"id"`
	SessionID   string           `json:"session_id"`
	StartedAt   time.Time        `json:"started_at"`
	EndedAt     *time.Time       `json:"ended_at,omitempty"`
	Location    geodesy.Geodetic `json:"location"`
	Params      transmit.Params  `json:"parameters"`
	FinalStatus string           `json:"final_status,omitempty"`
	Detail      string           `json:"detail,omitempty"`
}

// SqliteStore journals transmission sessions. Writes and reads use
// separate lazily-opened connections; writes run with WAL journaling.
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the Sqlite database at dbPath.
// The schema is initialized on first write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// RecordStart inserts a journal row for a newly started session and
// returns its row id.
func (s *SqliteStore) RecordStart(ctx context.Context, sess transmit.Session) (id int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return 0, fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx,
		sess.ID,
		sess.StartedAt.UTC(),
		sess.Location.LatDeg,
		sess.Location.LonDeg,
		sess.Location.AltM,
		sess.Params.DurationSec,
		sess.Params.FrequencyHz,
		sess.Params.SampleRateHz,
		sess.Params.TXGain,
		sess.Params.PowerLevel)
	if err != nil {
		return 0, fmt.Errorf("inserting session: %w", err)
	}

	if id, err = result.LastInsertId(); err != nil {
		return 0, fmt.Errorf("getting session row id: %w", err)
	}
	return id, nil
}

// RecordEnd marks a journaled session as finished.
func (s *SqliteStore) RecordEnd(ctx context.Context, id int64, status transmit.Status, detail string) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, endSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(ctx, time.Now().UTC(), string(status), detail, id); err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	return nil
}

// RecentSessions returns up to limit journaled sessions, newest first.
func (s *SqliteStore) RecentSessions(ctx context.Context, limit int) (records []SessionRecord, err error) {
	if limit <= 0 {
		limit = 20
	}

	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectRecentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			r           SessionRecord
			endedAt     sql.NullTime
			finalStatus sql.NullString
			detail      sql.NullString
		)

		if err = rows.Scan(
			&r.ID,
			&r.SessionID,
			&r.StartedAt,
			&endedAt,
			&r.Location.LatDeg,
			&r.Location.LonDeg,
			&r.Location.AltM,
			&r.Params.DurationSec,
			&r.Params.FrequencyHz,
			&r.Params.SampleRateHz,
			&r.Params.TXGain,
			&r.Params.PowerLevel,
			&finalStatus,
			&detail); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}

		if endedAt.Valid {
			t := endedAt.Time.UTC()
			r.EndedAt = &t
		}
		r.FinalStatus = finalStatus.String
		r.Detail = detail.String

		records = append(records, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("reading session rows: %w", err)
	}

	return records, nil
}

// Close releases both database connections. It is safe to call multiple
// times.
func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		if s.writeDB != nil {
			if err := s.writeDB.Close(); err != nil {
				s.closeErr = fmt.Errorf("closing write connection: %w", err)
			}
		}
		if s.readDB != nil {
			if err := s.readDB.Close(); err != nil && s.closeErr == nil {
				s.closeErr = fmt.Errorf("closing read connection: %w", err)
			}
		}
	})

	return s.closeErr
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
