package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/ashureev/preppal/internal/domain"
	"github.com/ashureev/preppal/internal/shared"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	writeMaxRetries = 3
	writeBaseDelay  = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serializes read-modify-write of the settings document
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interviews (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		question TEXT NOT NULL,
		response TEXT NOT NULL,
		grading_json TEXT,
		timestamp_ms INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// getValue decodes the JSON value stored under key into dst.
// found is false when the key is absent.
func (s *SQLiteStore) getValue(ctx context.Context, key string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) putValue(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	query := `
	INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	return shared.RetryOnConflict(ctx, "put "+key, writeMaxRetries, writeBaseDelay, func() error {
		if _, err := s.db.ExecContext(ctx, query, key, string(raw), time.Now().Unix()); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
		return nil
	})
}

func (s *SQLiteStore) deleteValue(ctx context.Context, key string) error {
	return shared.RetryOnConflict(ctx, "delete "+key, writeMaxRetries, writeBaseDelay, func() error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
}

// settingsFields pairs each settings key with the field it populates.
func settingsFields(st *domain.Settings) map[string]any {
	return map[string]any{
		KeyGatedSites:            &st.GatedSites,
		KeyPracticeIntensity:     &st.PracticeIntensity,
		KeyTranscriptionKey:      &st.TranscriptionKey,
		KeyGradingKey:            &st.GradingKey,
		KeyResumeText:            &st.ResumeText,
		KeyJobRole:               &st.JobRole,
		KeyCustomRole:            &st.CustomRole,
		KeyCooldownMinutes:       &st.CooldownMinutes,
		KeyGradingMode:           &st.GradingMode,
		KeyEarnMinutesThresholds: &st.EarnMinutesThresholds,
	}
}

// GetSettings loads the settings document with defaults applied.
func (s *SQLiteStore) GetSettings(ctx context.Context) (*domain.Settings, error) {
	st := &domain.Settings{}
	fields := settingsFields(st)

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close settings rows", "error", closeErr)
		}
	}()

	seen := make(map[string]bool, len(fields))
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan settings row: %w", err)
		}
		dst, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			slog.Warn("ignoring malformed settings value", "key", key, "error", err)
			continue
		}
		seen[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}

	if !seen[KeyGatedSites] {
		st.GatedSites = domain.DefaultGatedSites()
	}
	if !seen[KeyEarnMinutesThresholds] {
		st.EarnMinutesThresholds = domain.DefaultMinutesTable()
	}
	st.PracticeIntensity = st.PracticeIntensity.OrDefault()
	st.CooldownMinutes = st.Cooldown()
	st.GradingMode = st.Mode()

	return st, nil
}

// SaveSettings writes every settings key in one transaction.
func (s *SQLiteStore) SaveSettings(ctx context.Context, st *domain.Settings) error {
	return s.writeSettings(ctx, st, false)
}

// SeedSettings writes settings keys that are not yet present. Zero-valued
// fields in st are skipped so they keep their built-in defaults.
func (s *SQLiteStore) SeedSettings(ctx context.Context, st *domain.Settings) error {
	return s.writeSettings(ctx, st, true)
}

func (s *SQLiteStore) writeSettings(ctx context.Context, st *domain.Settings, onlyMissing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
	INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if onlyMissing {
		query = `INSERT OR IGNORE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`
	}

	return shared.RetryOnConflict(ctx, "write settings", writeMaxRetries, writeBaseDelay, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin settings tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		now := time.Now().Unix()
		for key, v := range settingsFields(st) {
			if onlyMissing && reflect.ValueOf(v).Elem().IsZero() {
				continue
			}
			raw, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode %s: %w", key, err)
			}
			if _, err := tx.ExecContext(ctx, query, key, string(raw), now); err != nil {
				return fmt.Errorf("write %s: %w", key, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit settings: %w", err)
		}
		return nil
	})
}

// GetGrantExpiry returns the stored grant expiry, if any.
func (s *SQLiteStore) GetGrantExpiry(ctx context.Context) (time.Time, bool, error) {
	var ms int64
	found, err := s.getValue(ctx, KeyGrantExpiresAt, &ms)
	if err != nil || !found {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

// SetGrantExpiry stores the grant expiry as epoch milliseconds.
func (s *SQLiteStore) SetGrantExpiry(ctx context.Context, expiresAt time.Time) error {
	return s.putValue(ctx, KeyGrantExpiresAt, expiresAt.UnixMilli())
}

// ClearGrantExpiry removes the grant expiry.
func (s *SQLiteStore) ClearGrantExpiry(ctx context.Context) error {
	return s.deleteValue(ctx, KeyGrantExpiresAt)
}

// GetCustomQuestions returns the personalized question set.
func (s *SQLiteStore) GetCustomQuestions(ctx context.Context) ([]string, error) {
	var questions []string
	if _, err := s.getValue(ctx, KeyCustomQuestions, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// SetCustomQuestions replaces the personalized question set.
func (s *SQLiteStore) SetCustomQuestions(ctx context.Context, questions []string) error {
	if questions == nil {
		questions = []string{}
	}
	return s.putValue(ctx, KeyCustomQuestions, questions)
}

// AppendInterview adds a record to the end of the interview history.
// A missing ID is filled in.
func (s *SQLiteStore) AppendInterview(ctx context.Context, rec *domain.InterviewRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	var gradingJSON any
	if rec.Grading != nil {
		raw, err := json.Marshal(rec.Grading)
		if err != nil {
			return fmt.Errorf("encode grading: %w", err)
		}
		gradingJSON = string(raw)
	}

	query := `
	INSERT INTO interviews (id, question, response, grading_json, timestamp_ms)
	VALUES (?, ?, ?, ?, ?)`

	return shared.RetryOnConflict(ctx, "append interview", writeMaxRetries, writeBaseDelay, func() error {
		if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.Question, rec.Response, gradingJSON, rec.Timestamp); err != nil {
			return fmt.Errorf("append interview: %w", err)
		}
		return nil
	})
}

// ListInterviews returns the interview history in insertion order.
func (s *SQLiteStore) ListInterviews(ctx context.Context) ([]domain.InterviewRecord, error) {
	query := `
		SELECT id, question, response, grading_json, timestamp_ms
		FROM interviews ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query interviews: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close interview rows", "error", closeErr)
		}
	}()

	records := []domain.InterviewRecord{}
	for rows.Next() {
		var rec domain.InterviewRecord
		var gradingJSON sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Question, &rec.Response, &gradingJSON, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan interview row: %w", err)
		}
		if gradingJSON.Valid {
			var g domain.Grading
			if err := json.Unmarshal([]byte(gradingJSON.String), &g); err != nil {
				slog.Warn("ignoring malformed grading", "id", rec.ID, "error", err)
			} else {
				rec.Grading = &g
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interviews: %w", err)
	}

	return records, nil
}

// ClearInterviews removes all interview records.
func (s *SQLiteStore) ClearInterviews(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM interviews`)
	if err != nil {
		return 0, fmt.Errorf("clear interviews: %w", err)
	}
	return result.RowsAffected()
}

// ClearAll removes every settings key and interview record.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM settings`); err != nil {
		return fmt.Errorf("clear settings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM interviews`); err != nil {
		return fmt.Errorf("clear interviews: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

var _ Repository = (*SQLiteStore)(nil)
