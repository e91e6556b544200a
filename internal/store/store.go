package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/oremus-labs/ol-repo-gateway/internal/logutil"
)

// Verification records one Gerrit verification request and its outcome.
type Verification struct {
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	BaseURL        string    `json:"baseUrl,omitempty"`
	IsGerrit       bool      `json:"isGerrit"`
	Version        string    `json:"version,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Details        string    `json:"details,omitempty"`
	TriedEndpoints []string  `json:"triedEndpoints,omitempty"`
	RequestID      string    `json:"requestId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Store wraps the SQL database used for persistence.
type Store struct {
	db     *sql.DB
	driver string
}

// Open initializes the datastore using the supplied DSN/file path and driver.
// Supported drivers are "sqlite" and "postgres".
func Open(dsn string, driver string) (*Store, error) {
	if driver == "" {
		driver = "sqlite"
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("datastore DSN is required")
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create datastore directory: %w", err)
		}
		conn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn)
		db, err = sql.Open("sqlite", conn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite datastore: %w", err)
		}
		db.SetMaxOpenConns(1)
	case "postgres":
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres datastore: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported datastore driver: %s", driver)
	}

	s := &Store{db: db, driver: driver}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == "postgres" {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS verifications (
			` + idColumn + `,
			url TEXT NOT NULL,
			base_url TEXT,
			is_gerrit BOOLEAN NOT NULL,
			version TEXT,
			reason TEXT,
			details TEXT,
			tried_endpoints TEXT,
			request_id TEXT,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_verifications_base_url ON verifications(base_url);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema apply failed: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close shuts down the datastore.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordVerification appends a verification outcome.
func (s *Store) RecordVerification(v *Verification) error {
	if strings.TrimSpace(v.URL) == "" {
		return errors.New("verification url required")
	}
	v.CreatedAt = time.Now().UTC()
	tried, err := json.Marshal(v.TriedEndpoints)
	if err != nil {
		return err
	}
	query := s.rebind(`INSERT INTO verifications (url, base_url, is_gerrit, version, reason, details, tried_endpoints, request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	if err := s.db.QueryRow(query,
		v.URL, v.BaseURL, v.IsGerrit, v.Version, v.Reason, v.Details, string(tried), v.RequestID, v.CreatedAt,
	).Scan(&id); err != nil {
		return err
	}
	v.ID = strconv.FormatInt(id, 10)
	return nil
}

// ListVerifications returns the newest verification records first.
func (s *Store) ListVerifications(limit int) ([]Verification, error) {
	query := `SELECT id, url, base_url, is_gerrit, version, reason, details, tried_endpoints, request_id, created_at FROM verifications ORDER BY id DESC`
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Verification
	for rows.Next() {
		var (
			v                                                 Verification
			id                                                int64
			baseURL, version, reason, details, tried, request sql.NullString
		)
		if err := rows.Scan(&id, &v.URL, &baseURL, &v.IsGerrit, &version, &reason, &details, &tried, &request, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.ID = strconv.FormatInt(id, 10)
		v.BaseURL = baseURL.String
		v.Version = version.String
		v.Reason = reason.String
		v.Details = details.String
		v.RequestID = request.String
		if tried.Valid && tried.String != "" {
			if err := json.Unmarshal([]byte(tried.String), &v.TriedEndpoints); err != nil {
				logutil.Warn("skipping unreadable tried_endpoints", logutil.Fields{"id": v.ID, "error": err.Error()})
				v.TriedEndpoints = nil
			}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CleanupVerificationsBefore deletes records created before the cutoff and
// returns how many were removed.
func (s *Store) CleanupVerificationsBefore(before time.Time) (int64, error) {
	res, err := s.db.Exec(s.rebind(`DELETE FROM verifications WHERE created_at < ?`), before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
