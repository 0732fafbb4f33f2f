package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"RiskApprove/internal/domain/models"
	"RiskApprove/internal/domain/repository"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteAudit records compliance checks in a local SQLite file.
type SQLiteAudit struct {
	db *sql.DB
	mu sync.Mutex
}

var _ repository.AuditStore = (*SQLiteAudit)(nil)

// NewSQLiteAudit opens (or creates) the database at path and migrates it.
func NewSQLiteAudit(path string) (*SQLiteAudit, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	a := &SQLiteAudit{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return a, nil
}

func (a *SQLiteAudit) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS compliance_checks (
			id           TEXT PRIMARY KEY,
			checked_at   INTEGER NOT NULL,
			risk_profile TEXT NOT NULL,
			holdings     INTEGER NOT NULL,
			compliant    INTEGER NOT NULL,
			violations   INTEGER NOT NULL,
			warnings     INTEGER NOT NULL,
			result       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checks_at ON compliance_checks(checked_at)`,
	}
	for _, s := range stmts {
		if _, err := a.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// Record stores e, assigning an id and timestamp when unset.
func (a *SQLiteAudit) Record(ctx context.Context, e *models.AuditEntry) error {
	if e.Result == nil {
		return fmt.Errorf("audit entry without result")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CheckedAt.IsZero() {
		e.CheckedAt = time.Now().UTC()
	}
	body, err := json.Marshal(e.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO compliance_checks (id, checked_at, risk_profile, holdings, compliant, violations, warnings, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CheckedAt.UnixMilli(), e.RiskProfile, e.Holdings,
		boolInt(e.Result.Compliant), len(e.Result.Violations), len(e.Result.Warnings), string(body),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (a *SQLiteAudit) Recent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, checked_at, risk_profile, holdings, result FROM compliance_checks
		 ORDER BY checked_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	out := []models.AuditEntry{}
	for rows.Next() {
		var (
			e    models.AuditEntry
			ms   int64
			body string
		)
		if err := rows.Scan(&e.ID, &ms, &e.RiskProfile, &e.Holdings, &body); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.CheckedAt = time.UnixMilli(ms).UTC()
		e.Result = &models.ComplianceResult{}
		if err := json.Unmarshal([]byte(body), e.Result); err != nil {
			return nil, fmt.Errorf("decode audit entry %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (a *SQLiteAudit) Close() error {
	return a.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
