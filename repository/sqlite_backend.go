package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteBackend keeps the snapshot as the single row of the `snapshots` table.
// Each write replaces the row inside one transaction and moves the previous
// document into `snapshot_history`, keeping the most recent revisions.
// Undecodable documents are copied to `snapshot_quarantine`, which is never
// pruned, and the row is blanked so revision numbers keep increasing.
type SQLiteBackend struct {
	db          *sql.DB
	keepHistory int
}

// NewSQLiteBackend wraps a database opened with db.Open. keepHistory <= 0
// disables history retention.
func NewSQLiteBackend(db *sql.DB, keepHistory int) *SQLiteBackend {
	return &SQLiteBackend{db: db, keepHistory: keepHistory}
}

var _ Quarantiner = (*SQLiteBackend)(nil)

func (b *SQLiteBackend) Describe() string { return "sqlite:snapshots" }

func (b *SQLiteBackend) Read(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var doc string
	err := b.db.QueryRowContext(ctx, `SELECT document FROM snapshots WHERE id = 1`).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if doc == "" {
		return nil, nil
	}
	return []byte(doc), nil
}

func (b *SQLiteBackend) Write(ctx context.Context, doc []byte) error {
	// The write runs to completion once started; only the timeout bounds it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if b.keepHistory > 0 {
		if _, err := tx.ExecContext(ctx, `
INSERT OR REPLACE INTO snapshot_history (revision, document)
SELECT revision, document FROM snapshots WHERE id = 1 AND document <> ''`); err != nil {
			return fmt.Errorf("archive snapshot: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO snapshots (id, document, revision, updated_at) VALUES (1, ?, 1, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  document = excluded.document,
  revision = snapshots.revision + 1,
  updated_at = CURRENT_TIMESTAMP`, string(doc)); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	if b.keepHistory > 0 {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM snapshot_history
WHERE revision < (SELECT revision FROM snapshots WHERE id = 1) - ?`, b.keepHistory); err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
	}
	return tx.Commit()
}

// Quarantine copies the current row into snapshot_quarantine and blanks it.
// The revision is kept so later writes continue the sequence.
func (b *SQLiteBackend) Quarantine(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
INSERT INTO snapshot_quarantine (revision, document)
SELECT revision, document FROM snapshots WHERE id = 1`)
	if err != nil {
		return "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE snapshots SET document = '', updated_at = CURRENT_TIMESTAMP WHERE id = 1`); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return fmt.Sprintf("snapshot_quarantine id %d", id), nil
}

// Revision returns the current revision number, 0 when nothing was saved.
func (b *SQLiteBackend) Revision(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var rev int64
	err := b.db.QueryRowContext(ctx, `SELECT revision FROM snapshots WHERE id = 1`).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return rev, err
}

// HistoryLen returns the number of archived revisions.
func (b *SQLiteBackend) HistoryLen(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshot_history`).Scan(&n)
	return n, err
}

// QuarantineLen returns the number of quarantined documents.
func (b *SQLiteBackend) QuarantineLen(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshot_quarantine`).Scan(&n)
	return n, err
}
