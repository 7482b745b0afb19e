package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"camserver/internal/model"
)

// SnapshotRepository implements repository.SnapshotRepository for SQLite.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new SQLite snapshot repository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Insert adds a new snapshot record to the database.
func (r *SnapshotRepository) Insert(s *model.Snapshot) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO snapshots (id, filename, filepath, timestamp, change_percentage, filesize)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.Filename, s.FilePath, s.Timestamp, s.ChangePercentage, s.FileSize)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// GetByID retrieves a snapshot by its ID. It returns nil, nil when not found.
func (r *SnapshotRepository) GetByID(id string) (*model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var s model.Snapshot
	err := r.db.Conn().QueryRow(`
		SELECT id, filename, filepath, timestamp, change_percentage, filesize
		FROM snapshots WHERE id = ?
	`, id).Scan(&s.ID, &s.Filename, &s.FilePath, &s.Timestamp, &s.ChangePercentage, &s.FileSize)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &s, nil
}

// List returns snapshots newest first.
func (r *SnapshotRepository) List(limit, offset int) ([]model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, filename, filepath, timestamp, change_percentage, filesize
		FROM snapshots ORDER BY timestamp DESC
	`
	args := []interface{}{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []model.Snapshot
	for rows.Next() {
		var s model.Snapshot
		if err := rows.Scan(&s.ID, &s.Filename, &s.FilePath, &s.Timestamp, &s.ChangePercentage, &s.FileSize); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

// Count returns the number of archived snapshots.
func (r *SnapshotRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// Delete removes a snapshot record.
func (r *SnapshotRepository) Delete(id string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
