package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"camserver/internal/model"
	"camserver/internal/repository"
)

// ReindexResult summarises a Reindex run.
type ReindexResult struct {
	Added   int
	Known   int
	Skipped int
}

// Reindex records every archived snapshot in dir that the repository does
// not know yet. Files that do not follow the archive naming are skipped.
func Reindex(dir string, repo repository.SnapshotRepository) (ReindexResult, error) {
	var res ReindexResult

	files, err := os.ReadDir(dir)
	if err != nil {
		return res, fmt.Errorf("read snapshot directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
			continue
		}

		ts, id, err := ParseFilename(file.Name())
		if err != nil {
			res.Skipped++
			continue
		}

		existing, err := repo.GetByID(id)
		if err != nil {
			return res, err
		}
		if existing != nil {
			res.Known++
			continue
		}

		info, err := file.Info()
		if err != nil {
			res.Skipped++
			continue
		}

		if err := repo.Insert(&model.Snapshot{
			ID:        id,
			Filename:  file.Name(),
			FilePath:  filepath.Join(dir, file.Name()),
			Timestamp: ts,
			FileSize:  info.Size(),
		}); err != nil {
			return res, err
		}
		res.Added++
	}
	return res, nil
}
