package index

import (
	"log/slog"
	"time"

	"github.com/starford/adcanvas/internal/project"
	"github.com/starford/adcanvas/internal/storage"
)

// Sync walks the project directory and brings the catalog up to date:
//   - new/changed files are decoded and upserted
//   - files removed from disk are deleted from the catalog
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteProject(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile decodes a project document and upserts its summary. Files that
// are not valid projects are reported with apperr.ErrLoadFormat.
func IndexFile(db ProjectIndex, path string, data []byte) error {
	doc, err := project.Decode(data)
	if err != nil {
		return err
	}
	sum := doc.Summarize()

	row := ProjectRow{
		Path:      path,
		Name:      sum.Name,
		Checksum:  storage.Checksum(data),
		Nodes:     sum.Nodes,
		Edges:     sum.Edges,
		Products:  sum.Products,
		Concepts:  sum.Concepts,
		Creatives: sum.Creatives,
		SavedAt:   doc.Timestamp,
		UpdatedAt: time.Now().UTC(),
	}
	return db.UpsertProject(row, sum.Text)
}
