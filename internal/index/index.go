package index

import "context"

// ProjectIndex defines the interface for project catalog operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type ProjectIndex interface {
	UpsertProject(p ProjectRow, body string) error
	DeleteProject(path string) error
	GetChecksum(path string) (string, error)
	GetProject(path string) (*ProjectRow, error)
	ListProjects(limit, offset int, sort string) ([]ProjectRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Verify *DB satisfies ProjectIndex at compile time.
var _ ProjectIndex = (*DB)(nil)
