package ports

import (
	"context"
	"io"
	"time"

	"github.com/ifl-de/intake-api/internal/core/domain"
)

// BlobMeta describes a blob being written. The store derives the storage
// key from it.
type BlobMeta struct {
	OwnerID     string
	Filename    string
	ContentType string
	Size        int64
}

// BlobInfo is a listing entry of the blob store.
type BlobInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// BlobStore holds document contents. Delete of a missing key succeeds.
type BlobStore interface {
	Put(ctx context.Context, meta BlobMeta, r io.Reader) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// List returns blobs last modified before the given instant.
	List(ctx context.Context, before time.Time) ([]BlobInfo, error)
}

// DocumentFilter narrows a document listing. Empty fields do not filter.
type DocumentFilter struct {
	OwnerID string
	Status  domain.ReviewStatus
}

// DocumentRepository holds document metadata. Per-record writes are
// compare-and-swap on Document.Version.
type DocumentRepository interface {
	// InsertBatch commits all documents or none of them.
	InsertBatch(ctx context.Context, docs []*domain.Document) error
	FindByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, filter DocumentFilter) ([]*domain.Document, error)
	// UpdateStatus applies decision only while the record is still pending
	// at expectedVersion. It returns domain.ErrNotFound when no record matched.
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, decision domain.ReviewDecision) (*domain.Document, error)
	// Delete removes the record only at expectedVersion. It returns
	// domain.ErrNotFound when no record matched.
	Delete(ctx context.Context, id string, expectedVersion int64) error
	// Restore re-inserts a record removed by Delete.
	Restore(ctx context.Context, doc *domain.Document) error
	ExistsByStorageKey(ctx context.Context, key string) (bool, error)
}

// OrphanCollector accepts blob keys that lost their metadata and must be
// removed eventually.
type OrphanCollector interface {
	Enqueue(storageKey string)
}

// ReviewNotifier tells an applicant about a review decision.
type ReviewNotifier interface {
	ReviewDecided(ctx context.Context, owner *domain.Actor, doc *domain.Document) error
}
