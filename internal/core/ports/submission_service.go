package ports

import (
	"context"
	"io"

	"github.com/ifl-de/intake-api/internal/core/domain"
)

// SubmissionService is the document pipeline. Every operation takes the
// verified session of the caller.
type SubmissionService interface {
	Submit(ctx context.Context, session *domain.Session, files []domain.FileUpload) ([]*domain.Document, error)
	// Fetch lists targetActorID's documents; an empty target means the
	// caller for applicants and everyone for staff.
	Fetch(ctx context.Context, session *domain.Session, targetActorID string) ([]*domain.Document, error)
	ListForReview(ctx context.Context, session *domain.Session, status domain.ReviewStatus) ([]*domain.Document, error)
	Open(ctx context.Context, session *domain.Session, documentID string) (*domain.Document, io.ReadCloser, error)
	Delete(ctx context.Context, session *domain.Session, documentID string) error
	UpdateReviewStatus(ctx context.Context, session *domain.Session, documentID string, status domain.ReviewStatus, note string) (*domain.Document, error)
}
