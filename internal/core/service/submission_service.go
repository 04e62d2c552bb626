package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ifl-de/intake-api/internal/core/domain"
	"github.com/ifl-de/intake-api/internal/core/ports"
	"github.com/ifl-de/intake-api/internal/pkg/metrics"
)

const (
	defaultBlobConcurrency = 4
	maxCASAttempts         = 3
	maxReviewNoteLength    = 2000
	cleanupTimeout         = 30 * time.Second
	notifyTimeout          = 30 * time.Second
)

// SubmissionConfig tunes the submission pipeline.
type SubmissionConfig struct {
	Policy FilePolicy
	// BlobConcurrency bounds parallel blob writes within one batch.
	BlobConcurrency int
}

// SubmissionService implements the document pipeline.
type SubmissionService struct {
	docs     ports.DocumentRepository
	blobs    ports.BlobStore
	actors   ports.ActorRepository
	orphans  ports.OrphanCollector
	notifier ports.ReviewNotifier
	cfg      SubmissionConfig
	logger   zerolog.Logger
	now      func() time.Time

	notifications sync.WaitGroup
}

func NewSubmissionService(
	docs ports.DocumentRepository,
	blobs ports.BlobStore,
	actors ports.ActorRepository,
	orphans ports.OrphanCollector,
	notifier ports.ReviewNotifier,
	cfg SubmissionConfig,
	logger zerolog.Logger,
) *SubmissionService {
	cfg.Policy = cfg.Policy.withDefaults()
	if cfg.BlobConcurrency <= 0 {
		cfg.BlobConcurrency = defaultBlobConcurrency
	}
	return &SubmissionService{
		docs:     docs,
		blobs:    blobs,
		actors:   actors,
		orphans:  orphans,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Submit validates the batch, writes every blob and commits all metadata
// records at once. A batch with any invalid file writes nothing.
func (s *SubmissionService) Submit(ctx context.Context, session *domain.Session, files []domain.FileUpload) ([]*domain.Document, error) {
	if err := domain.Authorize(session, domain.RoleApplicant); err != nil {
		return nil, err
	}

	accepted, err := s.cfg.Policy.check(files)
	if err != nil {
		metrics.BatchesRejectedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	keys := make([]string, len(accepted))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BlobConcurrency)
	for i, f := range accepted {
		g.Go(func() error {
			key, err := s.blobs.Put(gctx, ports.BlobMeta{
				OwnerID:     session.ActorID,
				Filename:    f.name,
				ContentType: f.contentType,
				Size:        int64(len(f.content)),
			}, bytes.NewReader(f.content))
			if err != nil {
				return fmt.Errorf("store %s: %w", f.name, err)
			}
			keys[i] = key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.BatchesRejectedTotal.WithLabelValues("blob_write").Inc()
		s.discardBlobs(ctx, keys)
		return nil, storeError("submit", err)
	}

	now := s.now().UTC()
	batchID := uuid.NewString()
	docs := make([]*domain.Document, len(accepted))
	for i, f := range accepted {
		docs[i] = &domain.Document{
			ID:          uuid.NewString(),
			OwnerID:     session.ActorID,
			BatchID:     batchID,
			Filename:    f.name,
			StorageKey:  keys[i],
			ContentType: f.contentType,
			Size:        int64(len(f.content)),
			UploadedAt:  now,
			Status:      domain.StatusPending,
			Version:     1,
		}
	}

	if err := s.docs.InsertBatch(ctx, docs); err != nil {
		metrics.BatchesRejectedTotal.WithLabelValues("commit").Inc()
		// The commit outcome may be unknown; the reaper only removes blobs
		// that have no metadata.
		for _, key := range keys {
			s.orphans.Enqueue(key)
		}
		return nil, storeError("submit: commit", err)
	}

	metrics.DocumentsSubmittedTotal.Add(float64(len(docs)))
	s.logger.Info().
		Str("actor_id", session.ActorID).
		Str("batch_id", batchID).
		Int("files", len(docs)).
		Msg("documents submitted")

	return docs, nil
}

// discardBlobs removes blobs written for a batch that never committed. It
// runs detached from ctx because the caller may already be gone.
func (s *SubmissionService) discardBlobs(ctx context.Context, keys []string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("storage_key", key).Msg("failed to discard uncommitted blob, handing to reaper")
			s.orphans.Enqueue(key)
		}
	}
}

// Fetch lists documents. Applicants only ever see their own.
func (s *SubmissionService) Fetch(ctx context.Context, session *domain.Session, targetActorID string) ([]*domain.Document, error) {
	if err := domain.Authorize(session); err != nil {
		return nil, err
	}

	filter := ports.DocumentFilter{OwnerID: targetActorID}
	if !session.Role.IsStaff() {
		if targetActorID != "" && targetActorID != session.ActorID {
			return nil, domain.ErrForbidden
		}
		filter.OwnerID = session.ActorID
	}

	docs, err := s.docs.List(ctx, filter)
	if err != nil {
		return nil, storeError("fetch", err)
	}
	return docs, nil
}

// ListForReview lists documents by review status for staff.
func (s *SubmissionService) ListForReview(ctx context.Context, session *domain.Session, status domain.ReviewStatus) ([]*domain.Document, error) {
	if err := domain.Authorize(session, domain.StaffRoles...); err != nil {
		return nil, err
	}
	if status == "" {
		status = domain.StatusPending
	}
	docs, err := s.docs.List(ctx, ports.DocumentFilter{Status: status})
	if err != nil {
		return nil, storeError("list for review", err)
	}
	return docs, nil
}

// Open returns a document and a reader over its contents. The caller
// closes the reader.
func (s *SubmissionService) Open(ctx context.Context, session *domain.Session, documentID string) (*domain.Document, io.ReadCloser, error) {
	doc, err := s.accessible(ctx, session, documentID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Get(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, storeError("open", err)
	}
	return doc, rc, nil
}

// Delete removes a document's metadata and blob as one unit. The metadata
// goes first; if the blob cannot be removed the metadata is restored.
func (s *SubmissionService) Delete(ctx context.Context, session *domain.Session, documentID string) error {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		doc, err := s.accessible(ctx, session, documentID)
		if err != nil {
			return err
		}

		err = s.docs.Delete(ctx, doc.ID, doc.Version)
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted or updated concurrently; re-read decides which.
			continue
		}
		if err != nil {
			return storeError("delete", err)
		}
		return s.removeBlob(ctx, session, doc)
	}
	return fmt.Errorf("delete %s: %w: concurrent modification", documentID, domain.ErrStoreUnavailable)
}

func (s *SubmissionService) removeBlob(ctx context.Context, session *domain.Session, doc *domain.Document) error {
	blobErr := s.blobs.Delete(ctx, doc.StorageKey)
	if blobErr == nil {
		metrics.DocumentDeletesTotal.WithLabelValues("deleted").Inc()
		s.logger.Info().
			Str("document_id", doc.ID).
			Str("actor_id", session.ActorID).
			Str("role", string(session.Role)).
			Msg("document deleted")
		return nil
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.docs.Restore(rctx, doc); err != nil {
		metrics.DocumentDeletesTotal.WithLabelValues("orphaned").Inc()
		s.logger.Error().
			Err(err).
			AnErr("blob_error", blobErr).
			Str("document_id", doc.ID).
			Msg("metadata restore failed after blob delete failure, blob handed to reaper")
		s.orphans.Enqueue(doc.StorageKey)
		return fmt.Errorf("delete %s: %w: %v", doc.ID, domain.ErrPartialDelete, blobErr)
	}

	metrics.DocumentDeletesTotal.WithLabelValues("rolled_back").Inc()
	s.logger.Warn().Err(blobErr).Str("document_id", doc.ID).Msg("blob delete failed, metadata restored")
	return fmt.Errorf("delete %s: %w: %v", doc.ID, domain.ErrPartialDelete, blobErr)
}

// UpdateReviewStatus records a staff decision on a pending document.
func (s *SubmissionService) UpdateReviewStatus(ctx context.Context, session *domain.Session, documentID string, status domain.ReviewStatus, note string) (*domain.Document, error) {
	if err := domain.Authorize(session, domain.StaffRoles...); err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		doc, err := s.docs.FindByID(ctx, documentID)
		if err != nil {
			return nil, storeError("review", err)
		}
		// Decided records are final whatever the requested status.
		if doc.Status.Decided() {
			return nil, fmt.Errorf("%w: document is already %s", domain.ErrInvalidTransition, doc.Status)
		}
		if !status.Decided() {
			return nil, domain.Invalid("status must be accepted or rejected")
		}
		if len(note) > maxReviewNoteLength {
			return nil, domain.Invalid("note exceeds %d characters", maxReviewNoteLength)
		}
		if !doc.Status.CanTransitionTo(status) {
			return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, doc.Status, status)
		}

		updated, err := s.docs.UpdateStatus(ctx, doc.ID, doc.Version, domain.ReviewDecision{
			Status:     status,
			ReviewerID: session.ActorID,
			Note:       note,
			DecidedAt:  s.now().UTC(),
		})
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, storeError("review", err)
		}

		metrics.ReviewDecisionsTotal.WithLabelValues(string(status)).Inc()
		s.logger.Info().
			Str("document_id", updated.ID).
			Str("status", string(status)).
			Str("reviewer_id", session.ActorID).
			Msg("review decided")

		s.notify(ctx, updated)
		return updated, nil
	}
	return nil, fmt.Errorf("review %s: %w: concurrent modification", documentID, domain.ErrStoreUnavailable)
}

// notify tells the owner about a decision in the background. The review
// response does not wait for the mail server.
func (s *SubmissionService) notify(ctx context.Context, doc *domain.Document) {
	if s.notifier == nil {
		return
	}
	snapshot := *doc

	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()

		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		owner, err := s.actors.FindByID(nctx, domain.RoleApplicant, snapshot.OwnerID)
		if err != nil {
			s.logger.Warn().Err(err).Str("document_id", snapshot.ID).Msg("review notification skipped, owner lookup failed")
			return
		}
		if err := s.notifier.ReviewDecided(nctx, owner, &snapshot); err != nil {
			s.logger.Warn().Err(err).Str("document_id", snapshot.ID).Msg("review notification failed")
		}
	}()
}

// Wait blocks until in-flight review notifications have finished.
func (s *SubmissionService) Wait() {
	s.notifications.Wait()
}

// accessible loads a document the session may act on: its owner or staff.
func (s *SubmissionService) accessible(ctx context.Context, session *domain.Session, documentID string) (*domain.Document, error) {
	if err := domain.Authorize(session); err != nil {
		return nil, err
	}
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return nil, storeError("load document", err)
	}
	if !doc.OwnedBy(session.ActorID) && !session.Role.IsStaff() {
		return nil, domain.ErrForbidden
	}
	return doc, nil
}

// storeError passes classified errors through and reports deadline
// expiry as a retryable store outage.
func storeError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
