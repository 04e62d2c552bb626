package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ifl-de/intake-api/internal/core/domain"
	"github.com/ifl-de/intake-api/internal/core/ports"
)

var discardLogger = zerolog.Nop()

// ---------------------------------------------------------------------------
// Actor repository
// ---------------------------------------------------------------------------

type stubActorRepo struct {
	mu     sync.Mutex
	actors map[string]*domain.Actor
	seq    int
	err    error // if set, every call returns it
}

func newStubActorRepo() *stubActorRepo {
	return &stubActorRepo{actors: make(map[string]*domain.Actor)}
}

func cloneActor(a *domain.Actor) *domain.Actor {
	clone := *a
	return &clone
}

func (r *stubActorRepo) FindByIdentifier(_ context.Context, role domain.Role, email string) (*domain.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, a := range r.actors {
		if a.Role == role && a.Email == email {
			return cloneActor(a), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubActorRepo) FindByID(_ context.Context, role domain.Role, id string) (*domain.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	a, ok := r.actors[id]
	if !ok || a.Role != role {
		return nil, domain.ErrNotFound
	}
	return cloneActor(a), nil
}

func (r *stubActorRepo) Create(_ context.Context, actor *domain.Actor) (*domain.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, a := range r.actors {
		if a.Role == actor.Role && a.Email == actor.Email {
			return nil, domain.ErrDuplicate
		}
	}
	r.seq++
	stored := cloneActor(actor)
	stored.ID = fmt.Sprintf("actor-%d", r.seq)
	r.actors[stored.ID] = stored
	return cloneActor(stored), nil
}

func (r *stubActorRepo) Update(_ context.Context, role domain.Role, id string, patch domain.ProfilePatch) (*domain.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actors[id]
	if !ok || a.Role != role {
		return nil, domain.ErrNotFound
	}
	patch.Apply(a)
	return cloneActor(a), nil
}

func (r *stubActorRepo) SetPasswordHash(_ context.Context, role domain.Role, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actors[id]
	if !ok || a.Role != role {
		return domain.ErrNotFound
	}
	a.PasswordHash = hash
	return nil
}

func (r *stubActorRepo) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actors, id)
}

// ---------------------------------------------------------------------------
// Document repository
// ---------------------------------------------------------------------------

type stubDocRepo struct {
	mu         sync.Mutex
	docs       map[string]*domain.Document
	insertErr  error
	restoreErr error
	// beforeWrite runs inside Delete and UpdateStatus before the version
	// check, simulating a concurrent writer.
	beforeWrite func(id string)
}

func newStubDocRepo() *stubDocRepo {
	return &stubDocRepo{docs: make(map[string]*domain.Document)}
}

func cloneDoc(d *domain.Document) *domain.Document {
	clone := *d
	return &clone
}

func (r *stubDocRepo) InsertBatch(_ context.Context, docs []*domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, d := range docs {
		r.docs[d.ID] = cloneDoc(d)
	}
	return nil
}

func (r *stubDocRepo) FindByID(_ context.Context, id string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneDoc(d), nil
}

func (r *stubDocRepo) List(_ context.Context, f ports.DocumentFilter) ([]*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Document
	for _, d := range r.docs {
		if f.OwnerID != "" && d.OwnerID != f.OwnerID {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		out = append(out, cloneDoc(d))
	}
	return out, nil
}

func (r *stubDocRepo) hook(id string) {
	r.mu.Lock()
	fn := r.beforeWrite
	r.beforeWrite = nil
	r.mu.Unlock()
	if fn != nil {
		fn(id)
	}
}

func (r *stubDocRepo) UpdateStatus(_ context.Context, id string, expectedVersion int64, decision domain.ReviewDecision) (*domain.Document, error) {
	r.hook(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.Version != expectedVersion || d.Status != domain.StatusPending {
		return nil, domain.ErrNotFound
	}
	at := decision.DecidedAt
	d.Status = decision.Status
	d.ReviewerID = decision.ReviewerID
	d.ReviewNote = decision.Note
	d.ReviewedAt = &at
	d.Version++
	return cloneDoc(d), nil
}

func (r *stubDocRepo) Delete(_ context.Context, id string, expectedVersion int64) error {
	r.hook(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.Version != expectedVersion {
		return domain.ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

func (r *stubDocRepo) Restore(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.restoreErr != nil {
		return r.restoreErr
	}
	r.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (r *stubDocRepo) ExistsByStorageKey(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.StorageKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubDocRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

// ---------------------------------------------------------------------------
// Blob store
// ---------------------------------------------------------------------------

type stubBlobStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	seq       int
	putErrAt  int // 1-based Put call that fails; 0 disables
	puts      int
	deleteErr error
}

func newStubBlobStore() *stubBlobStore {
	return &stubBlobStore{blobs: make(map[string][]byte)}
}

func (s *stubBlobStore) Put(_ context.Context, meta ports.BlobMeta, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErrAt != 0 && s.puts == s.putErrAt {
		return "", errors.New("blob store: connection reset")
	}
	s.seq++
	key := fmt.Sprintf("%s/%d-%s", meta.OwnerID, s.seq, meta.Filename)
	s.blobs[key] = data
	return key, nil
}

func (s *stubBlobStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *stubBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.blobs, key)
	return nil
}

func (s *stubBlobStore) List(_ context.Context, _ time.Time) ([]ports.BlobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.BlobInfo, 0, len(s.blobs))
	for k, v := range s.blobs {
		out = append(out, ports.BlobInfo{Key: k, Size: int64(len(v))})
	}
	return out, nil
}

func (s *stubBlobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// ---------------------------------------------------------------------------
// Orphans, notifier, throttle
// ---------------------------------------------------------------------------

type stubOrphans struct {
	mu   sync.Mutex
	keys []string
}

func (o *stubOrphans) Enqueue(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.keys = append(o.keys, key)
}

type stubNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
	// release, when set, holds every notification until it is closed.
	release chan struct{}
}

func (n *stubNotifier) ReviewDecided(_ context.Context, owner *domain.Actor, doc *domain.Document) error {
	if n.release != nil {
		<-n.release
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, owner.Email+":"+string(doc.Status))
	return n.err
}

func (n *stubNotifier) recorded() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

type stubThrottle struct {
	failures map[string]int
	max      int
}

func newStubThrottle(max int) *stubThrottle {
	return &stubThrottle{failures: make(map[string]int), max: max}
}

func (t *stubThrottle) Locked(_ context.Context, key string) (bool, error) {
	return t.failures[key] >= t.max, nil
}

func (t *stubThrottle) Failure(_ context.Context, key string) error {
	t.failures[key]++
	return nil
}

func (t *stubThrottle) Reset(_ context.Context, key string) error {
	delete(t.failures, key)
	return nil
}
