package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ifl-de/intake-api/internal/core/domain"
	"github.com/ifl-de/intake-api/internal/core/ports"
)

const collectionDocuments = "documents"

// DocumentRepository implements ports.DocumentRepository using MongoDB.
type DocumentRepository struct {
	client *mongo.Client
	col    *mongo.Collection
}

// NewDocumentRepository creates a DocumentRepository. Batch inserts run in
// multi-document transactions, so the deployment must pass
// RequireTransactions.
func NewDocumentRepository(client *mongo.Client, db *mongo.Database) *DocumentRepository {
	return &DocumentRepository{
		client: client,
		col:    db.Collection(collectionDocuments),
	}
}

// InsertBatch commits all documents or none of them. No reader observes a
// partial batch.
func (r *DocumentRepository) InsertBatch(ctx context.Context, docs []*domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	batch := make([]any, len(docs))
	for i, d := range docs {
		batch[i] = d
	}

	sess, err := r.client.StartSession()
	if err != nil {
		return classify("start session", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return r.col.InsertMany(sc, batch)
	})
	return classify("insert batch", err)
}

func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*domain.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var d domain.Document
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, classify("find document", err)
	}
	return &d, nil
}

// List returns matching documents, newest first.
func (r *DocumentRepository) List(ctx context.Context, f ports.DocumentFilter) ([]*domain.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if f.OwnerID != "" {
		filter["owner_id"] = f.OwnerID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}

	opts := options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify("list documents", err)
	}
	defer cursor.Close(ctx)

	docs := make([]*domain.Document, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify("decode documents", err)
	}
	return docs, nil
}

// UpdateStatus applies a review decision to a pending document at
// expectedVersion and bumps its version.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int64, decision domain.ReviewDecision) (*domain.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"_id":     id,
		"version": expectedVersion,
		"status":  string(domain.StatusPending),
	}
	set := bson.M{
		"status":      string(decision.Status),
		"reviewer_id": decision.ReviewerID,
		"reviewed_at": decision.DecidedAt.UTC(),
	}
	if decision.Note != "" {
		set["review_note"] = decision.Note
	}
	update := bson.M{
		"$set": set,
		"$inc": bson.M{"version": 1},
	}

	var d domain.Document
	err := r.col.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		return nil, classify("update status", err)
	}
	return &d, nil
}

// Delete removes the document only while it is at expectedVersion.
func (r *DocumentRepository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "version": expectedVersion})
	if err != nil {
		return classify("delete document", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Restore re-inserts a document removed by Delete. A record that is
// already present is left alone.
func (r *DocumentRepository) Restore(ctx context.Context, doc *domain.Document) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return classify("restore document", err)
}

func (r *DocumentRepository) ExistsByStorageKey(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, bson.M{"storage_key": key}, options.Count().SetLimit(1))
	if err != nil {
		return false, classify("count documents", err)
	}
	return n > 0, nil
}

// EnsureIndexes creates necessary indexes on the documents collection.
func (r *DocumentRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "uploaded_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "uploaded_at", Value: -1}}},
		{Keys: bson.D{{Key: "storage_key", Value: 1}}, Options: options.Index().SetUnique(true)},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
