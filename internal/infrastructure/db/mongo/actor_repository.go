package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ifl-de/intake-api/internal/core/domain"
)

const collectionActors = "actors"

// ActorRepository stores applicants and staff in one collection. The
// (role, email) pair is unique, so each role is its own namespace.
type ActorRepository struct {
	col *mongo.Collection
}

func NewActorRepository(db *mongo.Database) *ActorRepository {
	return &ActorRepository{col: db.Collection(collectionActors)}
}

type mongoActor struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Role         string             `bson:"role"`
	Email        string             `bson:"email"`
	FirstName    string             `bson:"first_name"`
	LastName     string             `bson:"last_name"`
	Phone        string             `bson:"phone,omitempty"`
	Address      string             `bson:"address,omitempty"`
	PasswordHash string             `bson:"password_hash"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (m *mongoActor) toDomain() *domain.Actor {
	return &domain.Actor{
		ID:           m.ID.Hex(),
		Role:         domain.Role(m.Role),
		Email:        m.Email,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Phone:        m.Phone,
		Address:      m.Address,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func (r *ActorRepository) Create(ctx context.Context, actor *domain.Actor) (*domain.Actor, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoActor{
		ID:           primitive.NewObjectID(),
		Role:         string(actor.Role),
		Email:        actor.Email,
		FirstName:    actor.FirstName,
		LastName:     actor.LastName,
		Phone:        actor.Phone,
		Address:      actor.Address,
		PasswordHash: actor.PasswordHash,
		CreatedAt:    actor.CreatedAt,
		UpdatedAt:    actor.UpdatedAt,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, classify("insert actor", err)
	}
	return doc.toDomain(), nil
}

func (r *ActorRepository) FindByIdentifier(ctx context.Context, role domain.Role, email string) (*domain.Actor, error) {
	return r.findOne(ctx, bson.M{"role": string(role), "email": email})
}

func (r *ActorRepository) FindByID(ctx context.Context, role domain.Role, id string) (*domain.Actor, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid, "role": string(role)})
}

func (r *ActorRepository) findOne(ctx context.Context, filter bson.M) (*domain.Actor, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m mongoActor
	if err := r.col.FindOne(ctx, filter).Decode(&m); err != nil {
		return nil, classify("find actor", err)
	}
	return m.toDomain(), nil
}

// Update applies the non-nil fields of patch and returns the updated actor.
func (r *ActorRepository) Update(ctx context.Context, role domain.Role, id string, patch domain.ProfilePatch) (*domain.Actor, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	for field, value := range map[string]*string{
		"first_name": patch.FirstName,
		"last_name":  patch.LastName,
		"phone":      patch.Phone,
		"address":    patch.Address,
	} {
		if value != nil {
			set[field] = *value
		}
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m mongoActor
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "role": string(role)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		return nil, classify("update actor", err)
	}
	return m.toDomain(), nil
}

func (r *ActorRepository) SetPasswordHash(ctx context.Context, role domain.Role, id, hash string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": oid, "role": string(role)},
		bson.M{"$set": bson.M{"password_hash": hash, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return classify("set password", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// EnsureIndexes creates the unique login identifier index.
func (r *ActorRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "role", Value: 1}, {Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("role_email_unique"),
	})
	return err
}
