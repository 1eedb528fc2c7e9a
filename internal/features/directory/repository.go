package directory

import (
	"context"
	"time"

	"go-workflow/internal/common/errs"
	"go-workflow/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Directory answers role membership questions. It is read-only from the
// engine's point of view.
type Directory interface {
	Lookup(ctx context.Context, userID string) (*Member, error)
	MembersOf(ctx context.Context, roleCode string) ([]Member, error)
}

// MemberRepository is the writable, Mongo-backed directory.
type MemberRepository interface {
	Directory
	Upsert(ctx context.Context, m *Member) error
	List(ctx context.Context) ([]Member, error)
	EnsureIndexes(ctx context.Context) error
}

type MemberRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewMemberRepository(mongodb *database.MongodbDB) MemberRepository {
	return &MemberRepositoryImpl{
		Collection: mongodb.DB.Collection("directory_members"),
	}
}

func (r *MemberRepositoryImpl) Lookup(ctx context.Context, userID string) (*Member, error) {
	var m Member
	err := r.Collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&m)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.NotFound("member", userID)
		}
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepositoryImpl) MembersOf(ctx context.Context, roleCode string) ([]Member, error) {
	cursor, err := r.Collection.Find(ctx, bson.M{"roles": roleCode, "is_active": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []Member
	if err := cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (r *MemberRepositoryImpl) Upsert(ctx context.Context, m *Member) error {
	m.UpdatedAt = time.Now()
	_, err := r.Collection.ReplaceOne(ctx, bson.M{"_id": m.UserID}, m, options.Replace().SetUpsert(true))
	return err
}

func (r *MemberRepositoryImpl) List(ctx context.Context) ([]Member, error) {
	cursor, err := r.Collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"username": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []Member
	if err := cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (r *MemberRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "roles", Value: 1}}})
	return err
}
