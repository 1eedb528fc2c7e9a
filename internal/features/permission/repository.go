package permission

import (
	"context"
	"time"

	"go-workflow/internal/common/errs"
	"go-workflow/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GrantFilter narrows a grant listing. Zero values are ignored.
type GrantFilter struct {
	RoleCode   string
	UserID     string
	Scope      ScopeType
	State      string
	FormNumber *int
	ActiveOnly bool
}

type GrantRepository interface {
	Create(ctx context.Context, g *Grant) error
	List(ctx context.Context, f GrantFilter) ([]Grant, error)
	ListActive(ctx context.Context) ([]Grant, error)
	SetActive(ctx context.Context, id primitive.ObjectID, active bool) error
	EnsureIndexes(ctx context.Context) error
}

type OverrideRepository interface {
	Create(ctx context.Context, o *Override) error
	ListByCase(ctx context.Context, caseID primitive.ObjectID) ([]Override, error)
	SetActive(ctx context.Context, id primitive.ObjectID, active bool) error
	// ExpireBefore deactivates active overrides whose expiry is not after now.
	ExpireBefore(ctx context.Context, now time.Time) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type GrantRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewGrantRepository(mongodb *database.MongodbDB) GrantRepository {
	return &GrantRepositoryImpl{
		Collection: mongodb.DB.Collection("permission_grants"),
	}
}

func (r *GrantRepositoryImpl) Create(ctx context.Context, g *Grant) error {
	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	_, err := r.Collection.InsertOne(ctx, g)
	return err
}

func (r *GrantRepositoryImpl) List(ctx context.Context, f GrantFilter) ([]Grant, error) {
	query := bson.M{}
	if f.RoleCode != "" {
		query["role_code"] = f.RoleCode
	}
	if f.UserID != "" {
		query["user_id"] = f.UserID
	}
	if f.Scope != "" {
		query["scope"] = f.Scope
	}
	if f.State != "" {
		query["state"] = f.State
	}
	if f.FormNumber != nil {
		query["form_number"] = *f.FormNumber
	}
	if f.ActiveOnly {
		query["is_active"] = true
	}

	cursor, err := r.Collection.Find(ctx, query, options.Find().SetSort(bson.M{"created_at": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var grants []Grant
	if err := cursor.All(ctx, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *GrantRepositoryImpl) ListActive(ctx context.Context) ([]Grant, error) {
	return r.List(ctx, GrantFilter{ActiveOnly: true})
}

func (r *GrantRepositoryImpl) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	res, err := r.Collection.UpdateByID(ctx, id, bson.M{"$set": bson.M{"is_active": active}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("grant", id.Hex())
	}
	return nil
}

func (r *GrantRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "role_code", Value: 1}, {Key: "is_active", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_active", Value: 1}}},
	})
	return err
}

type OverrideRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewOverrideRepository(mongodb *database.MongodbDB) OverrideRepository {
	return &OverrideRepositoryImpl{
		Collection: mongodb.DB.Collection("permission_overrides"),
	}
}

func (r *OverrideRepositoryImpl) Create(ctx context.Context, o *Override) error {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	_, err := r.Collection.InsertOne(ctx, o)
	return err
}

func (r *OverrideRepositoryImpl) ListByCase(ctx context.Context, caseID primitive.ObjectID) ([]Override, error) {
	cursor, err := r.Collection.Find(ctx, bson.M{"case_id": caseID}, options.Find().SetSort(bson.M{"created_at": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []Override
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *OverrideRepositoryImpl) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	res, err := r.Collection.UpdateByID(ctx, id, bson.M{"$set": bson.M{"is_active": active}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("override", id.Hex())
	}
	return nil
}

func (r *OverrideRepositoryImpl) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.Collection.UpdateMany(ctx,
		bson.M{"is_active": true, "expires_at": bson.M{"$ne": nil, "$lte": now}},
		bson.M{"$set": bson.M{"is_active": false}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *OverrideRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "case_id", Value: 1}, {Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "expires_at", Value: 1}}},
	})
	return err
}
