package audit

import (
	"context"

	"go-workflow/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AuditRepository interface {
	Create(ctx context.Context, a *Action) error
	List(ctx context.Context, f Filter, limit, offset int64) ([]Action, error)
	EnsureIndexes(ctx context.Context) error
}

type AuditRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewAuditRepository(mongodb *database.MongodbDB) AuditRepository {
	return &AuditRepositoryImpl{
		Collection: mongodb.DB.Collection("case_actions"),
	}
}

func (r *AuditRepositoryImpl) Create(ctx context.Context, a *Action) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := r.Collection.InsertOne(ctx, a)
	return err
}

func (r *AuditRepositoryImpl) List(ctx context.Context, f Filter, limit, offset int64) ([]Action, error) {
	query := bson.M{}
	if !f.CaseID.IsZero() {
		query["case_id"] = f.CaseID
	}
	if f.ActionType != "" {
		query["action_type"] = f.ActionType
	}
	if f.Performer != "" {
		query["performer"] = f.Performer
	}

	opts := options.Find().SetLimit(limit).SetSkip(offset).SetSort(bson.M{"created_at": -1})
	cursor, err := r.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var actions []Action
	if err := cursor.All(ctx, &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

func (r *AuditRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "case_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}
