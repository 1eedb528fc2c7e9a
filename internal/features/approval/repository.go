package approval

import (
	"context"
	"fmt"

	"go-workflow/internal/common/errs"
	"go-workflow/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ApprovalRepository interface {
	// Insert returns an error wrapping errs.ErrConflictIgnored when the
	// step was already recorded for the case.
	Insert(ctx context.Context, rec *ApprovalRecord) error
	ListByCase(ctx context.Context, caseID primitive.ObjectID) (Ledger, error)
	ListByCaseState(ctx context.Context, caseID primitive.ObjectID, stateCode string) (Ledger, error)
	EnsureIndexes(ctx context.Context) error
}

type ApprovalRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewApprovalRepository(mongodb *database.MongodbDB) ApprovalRepository {
	return &ApprovalRepositoryImpl{
		Collection: mongodb.DB.Collection("approval_records"),
	}
}

func (r *ApprovalRepositoryImpl) Insert(ctx context.Context, rec *ApprovalRecord) error {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if _, err := r.Collection.InsertOne(ctx, rec); err != nil {
		if database.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s step %d", errs.ErrConflictIgnored, rec.StateCode, rec.StepNumber)
		}
		return err
	}
	return nil
}

func (r *ApprovalRepositoryImpl) ListByCase(ctx context.Context, caseID primitive.ObjectID) (Ledger, error) {
	return r.find(ctx, bson.M{"case_id": caseID})
}

func (r *ApprovalRepositoryImpl) ListByCaseState(ctx context.Context, caseID primitive.ObjectID, stateCode string) (Ledger, error) {
	return r.find(ctx, bson.M{"case_id": caseID, "state_code": stateCode})
}

func (r *ApprovalRepositoryImpl) find(ctx context.Context, filter bson.M) (Ledger, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "step_number", Value: 1}})
	cursor, err := r.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out Ledger
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ApprovalRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "case_id", Value: 1}, {Key: "state_code", Value: 1}, {Key: "step_number", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_case_state_step"),
		},
		{
			Keys: bson.D{{Key: "performer", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	return err
}
