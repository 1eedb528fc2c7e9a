package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go-workflow/internal/common/errs"
	"go-workflow/internal/database"
	"go-workflow/internal/features/permission"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrStaleState means the case left the expected state before a
// transition could be applied.
var ErrStaleState = errors.New("case state changed concurrently")

type CaseRepository interface {
	Create(ctx context.Context, c *Case) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*Case, error)
	List(ctx context.Context, f CaseFilter, limit, offset int64) ([]Case, error)
	// ListOpen returns bound cases whose current state is not one of
	// excludeStates.
	ListOpen(ctx context.Context, excludeStates []string) ([]Case, error)
	// ListBound pages through bound cases in id order.
	ListBound(ctx context.Context, after primitive.ObjectID, limit int64) ([]Case, error)
	ListUnbound(ctx context.Context) ([]Case, error)
	CountByTemplate(ctx context.Context, templateID primitive.ObjectID) (int64, error)

	// MarkStep records a completed step if the case is still in state.
	// It returns ErrStaleState otherwise.
	MarkStep(ctx context.Context, id primitive.ObjectID, state string, step int, entry StepCompletion, currentStep int) error
	// MoveState applies a transition if the case is still in from.
	// It returns ErrStaleState otherwise.
	MoveState(ctx context.Context, id primitive.ObjectID, from, to string, currentStep int, openEntry bool) error
	SetProjection(ctx context.Context, id primitive.ObjectID, completed CompletedSteps, currentStep int) error
	SetFormFields(ctx context.Context, id primitive.ObjectID, form int, fields map[string]any) error
	Bind(ctx context.Context, id primitive.ObjectID, templateID primitive.ObjectID, templateCode, state string, completed CompletedSteps, currentStep int) error

	CaseRef(ctx context.Context, id primitive.ObjectID) (permission.CaseRef, error)
	EnsureIndexes(ctx context.Context) error
}

type CaseRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewCaseRepository(mongodb *database.MongodbDB) CaseRepository {
	return &CaseRepositoryImpl{
		Collection: mongodb.DB.Collection("cases"),
	}
}

func (r *CaseRepositoryImpl) Create(ctx context.Context, c *Case) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	_, err := r.Collection.InsertOne(ctx, c)
	return err
}

func (r *CaseRepositoryImpl) GetByID(ctx context.Context, id primitive.ObjectID) (*Case, error) {
	var c Case
	if err := r.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.NotFound("case", id.Hex())
		}
		return nil, err
	}
	return &c, nil
}

func (r *CaseRepositoryImpl) List(ctx context.Context, f CaseFilter, limit, offset int64) ([]Case, error) {
	query := bson.M{}
	if f.TemplateCode != "" {
		query["template_code"] = f.TemplateCode
	}
	if f.State != "" {
		query["current_state"] = f.State
	}
	if f.CreatedBy != "" {
		query["created_by"] = f.CreatedBy
	}
	opts := options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(limit).SetSkip(offset)
	return r.find(ctx, query, opts)
}

func (r *CaseRepositoryImpl) ListOpen(ctx context.Context, excludeStates []string) ([]Case, error) {
	query := bson.M{"template_id": bson.M{"$exists": true}}
	if len(excludeStates) > 0 {
		query["current_state"] = bson.M{"$nin": excludeStates}
	}
	return r.find(ctx, query, options.Find().SetSort(bson.M{"updated_at": 1}))
}

func (r *CaseRepositoryImpl) ListBound(ctx context.Context, after primitive.ObjectID, limit int64) ([]Case, error) {
	query := bson.M{"template_id": bson.M{"$exists": true}}
	if !after.IsZero() {
		query["_id"] = bson.M{"$gt": after}
	}
	return r.find(ctx, query, options.Find().SetSort(bson.M{"_id": 1}).SetLimit(limit))
}

func (r *CaseRepositoryImpl) ListUnbound(ctx context.Context) ([]Case, error) {
	return r.find(ctx, bson.M{"template_id": bson.M{"$exists": false}}, options.Find().SetSort(bson.M{"_id": 1}))
}

func (r *CaseRepositoryImpl) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]Case, error) {
	cursor, err := r.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var cases []Case
	if err := cursor.All(ctx, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}

func (r *CaseRepositoryImpl) CountByTemplate(ctx context.Context, templateID primitive.ObjectID) (int64, error) {
	return r.Collection.CountDocuments(ctx, bson.M{"template_id": templateID})
}

func (r *CaseRepositoryImpl) MarkStep(ctx context.Context, id primitive.ObjectID, state string, step int, entry StepCompletion, currentStep int) error {
	key := fmt.Sprintf("completed_steps.%s.%s", state, strconv.Itoa(step))
	res, err := r.Collection.UpdateOne(ctx, bson.M{"_id": id, "current_state": state}, bson.M{"$set": bson.M{
		key:            entry,
		"current_step": currentStep,
		"updated_at":   time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *CaseRepositoryImpl) MoveState(ctx context.Context, id primitive.ObjectID, from, to string, currentStep int, openEntry bool) error {
	set := bson.M{
		"current_state": to,
		"current_step":  currentStep,
		"updated_at":    time.Now(),
	}
	if openEntry {
		set["completed_steps."+to] = bson.M{}
	}
	res, err := r.Collection.UpdateOne(ctx, bson.M{"_id": id, "current_state": from}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *CaseRepositoryImpl) SetProjection(ctx context.Context, id primitive.ObjectID, completed CompletedSteps, currentStep int) error {
	_, err := r.Collection.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"completed_steps": completed,
		"current_step":    currentStep,
		"updated_at":      time.Now(),
	}})
	return err
}

func (r *CaseRepositoryImpl) SetFormFields(ctx context.Context, id primitive.ObjectID, form int, fields map[string]any) error {
	set := bson.M{"updated_at": time.Now()}
	prefix := "data.forms." + strconv.Itoa(form) + "."
	for path, v := range fields {
		set[prefix+path] = v
	}
	_, err := r.Collection.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}

func (r *CaseRepositoryImpl) Bind(ctx context.Context, id primitive.ObjectID, templateID primitive.ObjectID, templateCode, state string, completed CompletedSteps, currentStep int) error {
	res, err := r.Collection.UpdateOne(ctx,
		bson.M{"_id": id, "template_id": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{
			"template_id":     templateID,
			"template_code":   templateCode,
			"current_state":   state,
			"current_step":    currentStep,
			"completed_steps": completed,
			"updated_at":      time.Now(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.Validation("already_bound", "case %s already has a template", id.Hex())
	}
	return nil
}

func (r *CaseRepositoryImpl) CaseRef(ctx context.Context, id primitive.ObjectID) (permission.CaseRef, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return permission.CaseRef{}, err
	}
	return c.Ref(), nil
}

func (r *CaseRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "template_id", Value: 1}, {Key: "current_state", Value: 1}}},
		{Keys: bson.D{{Key: "created_by", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}
