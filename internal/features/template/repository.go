package template

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

type TemplateRepository interface {
	Create(ctx context.Context, tpl *Template) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*Template, error)
	GetByCode(ctx context.Context, code string) (*Template, error)
	List(ctx context.Context) ([]Template, error)
	Update(ctx context.Context, tpl *Template) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	EnsureIndexes(ctx context.Context) error
}

type TemplateRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewTemplateRepository(mongodb *database.MongodbDB) TemplateRepository {
	return &TemplateRepositoryImpl{
		Collection: mongodb.DB.Collection("workflow_templates"),
	}
}

func (r *TemplateRepositoryImpl) Create(ctx context.Context, tpl *Template) error {
	if tpl.ID.IsZero() {
		tpl.ID = primitive.NewObjectID()
	}
	_, err := r.Collection.InsertOne(ctx, tpl)
	if database.IsDuplicateKey(err) {
		return errs.Validation("duplicate_template", "template code %s already exists", tpl.Code)
	}
	return err
}

func (r *TemplateRepositoryImpl) GetByID(ctx context.Context, id primitive.ObjectID) (*Template, error) {
	return r.findOne(ctx, bson.M{"_id": id}, id.Hex())
}

func (r *TemplateRepositoryImpl) GetByCode(ctx context.Context, code string) (*Template, error) {
	return r.findOne(ctx, bson.M{"code": code}, code)
}

func (r *TemplateRepositoryImpl) findOne(ctx context.Context, filter bson.M, key string) (*Template, error) {
	var tpl Template
	err := r.Collection.FindOne(ctx, filter).Decode(&tpl)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.NotFound("template", key)
		}
		return nil, err
	}
	return &tpl, nil
}

func (r *TemplateRepositoryImpl) List(ctx context.Context) ([]Template, error) {
	cursor, err := r.Collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"code": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var templates []Template
	if err = cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *TemplateRepositoryImpl) Update(ctx context.Context, tpl *Template) error {
	update := bson.M{
		"$set": bson.M{
			"name":        tpl.Name,
			"description": tpl.Description,
			"active":      tpl.Active,
			"states":      tpl.States,
			"transitions": tpl.Transitions,
			"updated_at":  time.Now(),
		},
	}
	res, err := r.Collection.UpdateOne(ctx, bson.M{"_id": tpl.ID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("template", tpl.ID.Hex())
	}
	return nil
}

func (r *TemplateRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.Collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *TemplateRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
