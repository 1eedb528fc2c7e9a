package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// Transactor runs fn as one atomic unit. Repositories called with the
// context handed to fn take part in the same transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type MongoTransactor struct {
	Client *mongo.Client
}

func NewTransactor(mongodb *MongodbDB) Transactor {
	return &MongoTransactor{Client: mongodb.Client}
}

func (t *MongoTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := t.Client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

// IsDuplicateKey reports whether err comes from a unique index rejection,
// either directly or as the abort reason of a transaction.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == 11000 {
		return true
	}
	return false
}
