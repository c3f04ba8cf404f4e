package database

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// WithTransaction runs fn inside a session transaction. Standalone servers
// cannot run transactions, so enabled=false calls fn directly.
func WithTransaction(ctx context.Context, client *mongo.Client, enabled bool, fn func(ctx context.Context) error) error {
	if !enabled {
		return fn(ctx)
	}

	session, err := client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

// IsDuplicateKey reports a unique index violation.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
