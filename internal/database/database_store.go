package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DBStore keeps auth tokens in MongoDB, one document per app name.
type DBStore struct {
	tokens  *mongo.Collection
	timeout time.Duration
}

func NewDatabaseStore(tokens *mongo.Collection, timeout time.Duration) *DBStore {
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	return &DBStore{tokens: tokens, timeout: timeout}
}

func wrapErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("unique key conflicts: %w", err)
	}
	return fmt.Errorf("database operation failed: %w", err)
}

// LoadToken returns "" without error when nothing is stored for appName.
func (ds *DBStore) LoadToken(ctx context.Context, appName string) (string, error) {
	if appName == "" {
		return "", ErrAppNameEmpty
	}
	ctx, cancel := context.WithTimeout(ctx, ds.timeout)
	defer cancel()

	var record TokenRecord
	startTime := time.Now()
	err := ds.tokens.FindOne(ctx, bson.D{{Key: "app_name", Value: appName}}).Decode(&record)
	logger.DebugF("token query cost: %v", time.Since(startTime))

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", wrapErr(err)
	}
	return record.Token, nil
}

func (ds *DBStore) SaveToken(ctx context.Context, appName, token string) error {
	if appName == "" {
		return ErrAppNameEmpty
	}
	ctx, cancel := context.WithTimeout(ctx, ds.timeout)
	defer cancel()

	record := NewTokenRecord(appName, token)
	result, err := ds.tokens.ReplaceOne(ctx,
		bson.D{{Key: "app_name", Value: appName}},
		record,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return wrapErr(err)
	}

	logger.InfoF("Token saved: app_name=%s, matched=%d, modified=%d, upserted=%v",
		appName,
		result.MatchedCount,
		result.ModifiedCount,
		result.UpsertedID != nil,
	)
	return nil
}
