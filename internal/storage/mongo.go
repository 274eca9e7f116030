package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/torspider/internal/model"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default MongoDB names.
const (
	DefaultMongoDatabase   = "torspider"
	DefaultMongoCollection = "pages"
)

// MongoStore writes records to a MongoDB collection, one document per page
// with the canonical URL as _id.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongo connects to uri and checks the primary is reachable.
func OpenMongo(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongodb: %w", ErrMissingDSN)
	}
	if database == "" {
		database = DefaultMongoDatabase
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

// NewMongoStore wraps an existing collection.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{client: coll.Database().Client(), coll: coll}
}

// InsertBatch inserts records with an unordered insertMany, so one refused
// document does not stop the others.
func (s *MongoStore) InsertBatch(ctx context.Context, records []model.Record) (int, []model.RecordError, error) {
	if len(records) == 0 {
		return 0, nil, nil
	}

	docs := make([]any, len(records))
	for i := range records {
		docs[i] = records[i]
	}

	res, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return len(res.InsertedIDs), nil, nil
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) && bwe.WriteConcernError == nil && len(bwe.WriteErrors) > 0 {
		recErrs := recordErrors(records, bwe.WriteErrors)
		return len(records) - len(recErrs), recErrs, nil
	}
	return 0, nil, fmt.Errorf("mongodb insert: %w", err)
}

// recordErrors maps bulk write errors back to the records they refer to.
func recordErrors(records []model.Record, writeErrors []mongo.BulkWriteError) []model.RecordError {
	out := make([]model.RecordError, 0, len(writeErrors))
	for _, we := range writeErrors {
		re := model.RecordError{Index: we.Index}
		if we.Index >= 0 && we.Index < len(records) {
			re.ID = records[we.Index].ID
		}
		if isDuplicateKeyCode(we.Code) {
			re.Err = fmt.Errorf("%w: %s", ErrDuplicate, we.Message)
		} else {
			re.Err = fmt.Errorf("mongodb code %d: %s", we.Code, we.Message)
		}
		out = append(out, re)
	}
	return out
}

// isDuplicateKeyCode reports the server codes used for unique index violations.
func isDuplicateKeyCode(code int) bool {
	return code == 11000 || code == 11001 || code == 12582
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
