package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/petrijr/gateflow/pkg/api"
)

// MongoStore is a SessionStore backed by MongoDB. Optimistic concurrency is
// done with a version-filtered replace; expiry with an expires_at field
// checked on read and filtered on list.
type MongoStore struct {
	coll *mongo.Collection
	ttl  time.Duration

	// now is swappable in tests.
	now func() time.Time
}

var _ SessionStore = (*MongoStore)(nil)

// MongoOption configures a MongoStore.
type MongoOption func(*MongoStore)

// WithMongoTTL sets the session time-to-live. Zero means no expiry.
func WithMongoTTL(ttl time.Duration) MongoOption {
	return func(s *MongoStore) {
		s.ttl = ttl
	}
}

// NewMongoStore creates a Mongo-backed session store.
// dbName defaults to "gateflow" if empty, collName defaults to "sessions".
func NewMongoStore(client *mongo.Client, dbName, collName string, opts ...MongoOption) *MongoStore {
	if dbName == "" {
		dbName = "gateflow"
	}
	if collName == "" {
		collName = "sessions"
	}
	s := &MongoStore{
		coll: client.Database(dbName).Collection(collName),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type mongoSessionDoc struct {
	ID        string    `bson:"_id"`
	Status    string    `bson:"status"`
	Version   int64     `bson:"version"`
	State     []byte    `bson:"state"`
	ExpiresAt time.Time `bson:"expires_at,omitempty"`
}

func (s *MongoStore) doc(state *api.ProcessState) (mongoSessionDoc, error) {
	data, err := EncodeState(state)
	if err != nil {
		return mongoSessionDoc{}, err
	}
	doc := mongoSessionDoc{
		ID:      state.SessionID,
		Status:  string(state.Status),
		Version: state.Version,
		State:   data,
	}
	if s.ttl > 0 {
		doc.ExpiresAt = s.now().Add(s.ttl)
	}
	return doc, nil
}

func (s *MongoStore) expiredDoc(doc mongoSessionDoc) bool {
	return !doc.ExpiresAt.IsZero() && !s.now().Before(doc.ExpiresAt)
}

func (s *MongoStore) Get(ctx context.Context, sessionID string) (*api.ProcessState, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc mongoSessionDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", api.ErrSessionNotFound, sessionID)
		}
		return nil, err
	}
	if s.expiredDoc(doc) {
		_, _ = s.coll.DeleteOne(ctx, bson.M{"_id": sessionID})
		return nil, fmt.Errorf("%w: %s", api.ErrSessionNotFound, sessionID)
	}
	return DecodeState(doc.State)
}

func (s *MongoStore) Put(ctx context.Context, state *api.ProcessState, expectedVersion int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	doc, err := s.doc(state)
	if err != nil {
		return err
	}

	// Evict an expired doc so a new session may reuse the id.
	_, _ = s.coll.DeleteOne(ctx, bson.M{
		"_id":        state.SessionID,
		"expires_at": bson.M{"$gt": time.Time{}, "$lte": s.now()},
	})

	if expectedVersion == 0 {
		_, err := s.coll.InsertOne(ctx, doc)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s", api.ErrDuplicateSession, state.SessionID)
			}
			return err
		}
		return nil
	}

	res, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": state.SessionID, "version": expectedVersion},
		doc,
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := s.coll.CountDocuments(ctx, bson.M{"_id": state.SessionID})
		if err == nil && n == 0 {
			return fmt.Errorf("%w: %s", api.ErrSessionNotFound, state.SessionID)
		}
		return fmt.Errorf("%w: %s expected %d", api.ErrVersionConflict, state.SessionID, expectedVersion)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": sessionID})
	return err
}

func (s *MongoStore) List(ctx context.Context, filter SessionFilter) ([]*api.ProcessState, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := bson.M{}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}

	cur, err := s.coll.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var result []*api.ProcessState
	for cur.Next(ctx) {
		var doc mongoSessionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		if s.expiredDoc(doc) {
			continue
		}
		st, err := DecodeState(doc.State)
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, cur.Err()
}
