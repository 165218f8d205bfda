// Package mongostore is a durable capability.SessionStore backed by
// MongoDB: one collection, composite-key documents, update-in-place
// writes through FindOneAndUpdate.
package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/wdoppenberg/ag-ui/internal/capability"
)

// doc is the on-disk document shape for a session.
type doc struct {
	AppName        string         `bson:"app_name"`
	SessionID      string         `bson:"session_id"`
	UserID         string         `bson:"user_id"`
	State          map[string]any `bson:"state"`
	LastUpdateTime time.Time      `bson:"last_update_time"`
}

// Store persists sessions in a single MongoDB collection, keyed by the
// compound (app_name, session_id, user_id) tuple.
type Store struct {
	coll *mongo.Collection
}

// New wraps an existing collection handle. Callers are responsible for
// connecting the client and, ideally, creating a unique compound index on
// {app_name, session_id, user_id}.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

func filter(appName, sessionID, userID string) bson.M {
	return bson.M{"app_name": appName, "session_id": sessionID, "user_id": userID}
}

// Get implements capability.SessionStore.
func (s *Store) Get(ctx context.Context, appName, sessionID, userID string) (*capability.Session, error) {
	var d doc
	err := s.coll.FindOne(ctx, filter(appName, sessionID, userID)).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toSession(d), nil
}

// Create implements capability.SessionStore.
func (s *Store) Create(ctx context.Context, appName, sessionID, userID string, initialState map[string]any) (*capability.Session, error) {
	if initialState == nil {
		initialState = map[string]any{}
	}
	d := doc{
		AppName:        appName,
		SessionID:      sessionID,
		UserID:         userID,
		State:          initialState,
		LastUpdateTime: time.Now(),
	}
	_, err := s.coll.InsertOne(ctx, d)
	if err != nil {
		return nil, err
	}
	return toSession(d), nil
}

// Delete implements capability.SessionStore.
func (s *Store) Delete(ctx context.Context, appName, sessionID, userID string) error {
	_, err := s.coll.DeleteOne(ctx, filter(appName, sessionID, userID))
	return err
}

// AppendEvent implements capability.SessionStore by applying the delta to
// the stored state document via an atomic update, then returning the
// updated session.
func (s *Store) AppendEvent(ctx context.Context, session *capability.Session, delta capability.StateDelta) (*capability.Session, error) {
	now := time.Now()
	var update bson.M
	if delta.Merge {
		set := bson.M{"last_update_time": now}
		for k, v := range delta.Values {
			set["state."+k] = v
		}
		update = bson.M{"$set": set}
	} else {
		set := bson.M{"last_update_time": now}
		unset := bson.M{}
		for k, v := range delta.Values {
			if v == nil {
				unset["state."+k] = ""
				continue
			}
			set["state."+k] = v
		}
		update = bson.M{"$set": set}
		if len(unset) > 0 {
			update["$unset"] = unset
		}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var d doc
	err := s.coll.FindOneAndUpdate(ctx, filter(session.AppName, session.ID, session.UserID), update, opts).Decode(&d)
	if err != nil {
		return nil, err
	}
	return toSession(d), nil
}

func toSession(d doc) *capability.Session {
	return &capability.Session{
		ID:             d.SessionID,
		AppName:        d.AppName,
		UserID:         d.UserID,
		State:          d.State,
		LastUpdateTime: d.LastUpdateTime,
	}
}
