package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	documentsCollection = "documents"

	fieldID        = "_id"
	fieldParent    = "_parent"
	fieldUpdatedAt = "_updatedAt"
)

// MongoStore keeps every document in one collection keyed by its full path;
// _parent holds the collection path so List and Query are a single indexed find.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection(documentsCollection)}
}

// EnsureIndexes creates the parent index plus one compound index per queried field.
func (s *MongoStore) EnsureIndexes(ctx context.Context, queryFields ...string) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: fieldParent, Value: 1}, {Key: fieldID, Value: 1}}},
	}
	for _, f := range queryFields {
		models = append(models, mongo.IndexModel{
			Keys: bson.D{{Key: fieldParent, Value: 1}, {Key: f, Value: -1}},
		})
	}
	_, err := s.col.Indexes().CreateMany(ctx, models)
	return err
}

func (s *MongoStore) Get(ctx context.Context, path string) (*Snapshot, error) {
	if _, _, err := Split(path); err != nil {
		return nil, err
	}
	var raw bson.M
	err := s.col.FindOne(ctx, bson.M{fieldID: path}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return snapshotFromRaw(raw), nil
}

func (s *MongoStore) Set(ctx context.Context, path string, data Data) error {
	col, _, err := Split(path)
	if err != nil {
		return err
	}
	doc := bson.M{}
	for k, v := range data {
		if strings.HasPrefix(k, "_") {
			return fmt.Errorf("%w: reserved field %q", ErrInvalidPath, k)
		}
		doc[k] = v
	}
	doc[fieldID] = path
	doc[fieldParent] = col
	doc[fieldUpdatedAt] = time.Now().UTC()

	_, err = s.col.ReplaceOne(ctx,
		bson.M{fieldID: path},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) Update(ctx context.Context, path string, fields Data) error {
	if _, _, err := Split(path); err != nil {
		return err
	}

	set := bson.M{}
	unset := bson.M{}
	addToSet := bson.M{}
	pull := bson.M{}
	for k, v := range fields {
		if strings.HasPrefix(k, "_") {
			return fmt.Errorf("%w: reserved field %q", ErrInvalidPath, k)
		}
		t, ok := v.(FieldTransform)
		if !ok {
			set[k] = v
			continue
		}
		switch t.kind {
		case transformDelete:
			unset[k] = ""
		case transformArrayUnion:
			addToSet[k] = bson.M{"$each": t.values}
		case transformArrayRemove:
			pull[k] = bson.M{"$in": t.values}
		}
	}

	update := bson.M{"$currentDate": bson.M{fieldUpdatedAt: true}}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	if len(pull) > 0 {
		update["$pull"] = pull
	}

	res, err := s.col.UpdateOne(ctx, bson.M{fieldID: path}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, path string) error {
	if _, _, err := Split(path); err != nil {
		return err
	}
	_, err := s.col.DeleteOne(ctx, bson.M{fieldID: path})
	return err
}

func (s *MongoStore) List(ctx context.Context, collection string) ([]*Snapshot, error) {
	return s.Query(ctx, Query{Collection: collection})
}

func (s *MongoStore) Add(ctx context.Context, collection string, data Data) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}
	id := primitive.NewObjectID().Hex()
	if err := s.Set(ctx, collection+"/"+id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MongoStore) Query(ctx context.Context, q Query) ([]*Snapshot, error) {
	if err := validateCollection(q.Collection); err != nil {
		return nil, err
	}

	filter := bson.M{fieldParent: q.Collection}
	for _, f := range q.Where {
		filter[f.Field] = f.Value
	}

	opts := options.Find()
	sort := bson.D{}
	if q.OrderBy != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		sort = append(sort, bson.E{Key: q.OrderBy, Value: dir})
	}
	sort = append(sort, bson.E{Key: fieldID, Value: 1})
	opts.SetSort(sort)
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*Snapshot
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, err
		}
		out = append(out, snapshotFromRaw(raw))
	}
	return out, cur.Err()
}

// Ping checks connectivity, used by the health endpoint.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.col.Database().Client().Ping(ctx, nil)
}

func snapshotFromRaw(raw bson.M) *Snapshot {
	path, _ := raw[fieldID].(string)
	snap := &Snapshot{Path: path, Data: Data{}}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		snap.ID = path[i+1:]
	}
	if ts, ok := raw[fieldUpdatedAt].(primitive.DateTime); ok {
		snap.UpdatedAt = ts.Time().UTC()
	}
	for k, v := range raw {
		if strings.HasPrefix(k, "_") {
			continue
		}
		snap.Data[k] = v
	}
	return snap
}
