package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/juhanik/flowstate/pkg/api"
)

const mongoOpTimeout = 5 * time.Second

// Mongo is a Store backed by MongoDB. Each instance is one document keyed by
// the formatted storage key, with the composite address denormalized into
// queryable fields.
type Mongo struct {
	coll  *mongo.Collection
	codec api.Codec
	key   api.KeyFunc
}

var _ api.EnumerableStore = (*Mongo)(nil)

type mongoDoc struct {
	ID         string `bson:"_id"`
	FlowID     string `bson:"flow_id"`
	InstanceID string `bson:"instance_id"`
	VariantID  string `bson:"variant_id"`
	Payload    []byte `bson:"payload"`
}

// NewMongo creates a Mongo-backed store. dbName defaults to "flowstate" and
// collName to "flow_states" when empty.
func NewMongo(client *mongo.Client, dbName, collName string, cfg api.StoreConfig) *Mongo {
	if dbName == "" {
		dbName = "flowstate"
	}
	if collName == "" {
		collName = "flow_states"
	}
	c, k, _ := resolve(cfg)
	return &Mongo{
		coll:  client.Database(dbName).Collection(collName),
		codec: c,
		key:   k,
	}
}

func (m *Mongo) Get(ctx context.Context, flowID string, opts api.StoreOptions) (*api.PersistedState, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var doc mongoDoc
	err := m.coll.FindOne(ctx, bson.M{"_id": m.key(flowID, opts.InstanceID, opts.VariantID)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	st, err := m.codec.Decode(doc.Payload)
	if err != nil {
		return nil, nil
	}
	return st, nil
}

func (m *Mongo) Set(ctx context.Context, flowID string, state *api.PersistedState, opts api.StoreOptions) error {
	payload, err := m.codec.Encode(state)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	doc := mongoDoc{
		ID:         m.key(flowID, opts.InstanceID, opts.VariantID),
		FlowID:     flowID,
		InstanceID: segment(opts.InstanceID),
		VariantID:  segment(opts.VariantID),
		Payload:    payload,
	}
	_, err = m.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (m *Mongo) Remove(ctx context.Context, flowID string, opts api.StoreOptions) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	_, err := m.coll.DeleteOne(ctx, bson.M{"_id": m.key(flowID, opts.InstanceID, opts.VariantID)})
	return err
}

func (m *Mongo) RemoveFlow(ctx context.Context, flowID string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	_, err := m.coll.DeleteMany(ctx, bson.M{"flow_id": flowID})
	return err
}

func (m *Mongo) RemoveAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	_, err := m.coll.DeleteMany(ctx, bson.M{})
	return err
}

func (m *Mongo) List(ctx context.Context, flowID string) ([]api.InstanceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	findOpts := options.Find().SetSort(bson.D{{Key: "variant_id", Value: 1}, {Key: "instance_id", Value: 1}})
	cur, err := m.coll.Find(ctx, bson.M{"flow_id": flowID}, findOpts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var records []api.InstanceRecord
	for cur.Next(ctx) {
		var doc mongoDoc
		if cur.Decode(&doc) != nil {
			continue
		}
		st, derr := m.codec.Decode(doc.Payload)
		if derr != nil || st == nil {
			continue
		}
		records = append(records, api.InstanceRecord{
			FlowID:     doc.FlowID,
			InstanceID: doc.InstanceID,
			VariantID:  doc.VariantID,
			State:      st,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
