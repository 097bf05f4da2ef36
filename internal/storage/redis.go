package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/juhanik/flowstate/pkg/api"
)

// Redis is a Store backed by Redis. It uses a simple key structure:
//
//	<key func output>          => JSON envelope with the codec-encoded state
//	<prefix>:idx:all           => SET of all record keys
//	<prefix>:idx:flow:<flow>   => SET of record keys for a given flow
//
// The index sets are best-effort: they are always updated on Set/Remove, and
// List reads through them, filtering by the envelope payload.
type Redis struct {
	client *redis.Client
	codec  api.Codec
	key    api.KeyFunc
	prefix string
}

var _ api.EnumerableStore = (*Redis)(nil)

// NewRedis creates a Redis-backed store.
func NewRedis(client *redis.Client, cfg api.StoreConfig) *Redis {
	c, k, prefix := resolve(cfg)
	return &Redis{client: client, codec: c, key: k, prefix: prefix}
}

func (r *Redis) idxAll() string {
	return r.prefix + ":idx:all"
}

func (r *Redis) idxFlow(flowID string) string {
	return r.prefix + ":idx:flow:" + flowID
}

func (r *Redis) Get(ctx context.Context, flowID string, opts api.StoreOptions) (*api.PersistedState, error) {
	data, err := r.client.Get(ctx, r.key(flowID, opts.InstanceID, opts.VariantID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	_, st := unwrap(r.codec, data)
	return st, nil
}

func (r *Redis) Set(ctx context.Context, flowID string, state *api.PersistedState, opts api.StoreOptions) error {
	data, err := wrap(r.codec, flowID, state, opts)
	if err != nil {
		return err
	}
	key := r.key(flowID, opts.InstanceID, opts.VariantID)
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return err
	}

	// Index updates are best-effort; List filters by payload anyway.
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, r.idxAll(), key)
	pipe.SAdd(ctx, r.idxFlow(flowID), key)
	_, _ = pipe.Exec(ctx)

	return nil
}

func (r *Redis) Remove(ctx context.Context, flowID string, opts api.StoreOptions) error {
	key := r.key(flowID, opts.InstanceID, opts.VariantID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.SRem(ctx, r.idxAll(), key)
	pipe.SRem(ctx, r.idxFlow(flowID), key)
	_, _ = pipe.Exec(ctx)
	return nil
}

func (r *Redis) RemoveFlow(ctx context.Context, flowID string) error {
	keys, err := r.client.SMembers(ctx, r.idxFlow(flowID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	pipe := r.client.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, r.idxAll(), key)
	}
	pipe.Del(ctx, r.idxFlow(flowID))
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) RemoveAll(ctx context.Context) error {
	keys, err := r.client.SMembers(ctx, r.idxAll()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	pipe := r.client.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
	}
	pipe.Del(ctx, r.idxAll())
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) List(ctx context.Context, flowID string) ([]api.InstanceRecord, error) {
	keys, err := r.client.SMembers(ctx, r.idxFlow(flowID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	var records []api.InstanceRecord
	for _, cmd := range cmds {
		data, gerr := cmd.Bytes()
		if gerr != nil {
			// Stale index entry or transient miss; skip it.
			continue
		}
		var env envelope
		if json.Unmarshal(data, &env) != nil || env.FlowID != flowID {
			continue
		}
		st, derr := r.codec.Decode(env.State)
		if derr != nil || st == nil {
			continue
		}
		records = append(records, record(env, st))
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].VariantID != records[j].VariantID {
			return records[i].VariantID < records[j].VariantID
		}
		return records[i].InstanceID < records[j].InstanceID
	})
	return records, nil
}
