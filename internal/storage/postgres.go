package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/juhanik/flowstate/pkg/api"
)

// Postgres is a Store backed by PostgreSQL.
//
// It expects an *sql.DB using a Postgres driver, e.g.:
//
//	import _ "github.com/jackc/pgx/v5/stdlib"
type Postgres struct {
	db    *sql.DB
	codec api.Codec
}

var _ api.EnumerableStore = (*Postgres)(nil)

// NewPostgres initializes the required schema and returns a new Postgres
// store.
func NewPostgres(db *sql.DB, cfg api.StoreConfig) (*Postgres, error) {
	c, _, _ := resolve(cfg)
	s := &Postgres{db: db, codec: c}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Postgres) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS flow_states (
			flow_id     TEXT NOT NULL,
			variant_id  TEXT NOT NULL,
			instance_id TEXT NOT NULL,
			payload     BYTEA NOT NULL,
			saved_at    BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (flow_id, variant_id, instance_id)
		);`,
	)
	return err
}

func (s *Postgres) Get(ctx context.Context, flowID string, opts api.StoreOptions) (*api.PersistedState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT payload FROM flow_states
		WHERE flow_id = $1 AND variant_id = $2 AND instance_id = $3`,
		flowID, segment(opts.VariantID), segment(opts.InstanceID),
	)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	st, err := s.codec.Decode(payload)
	if err != nil {
		return nil, nil
	}
	return st, nil
}

func (s *Postgres) Set(ctx context.Context, flowID string, state *api.PersistedState, opts api.StoreOptions) error {
	payload, err := s.codec.Encode(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flow_states (flow_id, variant_id, instance_id, payload, saved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (flow_id, variant_id, instance_id)
		DO UPDATE SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at`,
		flowID, segment(opts.VariantID), segment(opts.InstanceID), payload, savedAt(state),
	)
	return err
}

func (s *Postgres) Remove(ctx context.Context, flowID string, opts api.StoreOptions) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM flow_states
		WHERE flow_id = $1 AND variant_id = $2 AND instance_id = $3`,
		flowID, segment(opts.VariantID), segment(opts.InstanceID),
	)
	return err
}

func (s *Postgres) RemoveFlow(ctx context.Context, flowID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM flow_states WHERE flow_id = $1`, flowID)
	return err
}

func (s *Postgres) RemoveAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM flow_states`)
	return err
}

func (s *Postgres) List(ctx context.Context, flowID string) ([]api.InstanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, variant_id, payload FROM flow_states
		WHERE flow_id = $1
		ORDER BY variant_id, instance_id`,
		flowID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []api.InstanceRecord
	for rows.Next() {
		var instanceID, variantID string
		var payload []byte
		if err := rows.Scan(&instanceID, &variantID, &payload); err != nil {
			return nil, err
		}
		st, derr := s.codec.Decode(payload)
		if derr != nil || st == nil {
			continue
		}
		records = append(records, api.InstanceRecord{
			FlowID:     flowID,
			InstanceID: instanceID,
			VariantID:  variantID,
			State:      st,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
