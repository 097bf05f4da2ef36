package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/juhanik/flowstate/pkg/api"
)

// SQLite is a Store backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example
// "modernc.org/sqlite"). The caller is responsible for importing the
// driver, e.g.:
//
//	import _ "modernc.org/sqlite"
//
// Rows are addressed by the composite (flow_id, variant_id, instance_id)
// columns directly; the injected key scheme only applies to key-value
// backends.
type SQLite struct {
	db    *sql.DB
	codec api.Codec
}

var _ api.EnumerableStore = (*SQLite)(nil)

// NewSQLite initializes the required schema in the given database and
// returns a new SQLite store.
func NewSQLite(db *sql.DB, cfg api.StoreConfig) (*SQLite, error) {
	c, _, _ := resolve(cfg)
	s := &SQLite{db: db, codec: c}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS flow_states (
			flow_id     TEXT NOT NULL,
			variant_id  TEXT NOT NULL,
			instance_id TEXT NOT NULL,
			payload     BLOB NOT NULL,
			saved_at    INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (flow_id, variant_id, instance_id)
		);`,
	)
	return err
}

func segment(id string) string {
	if id == "" {
		return api.DefaultSegment
	}
	return id
}

func savedAt(state *api.PersistedState) int64 {
	if state.Meta != nil {
		return state.Meta.SavedAt
	}
	return 0
}

func (s *SQLite) Get(ctx context.Context, flowID string, opts api.StoreOptions) (*api.PersistedState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT payload FROM flow_states
		WHERE flow_id = ? AND variant_id = ? AND instance_id = ?`,
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
		// Corrupt row: treated as absent, never fatal to the caller.
		return nil, nil
	}
	return st, nil
}

func (s *SQLite) Set(ctx context.Context, flowID string, state *api.PersistedState, opts api.StoreOptions) error {
	payload, err := s.codec.Encode(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flow_states (flow_id, variant_id, instance_id, payload, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (flow_id, variant_id, instance_id)
		DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		flowID, segment(opts.VariantID), segment(opts.InstanceID), payload, savedAt(state),
	)
	return err
}

func (s *SQLite) Remove(ctx context.Context, flowID string, opts api.StoreOptions) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM flow_states
		WHERE flow_id = ? AND variant_id = ? AND instance_id = ?`,
		flowID, segment(opts.VariantID), segment(opts.InstanceID),
	)
	return err
}

func (s *SQLite) RemoveFlow(ctx context.Context, flowID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM flow_states WHERE flow_id = ?`, flowID)
	return err
}

func (s *SQLite) RemoveAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM flow_states`)
	return err
}

func (s *SQLite) List(ctx context.Context, flowID string) ([]api.InstanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, variant_id, payload FROM flow_states
		WHERE flow_id = ?
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
