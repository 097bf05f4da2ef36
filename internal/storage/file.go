package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juhanik/flowstate/pkg/api"
)

// File is a Store that keeps one JSON file per instance under a root
// directory. Keys are sanitized into file names, so key functions should emit
// filesystem-safe keys; distinct keys that sanitize identically would
// collide.
type File struct {
	root  string
	codec api.Codec
	key   api.KeyFunc
}

var _ api.EnumerableStore = (*File)(nil)

// NewFile creates a file-backed store rooted at dir, creating it if needed.
func NewFile(dir string, cfg api.StoreConfig) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	c, k, _ := resolve(cfg)
	return &File{root: dir, codec: c, key: k}, nil
}

func (f *File) path(flowID string, opts api.StoreOptions) string {
	return filepath.Join(f.root, sanitize(f.key(flowID, opts.InstanceID, opts.VariantID))+".json")
}

func sanitize(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}

func (f *File) Get(ctx context.Context, flowID string, opts api.StoreOptions) (*api.PersistedState, error) {
	data, err := os.ReadFile(f.path(flowID, opts))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	_, st := unwrap(f.codec, data)
	return st, nil
}

func (f *File) Set(ctx context.Context, flowID string, state *api.PersistedState, opts api.StoreOptions) error {
	data, err := wrap(f.codec, flowID, state, opts)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path(flowID, opts), data, 0o644)
}

func (f *File) Remove(ctx context.Context, flowID string, opts api.StoreOptions) error {
	err := os.Remove(f.path(flowID, opts))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (f *File) RemoveFlow(ctx context.Context, flowID string) error {
	return f.each(func(path string, env envelope) error {
		if env.FlowID == flowID {
			return os.Remove(path)
		}
		return nil
	})
}

func (f *File) RemoveAll(ctx context.Context) error {
	return f.each(func(path string, env envelope) error {
		return os.Remove(path)
	})
}

func (f *File) List(ctx context.Context, flowID string) ([]api.InstanceRecord, error) {
	var records []api.InstanceRecord
	err := f.each(func(path string, env envelope) error {
		if env.FlowID != flowID {
			return nil
		}
		st, derr := f.codec.Decode(env.State)
		if derr != nil || st == nil {
			// One corrupt file never blocks visibility into the rest.
			return nil
		}
		records = append(records, record(env, st))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].VariantID != records[j].VariantID {
			return records[i].VariantID < records[j].VariantID
		}
		return records[i].InstanceID < records[j].InstanceID
	})
	return records, nil
}

// each invokes fn for every readable record file, skipping files that cannot
// be read or parsed.
func (f *File) each(fn func(path string, env envelope) error) error {
	dirEntries, err := os.ReadDir(f.root)
	if err != nil {
		return err
	}
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		path := filepath.Join(f.root, de.Name())
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			continue
		}
		var env envelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		if ferr := fn(path, env); ferr != nil {
			return ferr
		}
	}
	return nil
}
