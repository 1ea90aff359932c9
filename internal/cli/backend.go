package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/gudam/internal/persist"
	"github.com/roach88/gudam/internal/storage"
)

// BackendOptions selects a durable storage backend. At most one of the
// fields may be set; with neither, commands use their own default.
type BackendOptions struct {
	Database string // SQLite database path
	TOMLFile string // TOML file path
}

// backend is an opened storage backend that can also enumerate its items.
type backend struct {
	persist.Storage
	name  string
	items func(ctx context.Context) ([]storage.Item, error)
	close func() error
}

func (o BackendOptions) validate() error {
	if o.Database != "" && o.TOMLFile != "" {
		return NewExitError(ExitCommandError, "--db and --storage are mutually exclusive")
	}
	return nil
}

func (o BackendOptions) isSet() bool {
	return o.Database != "" || o.TOMLFile != ""
}

// open opens the selected backend.
func (o BackendOptions) open() (*backend, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	switch {
	case o.Database != "":
		db, err := storage.OpenSQLite(o.Database)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		slog.Debug("storage opened", "backend", "sqlite", "path", o.Database)
		return &backend{
			Storage: db,
			name:    o.Database,
			items:   db.Items,
			close:   db.Close,
		}, nil

	case o.TOMLFile != "":
		f, err := storage.OpenTOMLFile(o.TOMLFile)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open storage file", err)
		}
		slog.Debug("storage opened", "backend", "toml", "path", o.TOMLFile)
		return &backend{
			Storage: f,
			name:    f.Path(),
			items:   keyedItems(f, f.Keys),
			close:   func() error { return nil },
		}, nil

	default:
		return nil, NewExitError(ExitCommandError, "one of --db or --storage is required")
	}
}

// keyedItems lists items for backends that only know their keys. Seq is
// left zero.
func keyedItems(st persist.Storage, keys func() []string) func(ctx context.Context) ([]storage.Item, error) {
	return func(ctx context.Context) ([]storage.Item, error) {
		names := keys()
		sort.Strings(names)
		items := make([]storage.Item, 0, len(names))
		for _, k := range names {
			v, ok, err := st.GetItem(ctx, k)
			if err != nil {
				return nil, fmt.Errorf("read %q: %w", k, err)
			}
			if ok {
				items = append(items, storage.Item{Key: k, Value: v})
			}
		}
		return items, nil
	}
}
