package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gudam/internal/persist"
	"github.com/roach88/gudam/internal/storage"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	BackendOptions
	Store string // optional - filter to one store key
}

// StoredItem is one raw storage entry.
type StoredItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Seq   int64  `json:"seq,omitempty"`
}

// StoredStore groups the persistence entries of one store.
type StoredStore struct {
	Key     string `json:"key"`
	Version string `json:"version,omitempty"`
	Data    string `json:"data,omitempty"`
}

// InspectResult holds the inspect output.
type InspectResult struct {
	Source string        `json:"source"`
	Stores []StoredStore `json:"stores"`
	Other  []StoredItem  `json:"other,omitempty"`
	Items  int           `json:"items"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List persisted store state",
		Long: `List what the persistence plugin has written to a storage backend.

Entries are grouped by store: the version tag and the serialized state.
Keys that do not belong to any store are listed separately.

Examples:
  gudam inspect --db ./gudam.db
  gudam inspect --db ./gudam.db --store counter
  gudam inspect --storage ./prefs.toml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.TOMLFile, "storage", "", "path to TOML storage file")
	cmd.Flags().StringVar(&opts.Store, "store", "", "only show this store key")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	be, err := opts.BackendOptions.open()
	if err != nil {
		return err
	}
	defer be.close()

	items, err := be.items(ctx)
	if err != nil {
		_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read storage", err)
	}

	result := groupItems(be.name, items, opts.Store)

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if len(result.Stores) == 0 && len(result.Other) == 0 {
		fmt.Fprintf(w, "No persisted state in %s\n", result.Source)
		return nil
	}

	fmt.Fprintf(w, "Storage: %s (%d item(s))\n\n", result.Source, result.Items)
	for _, s := range result.Stores {
		fmt.Fprintf(w, "%s\n", s.Key)
		fmt.Fprintf(w, "  version: %s\n", s.Version)
		fmt.Fprintf(w, "  data:    %s\n", strings.TrimRight(s.Data, "\n"))
	}
	if len(result.Other) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Other keys:")
		for _, it := range result.Other {
			fmt.Fprintf(w, "  %s = %s\n", it.Key, it.Value)
		}
	}
	return nil
}

// groupItems sorts raw items into per-store entries. With filter set, only
// that store is kept and unrelated keys are dropped.
func groupItems(source string, items []storage.Item, filter string) InspectResult {
	result := InspectResult{Source: source, Stores: []StoredStore{}, Items: len(items)}
	byKey := make(map[string]*StoredStore)

	get := func(key string) *StoredStore {
		s, ok := byKey[key]
		if !ok {
			s = &StoredStore{Key: key}
			byKey[key] = s
		}
		return s
	}

	for _, it := range items {
		switch {
		case strings.HasPrefix(it.Key, persist.DataKeyPrefix):
			get(strings.TrimPrefix(it.Key, persist.DataKeyPrefix)).Data = it.Value
		case strings.HasPrefix(it.Key, persist.VersionKeyPrefix):
			get(strings.TrimPrefix(it.Key, persist.VersionKeyPrefix)).Version = it.Value
		case filter == "":
			result.Other = append(result.Other, StoredItem{Key: it.Key, Value: it.Value, Seq: it.Seq})
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		if filter == "" || k == filter {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		result.Stores = append(result.Stores, *byKey[k])
	}
	return result
}

func sortedStateKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
