package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/gudam/internal/compiler"
	"github.com/roach88/gudam/internal/persist"
	"github.com/roach88/gudam/internal/value"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledStore is the serializable form of a compiled store spec.
type CompiledStore struct {
	Key     string                       `json:"key"`
	State   value.Record                 `json:"state"`
	Getters map[string]string            `json:"getters,omitempty"`
	Actions map[string]map[string]string `json:"actions,omitempty"`
	Persist *CompiledPersist             `json:"persist,omitempty"`
}

// CompiledPersist is the resolved persistence configuration of a store.
type CompiledPersist struct {
	Version    string `json:"version"`
	Codec      string `json:"codec"`
	DataKey    string `json:"data_key"`
	VersionKey string `json:"version_key"`
}

// CompilationResult holds the compiled stores.
type CompilationResult struct {
	Stores []CompiledStore `json:"stores"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile store specs to canonical JSON",
		Long: `Compile CUE store specs and print what each store resolves to.

Defaults are applied to the initial state, persistence options are
resolved (version, codec and the storage keys used) and the result can be
written as RFC 8785 canonical JSON with --output.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil {
		return outputLoadError(formatter, loadErrors[0])
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result := &CompilationResult{Stores: make([]CompiledStore, 0, len(loadResult.Stores))}
	for _, spec := range loadResult.Stores {
		formatter.VerboseLog("Compiling store: %s", spec.Key)
		result.Stores = append(result.Stores, compiledStore(spec))
	}

	if opts.Output != "" {
		if err := writeCompiledToFile(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, ErrCodeWriteFailed, err)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// compiledStore resolves a spec into its serializable form.
func compiledStore(spec *compiler.StoreSpec) CompiledStore {
	out := CompiledStore{
		Key:     spec.Key,
		State:   spec.State,
		Getters: spec.Getters,
	}

	if len(spec.Actions) > 0 {
		out.Actions = make(map[string]map[string]string, len(spec.Actions))
		for name, action := range spec.Actions {
			out.Actions[name] = action.Assign
		}
	}

	if spec.Persist != nil {
		version := spec.Persist.Version
		if version == "" {
			version = persist.DefaultVersion
		}
		codec := spec.Persist.Codec
		if codec == "" {
			codec = "json"
		}
		out.Persist = &CompiledPersist{
			Version:    version,
			Codec:      codec,
			DataKey:    persist.DataKey(spec.Key),
			VersionKey: persist.VersionKey(spec.Key),
		}
	}

	return out
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d store(s)\n\n", len(result.Stores))

	for _, s := range result.Stores {
		persisted := "not persisted"
		if s.Persist != nil {
			persisted = fmt.Sprintf("persisted (version %s, %s)", s.Persist.Version, s.Persist.Codec)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %d field(s), %d getter(s), %d action(s), %s\n",
			s.Key, len(s.State), len(s.Getters), len(s.Actions), persisted)
	}
	fmt.Fprintln(formatter.Writer)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote canonical JSON to %s\n", outputFile)
	}

	return nil
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	cliErrors := make([]CLIError, len(errs))
	for i, err := range errs {
		cliErrors[i] = cliErrorOf(err)
	}

	if formatter.Format == "json" {
		if err := formatter.Report(false, "", nil, cliErrors...); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for i, err := range errs {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		e := cliErrors[i]
		if where := e.Where(); where != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", e.Code, where, e.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", e.Code, e.Message)
		}
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// writeCompiledToFile writes the compilation result as canonical JSON.
func writeCompiledToFile(result *CompilationResult, filename string) error {
	stores := make([]any, len(result.Stores))
	for i, s := range result.Stores {
		m := map[string]any{
			"key":   s.Key,
			"state": s.State,
		}
		if len(s.Getters) > 0 {
			m["getters"] = s.Getters
		}
		if len(s.Actions) > 0 {
			m["actions"] = s.Actions
		}
		if s.Persist != nil {
			m["persist"] = map[string]any{
				"version":     s.Persist.Version,
				"codec":       s.Persist.Codec,
				"data_key":    s.Persist.DataKey,
				"version_key": s.Persist.VersionKey,
			}
		}
		stores[i] = m
	}

	data, err := value.MarshalCanonical(map[string]any{"stores": stores})
	if err != nil {
		return fmt.Errorf("marshaling stores: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
