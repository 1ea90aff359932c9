package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/gudam/internal/compiler"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading store specs from a directory.
type LoadResult struct {
	Stores    []*compiler.StoreSpec
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Store   string    // store key when the error is inside a store spec
	Field   string    // spec field, e.g. "actions.add"
	Pos     token.Pos // CUE position if available
}

// cliError renders the load error for output.
func (e *LoadError) cliError() CLIError {
	return CLIError{
		Code:    e.Code,
		Message: e.Message,
		Store:   e.Store,
		Field:   e.Field,
		Line:    lineOf(e.Pos),
	}
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpecs loads the CUE package in dir and compiles every declared store.
// If mode is LoadModeFailFast, returns on the first compile error.
// If mode is LoadModeCollectAll, compiles every store and collects errors.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  v,
		FileCount: len(cueFiles),
	}

	storesVal := v.LookupPath(cue.ParsePath("store"))
	if !storesVal.Exists() {
		return result, []error{&LoadError{Code: ErrCodeNoStores, Message: "no stores declared in specs"}}
	}

	iter, err := storesVal.Fields()
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating stores: %v", err)}}
	}

	var errs []error
	for iter.Next() {
		spec, compileErr := compiler.CompileStore(iter.Value())
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, iter.Label()))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Stores = append(result.Stores, spec)
	}

	if len(result.Stores) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoStores, Message: "no stores declared in specs"})
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error for store key to a
// LoadError with position info.
func convertCompileError(err error, key string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Store:   key,
			Field:   compileErr.Field,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("store.%s: %v", key, err),
		Store:   key,
	}
}

// cliErrorOf renders any load or compile error for output.
func cliErrorOf(err error) CLIError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.cliError()
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return CLIError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Field:   compileErr.Field,
			Line:    lineOf(compileErr.Pos),
		}
	}
	return CLIError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric        = "E001" // Generic/unknown error
	ErrCodeScanError      = "E002" // Directory scan error
	ErrCodeNoFiles        = "E003" // No CUE files found
	ErrCodeLoadFailed     = "E004" // CUE load failed
	ErrCodeNotFound       = "E005" // Path not found
	ErrCodeBuildFailed    = "E006" // CUE build failed
	ErrCodeWriteFailed    = "E007" // File write error
	ErrCodeNoStores       = "E008" // No store declarations
	ErrCodeStorage        = "E009" // Storage backend could not be opened or read
	ErrCodeScenarioFailed = "E010" // Scenario assertions or golden comparison failed

	// Store compile errors
	ErrCodeStoreState   = "E121" // Missing or malformed state
	ErrCodeStoreGetter  = "E122" // Malformed getter
	ErrCodeStoreAction  = "E123" // Malformed action
	ErrCodeStorePersist = "E124" // Malformed persist block
	ErrCodeInvalidValue = "E125" // Float or non-concrete initial value
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "state":
		return ErrCodeStoreState
	case strings.HasPrefix(field, "state."):
		return ErrCodeInvalidValue
	case strings.HasPrefix(field, "getters"):
		return ErrCodeStoreGetter
	case strings.HasPrefix(field, "actions"):
		return ErrCodeStoreAction
	case strings.HasPrefix(field, "persist"):
		return ErrCodeStorePersist
	default:
		return ErrCodeGeneric
	}
}
