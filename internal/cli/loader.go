package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/normware/internal/compiler"
	"github.com/roach88/normware/internal/schema"
)

// LoadMode controls how errors are handled during schema loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading schemas from a directory.
type LoadResult struct {
	Registry  *schema.Registry // nil when compilation failed
	CUEValue  cue.Value        // The raw CUE value for additional processing
	FileCount int              // Number of CUE files found
}

// LoadError represents an error that occurred during schema loading.
type LoadError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the 1-based source line, or 0 when unknown.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// LoadSchemas loads and compiles the CUE schemas of a directory.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects every compile error.
//
// A nil result means the directory could not be loaded at all.
func LoadSchemas(dir string, mode LoadMode) (*LoadResult, []error) {
	if dir == "" {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: "no schemas directory: pass --schemas or set schemas in normware.yaml"}}
	}

	// Verify directory exists
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schemas directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schemas directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	// Find CUE files
	cueFiles, err := compiler.FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	value, err := compiler.LoadDir(dir)
	if err != nil {
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) {
			return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Field: compileErr.Field, Message: compileErr.Message, Pos: compileErr.Pos}}
		}
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	if mode == LoadModeCollectAll {
		if compileErrs := compiler.CheckSchemas(value); len(compileErrs) > 0 {
			errs := make([]error, len(compileErrs))
			for i, ce := range compileErrs {
				errs[i] = convertCompileError(ce)
			}
			return result, errs
		}
	}

	reg, err := compiler.CompileSchemas(value)
	if err != nil {
		return result, []error{convertCompileError(err)}
	}
	result.Registry = reg
	return result, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    compileErr.Code,
			Field:   compileErr.Field,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// firstLoadError returns errs[0] as a LoadError.
func firstLoadError(errs []error) *LoadError {
	var loadErr *LoadError
	if errors.As(errs[0], &loadErr) {
		return loadErr
	}
	return &LoadError{Code: ErrCodeGeneric, Message: errs[0].Error()}
}

// Error code constants shared by all CLI commands. Schema compile errors
// keep their compiler codes (E200-E299); normalization errors keep theirs
// (MISSING_ID, TYPE_MISMATCH, ...).
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // CUE load failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeBuildFailed   = "E006" // CUE build failed
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeInvalidAction = "E008" // Action document could not be decoded
	ErrCodeJournal       = "E009" // Journal open, read or write failed
)
