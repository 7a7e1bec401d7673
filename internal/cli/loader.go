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

	"github.com/roach88/fxparams/internal/compiler"
	"github.com/roach88/fxparams/internal/engine"
	"github.com/roach88/fxparams/internal/params"
)

// LoadResult is a compiled parameter project.
type LoadResult struct {
	Project   *compiler.Project
	CUEValue  cue.Value
	FileCount int
}

// LoadError is a project loading error with a CLI error code.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadProject loads every CUE file of dir as one instance and compiles its
// layers and effects. Loading stops at the first error.
func LoadProject(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("project directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing project directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	project, err := compiler.CompileProject(value)
	if err != nil {
		return nil, convertCompileError(err)
	}
	if len(project.Layers) == 0 {
		return nil, &LoadError{Code: ErrCodeNoLayers, Message: "project declares no layers"}
	}

	return &LoadResult{Project: project, CUEValue: value, FileCount: len(cueFiles)}, nil
}

// BuildStore creates the live store of a loaded project.
func (r *LoadResult) BuildStore(name string) (*params.Store, error) {
	s, err := compiler.BuildStore(name, r.Project.Layers)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return s, nil
}

// Effects converts the declared effects to engine effects.
func (r *LoadResult) Effects() []*engine.Effect {
	out := make([]*engine.Effect, len(r.Project.Effects))
	for i := range r.Project.Effects {
		out[i] = r.Project.Effects[i].Effect()
	}
	return out
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

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Error(),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeJournal     = "E007" // Journal open/read/write error
	ErrCodeBadFlag     = "E008" // Malformed flag value

	// Layer errors
	ErrCodeNoLayers     = "E101" // Project declares no layers
	ErrCodeLayerName    = "E102" // Missing, empty or duplicate layer name
	ErrCodeLayerValues  = "E103" // Malformed values struct
	ErrCodeInvalidValue = "E104" // Non-concrete or unsupported value

	// Effect errors
	ErrCodeEffectReads    = "E110" // Missing or malformed reads
	ErrCodeEffectPermutes = "E111" // Permutation key not in reads

	// Run errors
	ErrCodeEffectFailed  = "E201" // An effect failed to compile or bind
	ErrCodeScenarioFails = "E202" // One or more scenarios failed
)

// MapFieldToErrorCode maps a compiler error field to an error code. Layer
// fields are indexed ("layers[1].name"); value errors carry the parameter
// name as their field.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "" || field == "cue":
		return ErrCodeGeneric
	case field == "layers":
		return ErrCodeNoLayers
	case strings.HasSuffix(field, ".name"):
		return ErrCodeLayerName
	case strings.HasSuffix(field, ".values"):
		return ErrCodeLayerValues
	case field == "reads":
		return ErrCodeEffectReads
	case field == "permutes":
		return ErrCodeEffectPermutes
	default:
		return ErrCodeInvalidValue
	}
}
