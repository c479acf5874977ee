package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/normware/internal/schema"
)

// LoadDir loads every CUE file in dir as one instance and returns the
// unified value. All files must share a package clause (or have none).
func LoadDir(dir string) (cue.Value, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return cue.Value{}, fmt.Errorf("schemas directory: %w", err)
	}
	if !info.IsDir() {
		return cue.Value{}, fmt.Errorf("not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return value, nil
}

// CompileDir loads dir and compiles its schemas.
func CompileDir(dir string) (*schema.Registry, error) {
	v, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return CompileSchemas(v)
}

// FindCUEFiles walks dir and returns all .cue file paths.
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
