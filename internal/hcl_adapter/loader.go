package hcl_adapter

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/ctyconv"
	"github.com/vk/seqcore/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	environ map[string]string
}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates a new HCL configuration loader.
// Expressions see the process environment as the `env` object.
func NewLoader() *Loader {
	return NewLoaderWithEnvironment(environment(os.Environ()))
}

// NewLoaderWithEnvironment creates a loader whose `env` object is environ.
func NewLoaderWithEnvironment(environ map[string]string) *Loader {
	return &Loader{environ: environ}
}

// Load parses every .hcl file under paths, translates all sequence and
// bucket blocks into a single model and validates it.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := config.NewModel()

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	evalCtx := newEvalContext(l.environ)

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &root)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, b := range root.Buckets {
			if _, dup := model.Buckets[b.Name]; dup {
				return nil, nil, fmt.Errorf("%s: bucket %q declared more than once", file, b.Name)
			}
			model.Buckets[b.Name] = &config.Bucket{Name: b.Name, Priority: b.Priority}
		}
		for _, s := range root.Sequences {
			if prev, dup := model.Sequences[s.Name]; dup {
				return nil, nil, fmt.Errorf("%s: sequence %q already declared in %s", file, s.Name, prev.Source)
			}
			seq, err := l.translateSequence(ctx, s, file, evalCtx)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Sequences[seq.Name] = seq
		}
	}

	if err := model.Validate(); err != nil {
		return nil, nil, err
	}

	logger.Debug("HCL loading complete.", "sequences", len(model.Sequences), "buckets", len(model.Buckets))
	return model, ctyconv.New(), nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl files found.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue // It's not an error if a configured path doesn't exist.
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		files, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if _, wasSeen := seen[f]; !wasSeen {
				allFiles = append(allFiles, f)
				seen[f] = struct{}{}
			}
		}
	}
	return allFiles, nil
}

func environment(pairs []string) map[string]string {
	env := make(map[string]string, len(pairs))
	for _, e := range pairs {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}
	return env
}
