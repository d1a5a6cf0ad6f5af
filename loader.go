package xrmodel

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	FBX     = "fbx"
	GLTF    = "gltf"
	GLB     = "glb"
	OBJ     = "obj"
	THREEDS = "3ds"
	TBIN    = "js"
	DAE     = "dae"
)

// Loader imports a model file into a mesh hierarchy.
type Loader interface {
	Load(ctx context.Context, path string) (*Model, error)
}

// FormatFromPath derives the format name from the file extension.
func FormatFromPath(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// LoaderFactory returns the loader for format, or nil when the format is
// not supported. resourceDir is where texture references are resolved;
// empty means next to the model file.
func LoaderFactory(format string, resourceDir string) Loader {
	switch strings.ToLower(format) {
	case FBX:
		return &FbxLoader{ResourceDir: resourceDir}
	case GLTF, GLB:
		return &GltfLoader{}
	case OBJ:
		return &ObjLoader{ResourceDir: resourceDir}
	case THREEDS:
		return &ThreeDsLoader{ResourceDir: resourceDir}
	case TBIN:
		return &ThreejsBinLoader{}
	case DAE:
		return &DaeLoader{ResourceDir: resourceDir}
	}
	return nil
}

// LoadFile picks a loader from format (or the extension when format is
// empty) and loads path synchronously.
func LoadFile(ctx context.Context, path, format, resourceDir string) (*Model, error) {
	if format == "" {
		format = FormatFromPath(path)
	}
	ld := LoaderFactory(format, resourceDir)
	if ld == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return ld.Load(ctx, path)
}

// LoadResult is the outcome of an asynchronous load.
type LoadResult struct {
	Model *Model
	Err   error
}

// LoadAsync runs ld on its own goroutine. The returned channel receives
// exactly one result and is then closed. If ctx ends first the result
// carries ctx.Err().
func LoadAsync(ctx context.Context, ld Loader, path string) <-chan LoadResult {
	out := make(chan LoadResult, 1)
	go func() {
		defer close(out)

		done := make(chan LoadResult, 1)
		go func() {
			m, err := ld.Load(ctx, path)
			done <- LoadResult{Model: m, Err: err}
		}()

		select {
		case res := <-done:
			if res.Err == nil && res.Model == nil {
				res.Err = fmt.Errorf("load %s: %w", path, ErrEmptyHierarchy)
			}
			out <- res
		case <-ctx.Done():
			out <- LoadResult{Err: ctx.Err()}
		}
	}()
	return out
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
