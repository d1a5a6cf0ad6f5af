package viewer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	xrmodel "github.com/flywave/go-xrmodel"
)

// ModelInfo describes the normalized model the viewer loads.
type ModelInfo struct {
	URI       string     `json:"uri"`
	LOD       string     `json:"lod,omitempty"`
	Scale     float64    `json:"scale"`
	Min       [3]float64 `json:"min"`
	Max       [3]float64 `json:"max"`
	Nodes     int        `json:"nodes"`
	Meshes    int        `json:"meshes"`
	Triangles int        `json:"triangles"`
	Materials int        `json:"materials"`
}

func newModelInfo(res *xrmodel.Normalized, uri string) *ModelInfo {
	info := &ModelInfo{URI: uri}
	if res == nil {
		return info
	}
	info.Scale = res.Scale
	info.Min = [3]float64(res.Bounds.Min)
	info.Max = [3]float64(res.Bounds.Max)
	st := res.Model.Stats()
	info.Nodes, info.Meshes = st.Nodes, st.Meshes
	info.Triangles, info.Materials = st.Triangles, st.Materials
	return info
}

// Viewport is the drawing surface size.
type Viewport struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Aspect float64 `json:"aspect"`
}

// Manifest is the scene description a browser viewer builds its scene
// from. Colors are 0xRRGGBB integers.
type Manifest struct {
	Background   uint32     `json:"background"`
	Camera       Camera     `json:"camera"`
	LoadedCamera [3]float64 `json:"loadedCameraPosition"`
	LoadedTarget [3]float64 `json:"loadedControlsTarget"`
	Lights       []Light    `json:"lights"`
	Renderer     Renderer   `json:"renderer"`
	ShowStats    bool       `json:"showStats"`
	Viewport     Viewport   `json:"viewport"`
	Model        *ModelInfo `json:"model,omitempty"`
}

// Manifest captures the current scene state.
func (c *Context) Manifest() Manifest {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := Manifest{
		Background:   c.background,
		Camera:       c.camera,
		LoadedCamera: c.cfg.Camera.LoadedPosition,
		LoadedTarget: c.cfg.Camera.LoadedTarget,
		Lights:       append([]Light(nil), c.lights...),
		Renderer:     c.renderer,
		ShowStats:    c.cfg.ShowStats,
		Viewport:     Viewport{Width: c.width, Height: c.height, Aspect: c.camera.Aspect},
	}
	if c.model != nil {
		info := *c.model
		m.Model = &info
	}
	return m
}

// WriteManifest writes the manifest as indented JSON.
func (c *Context) WriteManifest(path string) error {
	data, err := json.MarshalIndent(c.Manifest(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}
