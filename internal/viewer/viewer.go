// Package viewer holds the scene state the browser viewer is built from:
// camera, lights, renderer flags, viewport and frame statistics.
package viewer

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	xrmodel "github.com/flywave/go-xrmodel"
	"github.com/flywave/go-xrmodel/internal/config"
)

var ErrInvalidViewport = errors.New("viewer: viewport size must be positive")

// Camera is a perspective camera with orbit controls aimed at Target.
type Camera struct {
	FOV      float64    `json:"fov"`
	Near     float64    `json:"near"`
	Far      float64    `json:"far"`
	Aspect   float64    `json:"aspect"`
	Position [3]float64 `json:"position"`
	Target   [3]float64 `json:"target"`
}

type LightKind string

const (
	HemisphereLight  LightKind = "hemisphere"
	DirectionalLight LightKind = "directional"
)

type Light struct {
	Kind        LightKind  `json:"kind"`
	Color       uint32     `json:"color"`
	GroundColor uint32     `json:"groundColor,omitempty"`
	Intensity   float64    `json:"intensity"`
	Position    [3]float64 `json:"position"`
	CastShadow  bool       `json:"castShadow"`
}

type Renderer struct {
	Antialias      bool   `json:"antialias"`
	ShadowMap      bool   `json:"shadowMap"`
	XR             bool   `json:"xr"`
	ReferenceSpace string `json:"referenceSpace"`
}

// Frame is handed to the render hook once per scheduled frame.
type Frame struct {
	Index  uint64
	Delta  time.Duration
	Camera Camera
}

// Context replaces the process-wide camera, scene and renderer of a
// browser viewer. All methods are safe for concurrent use.
type Context struct {
	mu sync.Mutex

	cfg        config.ViewerConfig
	camera     Camera
	lights     []Light
	background uint32
	renderer   Renderer
	width      int
	height     int

	model      *ModelInfo
	stats      *Stats
	frames     uint64
	sinceStats time.Duration
	render     func(Frame)
	log        *zap.Logger
}

func NewContext(cfg config.ViewerConfig, log *zap.Logger) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Context{
		cfg:        cfg,
		background: cfg.Background,
		camera: Camera{
			FOV:      cfg.Camera.FOV,
			Near:     cfg.Camera.Near,
			Far:      cfg.Camera.Far,
			Aspect:   1,
			Position: cfg.Camera.Position,
			Target:   cfg.Camera.Target,
		},
		lights: []Light{
			{
				Kind:        HemisphereLight,
				Color:       cfg.Hemisphere.Color,
				GroundColor: cfg.Hemisphere.GroundColor,
				Intensity:   cfg.Hemisphere.Intensity,
				Position:    cfg.Hemisphere.Position,
			},
			{
				Kind:       DirectionalLight,
				Color:      cfg.Sun.Color,
				Intensity:  cfg.Sun.Intensity,
				Position:   cfg.Sun.Position,
				CastShadow: cfg.Sun.CastShadow,
			},
		},
		renderer: Renderer{
			Antialias:      cfg.Renderer.Antialias,
			ShadowMap:      cfg.Renderer.Shadows,
			XR:             cfg.Renderer.XR,
			ReferenceSpace: cfg.Renderer.ReferenceSpace,
		},
		stats: NewStats(),
		log:   log,
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		c.width, c.height = cfg.Width, cfg.Height
		c.camera.Aspect = float64(cfg.Width) / float64(cfg.Height)
	}
	return c
}

// Resize updates the viewport and the camera aspect ratio.
func (c *Context) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidViewport
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width, c.height = width, height
	c.camera.Aspect = float64(width) / float64(height)
	c.log.Debug("viewport resized", zap.Int("width", width), zap.Int("height", height))
	return nil
}

// OnModelLoaded records the normalized model served at uri and moves the
// camera and controls to their post-load placement.
func (c *Context) OnModelLoaded(res *xrmodel.Normalized, uri string) {
	info := newModelInfo(res, uri)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = info
	c.camera.Position = c.cfg.Camera.LoadedPosition
	c.camera.Target = c.cfg.Camera.LoadedTarget
}

// SetLOD records the URI of a decimated variant of the loaded model.
func (c *Context) SetLOD(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.model != nil {
		c.model.LOD = uri
	}
}

// SetRenderHook installs fn to be called from OnFrame. nil removes it.
func (c *Context) SetRenderHook(fn func(Frame)) {
	c.mu.Lock()
	c.render = fn
	c.mu.Unlock()
}

// OnFrame advances frame statistics and renders one frame.
func (c *Context) OnFrame(delta time.Duration) {
	c.mu.Lock()
	c.frames++
	c.stats.Record(delta)
	frame := Frame{Index: c.frames, Delta: delta, Camera: c.camera}
	render := c.render

	var snap StatsSnapshot
	report := false
	if c.cfg.ShowStats && c.cfg.StatsEvery > 0 {
		c.sinceStats += delta
		if c.sinceStats >= c.cfg.StatsEvery {
			c.sinceStats = 0
			snap = c.stats.Snapshot()
			report = true
		}
	}
	c.mu.Unlock()

	if render != nil {
		render(frame)
	}
	if report {
		c.log.Info("frame stats",
			zap.Float64("fps", snap.FPS),
			zap.Duration("frame", snap.FrameTime),
			zap.Duration("worst", snap.MaxFrameTime),
			zap.Uint64("frames", snap.Frames))
	}
}

func (c *Context) Camera() Camera {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.camera
}

func (c *Context) Viewport() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

func (c *Context) Stats() StatsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.Snapshot()
}

// Model returns the loaded model info, nil before OnModelLoaded.
func (c *Context) Model() *ModelInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}
