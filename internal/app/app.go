// Package app wires loading, normalization, export and hosting together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	xrmodel "github.com/flywave/go-xrmodel"
	"github.com/flywave/go-xrmodel/internal/config"
	"github.com/flywave/go-xrmodel/internal/viewer"
)

// App owns the viewer context and runs the pipeline once.
type App struct {
	cfg   *config.Config
	log   *zap.Logger
	view  *viewer.Context
	sched viewer.Scheduler
}

// Result lists what Build produced. Optional outputs are empty when
// disabled.
type Result struct {
	Normalized *xrmodel.Normalized
	GLB        string
	LOD        string
	MST        string
	Manifest   string
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		cfg:   cfg,
		log:   log,
		view:  viewer.NewContext(cfg.Viewer, log.Named("viewer")),
		sched: viewer.NewTickerScheduler(cfg.Viewer.FrameRate),
	}, nil
}

func (a *App) Viewer() *viewer.Context { return a.view }

// Run builds the outputs and, when server.addr is set, serves them and
// drives the frame loop until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if _, err := a.Build(ctx); err != nil {
		return err
	}
	if a.cfg.Server.Addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Build loads the configured model, normalizes it and writes the GLB, the
// optional LOD and MST files and the scene manifest.
func (a *App) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	model, err := a.load(ctx)
	if err != nil {
		return nil, err
	}

	o := a.cfg.Normalize.Orientation
	res, err := xrmodel.Normalize(model, xrmodel.NormalizeOptions{
		TargetHeight: a.cfg.Normalize.TargetHeight,
		Orientation:  xrmodel.EulerDegrees(o[0], o[1], o[2]),
		Logger:       a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", a.cfg.Model.Path, err)
	}

	out := a.cfg.Output
	result := &Result{
		Normalized: res,
		GLB:        filepath.Join(out.Dir, out.GLB),
		Manifest:   filepath.Join(out.Dir, out.Manifest),
	}
	if err := xrmodel.WriteGLB(res.Model, result.GLB, a.log); err != nil {
		return nil, err
	}
	a.view.OnModelLoaded(res, out.GLB)

	if out.LOD != "" {
		lod, err := xrmodel.Simplify(res.Model, out.LODFactor)
		if err != nil {
			return nil, fmt.Errorf("simplify: %w", err)
		}
		result.LOD = filepath.Join(out.Dir, out.LOD)
		if err := xrmodel.WriteGLB(lod, result.LOD, a.log); err != nil {
			return nil, err
		}
		a.view.SetLOD(out.LOD)
		a.log.Debug("lod written",
			zap.Int("triangles", lod.Stats().Triangles),
			zap.Int("source_triangles", res.Model.Stats().Triangles))
	}

	if out.MST != "" {
		result.MST = filepath.Join(out.Dir, out.MST)
		ex := xrmodel.NewMstExporter(a.log)
		ex.MaxTextureSize = out.MaxTextureSize
		if err := ex.Export(res.Model, result.MST); err != nil {
			return nil, err
		}
	}

	if err := a.view.WriteManifest(result.Manifest); err != nil {
		return nil, err
	}

	st := res.Model.Stats()
	a.log.Info("model ready",
		zap.String("source", a.cfg.Model.Path),
		zap.String("glb", result.GLB),
		zap.Float64("scale", res.Scale),
		zap.Int("meshes", st.Meshes),
		zap.Int("triangles", st.Triangles),
		zap.Duration("took", time.Since(start)))
	return result, nil
}

func (a *App) load(ctx context.Context) (*xrmodel.Model, error) {
	path := a.cfg.Model.Path
	format := a.cfg.Model.Format
	if format == "" {
		format = xrmodel.FormatFromPath(path)
	}
	ld := xrmodel.LoaderFactory(format, a.cfg.Model.ResourcePath)
	if ld == nil {
		return nil, fmt.Errorf("load %s: %w: %q", path, xrmodel.ErrUnsupportedFormat, format)
	}

	lctx, cancel := context.WithTimeout(ctx, a.cfg.Load.Timeout)
	defer cancel()

	a.log.Info("loading model", zap.String("path", path), zap.String("format", format))
	res := <-xrmodel.LoadAsync(lctx, ld, path)
	if res.Err != nil {
		return nil, fmt.Errorf("load %s: %w", path, res.Err)
	}
	return res.Model, nil
}
