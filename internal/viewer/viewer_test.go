package viewer

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dvec3 "github.com/flywave/go3d/float64/vec3"

	xrmodel "github.com/flywave/go-xrmodel"
	"github.com/flywave/go-xrmodel/internal/config"
)

func newTestContext() *Context {
	return NewContext(config.Default().Viewer, nil)
}

func boxModel(sx, sy, sz float64) *xrmodel.Model {
	leaf := xrmodel.NewNode("box")
	leaf.Geometry = &xrmodel.Geometry{
		Positions: []dvec3.T{{0, 0, 0}, {sx, 0, 0}, {sx, sy, 0}, {0, sy, sz}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	}
	leaf.Material = xrmodel.NewMaterial("paint")
	return xrmodel.NewModel("box", xrmodel.NewNode("root").Add(leaf))
}

func TestNewContextDefaults(t *testing.T) {
	c := newTestContext()

	cam := c.Camera()
	if cam.FOV != 70 || cam.Near != 0.1 || cam.Far != 100 {
		t.Errorf("unexpected frustum %+v", cam)
	}
	if cam.Position != [3]float64{0, 1.6, 2} || cam.Target != [3]float64{0, 1.6, 0} {
		t.Errorf("unexpected initial placement %v -> %v", cam.Position, cam.Target)
	}
	w, h := c.Viewport()
	if w != 1280 || h != 720 {
		t.Errorf("expected 1280x720, got %dx%d", w, h)
	}
	if math.Abs(cam.Aspect-1280.0/720.0) > 1e-12 {
		t.Errorf("unexpected aspect %g", cam.Aspect)
	}
	if c.Model() != nil {
		t.Error("model set before load")
	}
}

func TestResize(t *testing.T) {
	c := newTestContext()

	if err := c.Resize(800, 400); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if got := c.Camera().Aspect; got != 2 {
		t.Errorf("expected aspect 2, got %g", got)
	}
	if w, h := c.Viewport(); w != 800 || h != 400 {
		t.Errorf("expected 800x400, got %dx%d", w, h)
	}
}

func TestResizeInvalid(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"zero width", 0, 600},
		{"zero height", 800, 0},
		{"negative", -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestContext()
			if err := c.Resize(tt.w, tt.h); !errors.Is(err, ErrInvalidViewport) {
				t.Fatalf("expected ErrInvalidViewport, got %v", err)
			}
			if w, h := c.Viewport(); w != 1280 || h != 720 {
				t.Errorf("viewport changed to %dx%d", w, h)
			}
		})
	}
}

func TestOnModelLoaded(t *testing.T) {
	c := newTestContext()
	opts := xrmodel.DefaultNormalizeOptions()
	opts.Orientation = xrmodel.Euler{}
	res, err := xrmodel.Normalize(boxModel(2, 1.5, 1), opts)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	c.OnModelLoaded(res, "model.glb")

	cam := c.Camera()
	if cam.Position != [3]float64{0, 1.6, 0.5} {
		t.Errorf("expected camera at (0,1.6,0.5), got %v", cam.Position)
	}
	if cam.Target != [3]float64{0, 1.6, -2} {
		t.Errorf("expected target (0,1.6,-2), got %v", cam.Target)
	}

	info := c.Model()
	if info == nil {
		t.Fatal("model info missing")
	}
	if info.URI != "model.glb" || math.Abs(info.Scale-2) > 1e-9 {
		t.Errorf("unexpected info %+v", info)
	}
	if math.Abs(info.Max[1]-info.Min[1]-3) > 1e-9 {
		t.Errorf("expected height 3, got %g", info.Max[1]-info.Min[1])
	}
	if info.Meshes != 1 || info.Triangles != 2 || info.Materials != 1 {
		t.Errorf("unexpected counts %+v", info)
	}
}

func TestOnFrame(t *testing.T) {
	c := newTestContext()
	var frames []Frame
	c.SetRenderHook(func(f Frame) { frames = append(frames, f) })

	for i := 0; i < 4; i++ {
		c.OnFrame(20 * time.Millisecond)
	}

	if len(frames) != 4 || frames[3].Index != 4 {
		t.Fatalf("expected 4 rendered frames, got %d", len(frames))
	}
	if frames[0].Camera.FOV != 70 {
		t.Errorf("frame carries wrong camera %+v", frames[0].Camera)
	}
	st := c.Stats()
	if st.Frames != 4 {
		t.Errorf("expected 4 frames, got %d", st.Frames)
	}
	if math.Abs(st.FPS-50) > 1e-9 {
		t.Errorf("expected 50 fps, got %g", st.FPS)
	}
}

func TestStatsWindow(t *testing.T) {
	s := NewStats()
	if snap := s.Snapshot(); snap.FPS != 0 || snap.Frames != 0 {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}

	for i := 0; i < statsWindow; i++ {
		s.Record(100 * time.Millisecond)
	}
	for i := 0; i < statsWindow; i++ {
		s.Record(10 * time.Millisecond)
	}
	s.Record(0)

	snap := s.Snapshot()
	if snap.Frames != 2*statsWindow+1 {
		t.Errorf("expected %d frames, got %d", 2*statsWindow+1, snap.Frames)
	}
	if math.Abs(snap.FPS-100) > 1e-6 {
		t.Errorf("old samples not evicted, fps %g", snap.FPS)
	}
	if snap.MaxFrameTime != 10*time.Millisecond {
		t.Errorf("expected max 10ms, got %v", snap.MaxFrameTime)
	}
}

func TestTickerScheduler(t *testing.T) {
	var n atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	h := FrameHandlerFunc(func(delta time.Duration) {
		if delta <= 0 {
			t.Errorf("non-positive delta %v", delta)
		}
		if n.Add(1) == 3 {
			cancel()
		}
	})

	done := make(chan error, 1)
	go func() { done <- (&TickerScheduler{Interval: time.Millisecond}).Run(ctx, h) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if n.Load() < 3 {
		t.Errorf("expected at least 3 frames, got %d", n.Load())
	}
}

func TestNewTickerScheduler(t *testing.T) {
	if s := NewTickerScheduler(0); s.Interval != time.Second/60 {
		t.Errorf("expected 60 fps fallback, got %v", s.Interval)
	}
	if s := NewTickerScheduler(90); s.Interval != time.Second/90 {
		t.Errorf("expected 90 fps interval, got %v", s.Interval)
	}
}

func TestConcurrentResizeAndFrames(t *testing.T) {
	c := newTestContext()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= 200; i++ {
			_ = c.Resize(i, 100)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c.OnFrame(time.Millisecond)
		}
	}()
	wg.Wait()

	if st := c.Stats(); st.Frames != 200 {
		t.Errorf("expected 200 frames, got %d", st.Frames)
	}
	if got := c.Camera().Aspect; got != 2 {
		t.Errorf("expected final aspect 2, got %g", got)
	}
}

func TestWriteManifest(t *testing.T) {
	c := newTestContext()
	if err := c.Resize(1000, 500); err != nil {
		t.Fatal(err)
	}
	opts := xrmodel.DefaultNormalizeOptions()
	res, err := xrmodel.Normalize(boxModel(1, 1, 1), opts)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	c.OnModelLoaded(res, "model.glb")

	path := filepath.Join(t.TempDir(), "out", "scene.json")
	if err := c.WriteManifest(path); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	m, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}

	if m.Background != 0x000000 {
		t.Errorf("unexpected background %#x", m.Background)
	}
	if len(m.Lights) != 2 {
		t.Fatalf("expected 2 lights, got %d", len(m.Lights))
	}
	hemi, sun := m.Lights[0], m.Lights[1]
	if hemi.Kind != HemisphereLight || hemi.Color != 0xffffff || hemi.GroundColor != 0x444444 || hemi.Intensity != 1.5 {
		t.Errorf("unexpected hemisphere light %+v", hemi)
	}
	if sun.Kind != DirectionalLight || sun.Position != [3]float64{5, 10, 5} || !sun.CastShadow {
		t.Errorf("unexpected directional light %+v", sun)
	}
	if !m.Renderer.XR || m.Renderer.ReferenceSpace != "local-floor" || !m.Renderer.ShadowMap {
		t.Errorf("unexpected renderer %+v", m.Renderer)
	}
	if m.Viewport.Aspect != 2 {
		t.Errorf("expected aspect 2, got %g", m.Viewport.Aspect)
	}
	if m.Model == nil || m.Model.URI != "model.glb" {
		t.Fatalf("unexpected model %+v", m.Model)
	}
	if math.Abs(m.Model.Min[1]) > 1e-9 || math.Abs(m.Model.Max[1]-3) > 1e-9 {
		t.Errorf("model not floor aligned: min %v max %v", m.Model.Min, m.Model.Max)
	}
}
