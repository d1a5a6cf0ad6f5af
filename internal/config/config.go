// Package config handles converter and viewer configuration.
package config

import "time"

// Config holds all settings.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Normalize NormalizeConfig `yaml:"normalize"`
	Output    OutputConfig    `yaml:"output"`
	Load      LoadConfig      `yaml:"load"`
	Viewer    ViewerConfig    `yaml:"viewer"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ModelConfig locates the source asset.
type ModelConfig struct {
	Path         string `yaml:"path"`
	ResourcePath string `yaml:"resource_path"` // Directory textures are resolved against
	Format       string `yaml:"format"`        // Empty means detect from extension
}

// NormalizeConfig controls the normalization pass.
type NormalizeConfig struct {
	TargetHeight float64    `yaml:"target_height"`
	Orientation  [3]float64 `yaml:"orientation"` // Euler XYZ in degrees
}

// OutputConfig names the generated files inside Dir.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	GLB      string `yaml:"glb"`
	Manifest string `yaml:"manifest"`
	MST      string `yaml:"mst"` // Empty disables the MST export

	// MaxTextureSize caps textures embedded in the MST file, 0 for no cap.
	MaxTextureSize int `yaml:"max_texture_size"`

	// LOD names a decimated GLB for low-power headsets; empty disables it.
	LOD       string  `yaml:"lod"`
	LODFactor float64 `yaml:"lod_factor"`
}

// LoadConfig bounds the asynchronous load.
type LoadConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// ViewerConfig describes the scene the viewer builds around the model.
type ViewerConfig struct {
	Width      int           `yaml:"width"`
	Height     int           `yaml:"height"`
	Background uint32        `yaml:"background"`
	Camera     CameraConfig  `yaml:"camera"`
	Hemisphere LightConfig   `yaml:"hemisphere"`
	Sun        LightConfig   `yaml:"sun"`
	Renderer   RenderConfig  `yaml:"renderer"`
	ShowStats  bool          `yaml:"show_stats"`
	FrameRate  int           `yaml:"frame_rate"`
	StatsEvery time.Duration `yaml:"stats_every"`
}

// CameraConfig holds the perspective camera and controls placement.
type CameraConfig struct {
	FOV            float64    `yaml:"fov"`
	Near           float64    `yaml:"near"`
	Far            float64    `yaml:"far"`
	Position       [3]float64 `yaml:"position"`
	Target         [3]float64 `yaml:"target"`
	LoadedPosition [3]float64 `yaml:"loaded_position"`
	LoadedTarget   [3]float64 `yaml:"loaded_target"`
}

// LightConfig holds one light. GroundColor is used by hemisphere lights only.
type LightConfig struct {
	Color       uint32     `yaml:"color"`
	GroundColor uint32     `yaml:"ground_color,omitempty"`
	Intensity   float64    `yaml:"intensity"`
	Position    [3]float64 `yaml:"position"`
	CastShadow  bool       `yaml:"cast_shadow"`
}

// RenderConfig holds renderer flags.
type RenderConfig struct {
	Antialias      bool   `yaml:"antialias"`
	Shadows        bool   `yaml:"shadows"`
	XR             bool   `yaml:"xr"`
	ReferenceSpace string `yaml:"reference_space"`
}

// ServerConfig enables static hosting of the output directory.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Empty disables hosting
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with the stock scene values.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Path:         "models/fbx/exa.fbx",
			ResourcePath: "models/fbx/",
		},
		Normalize: NormalizeConfig{
			TargetHeight: 3,
			Orientation:  [3]float64{90, 180, 0},
		},
		Output: OutputConfig{
			Dir:      "public",
			GLB:      "model.glb",
			Manifest: "scene.json",

			MaxTextureSize: 2048,
			LODFactor:      0.25,
		},
		Load: LoadConfig{
			Timeout: 30 * time.Second,
		},
		Viewer: ViewerConfig{
			Width:      1280,
			Height:     720,
			Background: 0x000000,
			Camera: CameraConfig{
				FOV:            70,
				Near:           0.1,
				Far:            100,
				Position:       [3]float64{0, 1.6, 2},
				Target:         [3]float64{0, 1.6, 0},
				LoadedPosition: [3]float64{0, 1.6, 0.5},
				LoadedTarget:   [3]float64{0, 1.6, -2},
			},
			Hemisphere: LightConfig{
				Color:       0xffffff,
				GroundColor: 0x444444,
				Intensity:   1.5,
				Position:    [3]float64{0, 10, 0},
			},
			Sun: LightConfig{
				Color:      0xffffff,
				Intensity:  2,
				Position:   [3]float64{5, 10, 5},
				CastShadow: true,
			},
			Renderer: RenderConfig{
				Antialias:      true,
				Shadows:        true,
				XR:             true,
				ReferenceSpace: "local-floor",
			},
			ShowStats:  true,
			FrameRate:  60,
			StatsEvery: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
