package config

import "flag"

var (
	flagConfig       = flag.String("config", "", "Path to config file")
	flagDebug        = flag.Bool("debug", false, "Enable debug logging")
	flagModel        = flag.String("model", "", "Path to the source model")
	flagOut          = flag.String("out", "", "Output directory")
	flagTargetHeight = flag.Float64("target-height", 0, "Normalized model height")
	flagServe        = flag.String("serve", "", "Serve the output directory on this address")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via -config.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
		cfg.Viewer.ShowStats = true
	}
	if *flagModel != "" {
		cfg.Model.Path = *flagModel
	}
	if *flagOut != "" {
		cfg.Output.Dir = *flagOut
	}
	if *flagTargetHeight > 0 {
		cfg.Normalize.TargetHeight = *flagTargetHeight
	}
	if *flagServe != "" {
		cfg.Server.Addr = *flagServe
	}
}
