package internal

import (
	"io"
	"time"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	// interval overrides agent.interval when non-zero.
	interval time.Duration
	once     bool
	// outputDir overrides build.output_dir when set.
	outputDir string
	// demo builds the bundled demo site instead of pulling.
	demo bool
	out  io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithInterval overrides the polling interval.
func WithInterval(d time.Duration) Option {
	return func(a *application) {
		a.interval = d
	}
}

// WithOnce makes the agent run a single detection cycle and exit.
func WithOnce(once bool) Option {
	return func(a *application) {
		a.once = once
	}
}

// WithOutputDir overrides the build output directory.
func WithOutputDir(dir string) Option {
	return func(a *application) {
		a.outputDir = dir
	}
}

// WithDemo builds the bundled demo site instead of pulling from the source.
func WithDemo(demo bool) Option {
	return func(a *application) {
		a.demo = demo
	}
}

// WithOutput sets where command summaries are printed.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}
