package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/starford/sitesmith/internal/agent"
	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/builder"
	"github.com/starford/sitesmith/internal/mcpserver"
	"github.com/starford/sitesmith/internal/models"
)

// RunDetect runs one detection cycle without building and prints the
// changes found.
func RunDetect(ctx context.Context, opts ...Option) error {
	return withComponents(ctx, opts, nil, func(ctx context.Context, app *application, c *components) error {
		ag, err := c.newAgent(nil, nil)
		if err != nil {
			return err
		}
		cycle, err := ag.CheckOnce(ctx)
		if err != nil {
			return err
		}
		printCycle(app.stdout(), cycle)
		if len(cycle.Failed) > 0 {
			c.logger.Warn("detection incomplete", "failed_collections", cycle.Failed)
		}
		return nil
	})
}

// RunAgent polls for changes and rebuilds the site when any are found.
// With WithOnce it runs a single cycle.
func RunAgent(ctx context.Context, opts ...Option) error {
	return withComponents(ctx, opts, nil, func(ctx context.Context, app *application, c *components) error {
		ag, err := c.newAgent(c.sync.Run, nil)
		if err != nil {
			return err
		}
		if app.once {
			cycle, err := ag.CheckOnce(ctx)
			if err != nil {
				return err
			}
			printCycle(app.stdout(), cycle)
			return nil
		}
		ctx, stop := signalContext(ctx)
		defer stop()
		return ag.Run(ctx)
	})
}

// RunPull extracts the site and caches it to the data file.
func RunPull(ctx context.Context, opts ...Option) error {
	return withComponents(ctx, opts, nil, func(ctx context.Context, app *application, c *components) error {
		if err := c.requireSourceUnlessDemo(app); err != nil {
			return err
		}
		data, err := c.sync.Pull(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(app.stdout(), "pulled %q: %d page(s) -> %s\n", data.Site.Name, len(data.Pages), c.cfg.Build.DataFile)
		return nil
	})
}

// RunPush publishes the existing output and writes the result back.
func RunPush(ctx context.Context, opts ...Option) error {
	return withComponents(ctx, opts, nil, func(ctx context.Context, app *application, c *components) error {
		res, err := c.sync.PushOutput(ctx)
		if err != nil {
			return err
		}
		printResult(app.stdout(), res)
		return nil
	})
}

// RunFull pulls, builds, publishes and reports in one pass.
func RunFull(ctx context.Context, opts ...Option) error {
	return withComponents(ctx, opts, nil, func(ctx context.Context, app *application, c *components) error {
		if err := c.requireSourceUnlessDemo(app); err != nil {
			return err
		}
		res, err := c.sync.Full(ctx)
		if err != nil {
			return err
		}
		printResult(app.stdout(), res)
		return nil
	})
}

// RunBuild renders the site locally without publishing. It uses the demo
// site, the cached data file, or the bundled demo when neither a data file
// nor a source is available.
func RunBuild(ctx context.Context, opts ...Option) error {
	return withComponents(ctx, opts, nil, func(ctx context.Context, app *application, c *components) error {
		data, err := c.buildData(app)
		if err != nil {
			return err
		}
		res, err := c.sync.Build(ctx, data)
		if err != nil {
			return err
		}
		printResult(app.stdout(), res)
		return nil
	})
}

// RunMCP serves the MCP tools over stdio. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	return withComponents(ctx, opts, os.Stderr, func(ctx context.Context, app *application, c *components) error {
		var det mcpserver.Detector
		if c.client != nil {
			ag, err := c.newAgent(c.sync.Run, nil)
			if err != nil {
				return err
			}
			det = ag
		}
		c.logger.Info("mcp server starting on stdio")
		return mcpserver.New(c.selector, det).ServeStdio()
	})
}

func (c *components) requireSourceUnlessDemo(app *application) error {
	if app.demo {
		return nil
	}
	return c.requireSource()
}

func (c *components) buildData(app *application) (models.SiteData, error) {
	if app.demo {
		return builder.DemoSite(), nil
	}
	data, err := c.sync.LoadData()
	if err == nil {
		return data, nil
	}
	if errors.Is(err, apperr.ErrNotFound) && c.client == nil {
		c.logger.Info("no data file and no source configured, building the demo site")
		return builder.DemoSite(), nil
	}
	return data, err
}

func printChanges(w io.Writer, changes []models.Change) {
	if len(changes) == 0 {
		fmt.Fprintln(w, "no changes")
		return
	}
	fmt.Fprintf(w, "%d change(s)\n", len(changes))
	for _, ch := range changes {
		fmt.Fprintf(w, "  %-8s %-12s %s %q\n", ch.Type, ch.Collection, ch.ExternalID, ch.Title)
	}
}

// printCycle reports a cycle's outcome. Collection and build failures are
// part of the outcome; the next cycle retries them.
func printCycle(w io.Writer, cycle agent.Cycle) {
	printChanges(w, cycle.Changes)
	for _, name := range cycle.Baselined {
		fmt.Fprintf(w, "baselined %s\n", name)
	}
	for _, name := range cycle.Failed {
		fmt.Fprintf(w, "failed %s\n", name)
	}
	if b := cycle.Build; b != nil {
		fmt.Fprintf(w, "build %s: %s\n", b.BuildID, b.Status)
		if b.Error != "" {
			fmt.Fprintf(w, "error: %s\n", b.Error)
		}
	}
}

func printResult(w io.Writer, res models.BuildResult) {
	if res.ID != "" {
		fmt.Fprintf(w, "build %s: ", res.ID)
	}
	fmt.Fprintf(w, "%d file(s) in %s\n", len(res.Files), res.OutputDir)
	if res.DeployURL != "" {
		fmt.Fprintf(w, "deployed to %s\n", res.DeployURL)
	}
	if res.CommitHash != "" {
		fmt.Fprintf(w, "commit %s\n", res.CommitHash)
	}
}

// signalContext cancels ctx on SIGINT or SIGTERM.
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}
