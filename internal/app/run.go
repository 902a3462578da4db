package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vk/jaffgo/internal/builder"
	"github.com/vk/jaffgo/internal/compiler"
	"github.com/vk/jaffgo/internal/ctxlog"
	"github.com/vk/jaffgo/internal/dialect"
	"github.com/vk/jaffgo/internal/fsutil"
	"github.com/vk/jaffgo/internal/langspec"
	"github.com/vk/jaffgo/internal/model"
	"github.com/vk/jaffgo/internal/ratetable"
	"github.com/vk/jaffgo/internal/render"
)

// Run executes the main application logic: parse the network, validate,
// compile the expression artifacts and render every template.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	file, err := dialect.ParseFile(ctx, a.config.NetworkPath)
	if err != nil {
		return fmt.Errorf("failed to parse network file: %w", err)
	}

	label := a.config.Label
	if label == "" {
		base := filepath.Base(a.config.NetworkPath)
		label = strings.TrimSuffix(base, filepath.Ext(base))
	}

	net, err := builder.Build(ctx, file, builder.Options{Label: label})
	if err != nil {
		return fmt.Errorf("failed to build network model: %w", err)
	}
	a.logger.Info("Network model built.",
		"species", len(net.Species),
		"reactions", len(net.Reactions),
		"elements", len(net.Elements))

	if err := a.validate(net); err != nil {
		return err
	}

	artifacts, err := compiler.Compile(ctx, net, compiler.Options{})
	if err != nil {
		return fmt.Errorf("failed to compile expression artifacts: %w", err)
	}

	if a.config.RateTablePath != "" {
		if err := a.writeRateTable(ctx, net); err != nil {
			return err
		}
	}

	if a.config.TemplatesPath == "" {
		a.logger.Info("No template directory given, nothing to render.")
		return nil
	}
	return a.renderTemplates(ctx, net, artifacts)
}

// validate logs every finding and fails on non-advisory ones unless
// validation is disabled.
func (a *App) validate(net *model.Network) error {
	findings := net.Validate(model.ValidateOptions{})
	for _, f := range findings {
		if f.Advisory {
			a.logger.Warn("Network finding.", "kind", f.Kind, "detail", f.Message)
		} else {
			a.logger.Error("Network finding.", "kind", f.Kind, "detail", f.Message)
		}
	}
	if a.config.NoValidate {
		return nil
	}
	if err := net.StrictValidate(model.ValidateOptions{}); err != nil {
		return fmt.Errorf("network validation failed: %w", err)
	}
	return nil
}

func (a *App) writeRateTable(ctx context.Context, net *model.Network) error {
	table, err := ratetable.Build(ctx, net, ratetable.Options{})
	if err != nil {
		return fmt.Errorf("failed to tabulate rates: %w", err)
	}
	f, err := os.Create(a.config.RateTablePath)
	if err != nil {
		return fmt.Errorf("failed to create rate table file: %w", err)
	}
	defer f.Close()
	if _, err := table.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write rate table: %w", err)
	}
	a.logger.Info("Rate table written.", "path", a.config.RateTablePath)
	return nil
}

// renderTemplates expands every template in the configured directory with
// a bounded worker pool and writes the results under OutputPath.
func (a *App) renderTemplates(ctx context.Context, net *model.Network, artifacts *compiler.Artifacts) error {
	languageFiles, err := expandLanguagePaths(a.config.LanguagePaths)
	if err != nil {
		return fmt.Errorf("failed to resolve language descriptor paths: %w", err)
	}
	descriptors, err := langspec.Load(ctx, languageFiles...)
	if err != nil {
		return fmt.Errorf("failed to load language descriptors: %w", err)
	}

	templates, err := fsutil.FindTemplates(a.config.TemplatesPath)
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}
	if len(templates) == 0 {
		a.logger.Warn("No templates found.", "path", a.config.TemplatesPath)
		return nil
	}

	if err := os.MkdirAll(a.config.OutputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	jobs := make(chan string)
	errs := make(chan error, len(templates))
	var wg sync.WaitGroup

	for i := 0; i < a.config.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if err := a.renderOne(ctx, path, net, artifacts, descriptors); err != nil {
					errs <- err
				}
			}
		}()
	}
	for _, path := range templates {
		jobs <- path
	}
	close(jobs)
	wg.Wait()
	close(errs)

	for err := range errs {
		// Report the first failure; the rest were already logged.
		return err
	}
	a.logger.Info("All templates rendered.", "count", len(templates), "output", a.config.OutputPath)
	return nil
}

// expandLanguagePaths resolves each configured path: directories contribute
// every .hcl file under them, plain files pass through.
func expandLanguagePaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		files, err := fsutil.FindFilesByExtension(p, ".hcl")
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}

func (a *App) renderOne(ctx context.Context, path string, net *model.Network, artifacts *compiler.Artifacts, descriptors map[string]langspec.Descriptor) error {
	log := ctxlog.FromContext(ctx)

	langName := a.config.Language
	if langName == "" {
		name, ok := langspec.ForExtension(filepath.Ext(path))
		if !ok {
			log.Warn("Skipping template with unknown extension.", "path", path)
			return nil
		}
		langName = name
	}
	desc, ok := descriptors[langName]
	if !ok {
		return fmt.Errorf("template %s: unknown language %q", path, langName)
	}

	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read template %s: %w", path, err)
	}

	engine := render.New(net, artifacts, desc)
	out, err := engine.Render(filepath.Base(path), string(text))
	if err != nil {
		log.Error("Template rendering failed.", "path", path, "error", err)
		return err
	}

	target := filepath.Join(a.config.OutputPath, filepath.Base(path))
	if err := os.WriteFile(target, []byte(out), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	log.Debug("Template rendered.", "path", path, "target", target, "language", langName)
	return nil
}
