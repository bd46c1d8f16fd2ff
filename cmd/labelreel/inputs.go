package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"labelreel/internal/annotation"
	"labelreel/internal/config"
	"labelreel/internal/extract"
	"labelreel/internal/services"
	"labelreel/internal/videoresolve"
)

// classMapping returns the --classes JSON when given, else the configured
// [[conversion.classes]] list.
func classMapping(cfg *config.Config, classesFlag string) (*annotation.ClassMapping, error) {
	if raw := strings.TrimSpace(classesFlag); raw != "" {
		if strings.HasPrefix(raw, "@") {
			data, err := os.ReadFile(strings.TrimPrefix(raw, "@"))
			if err != nil {
				return nil, services.Wrap(services.ErrConfiguration, "convert", "read classes", "", err)
			}
			raw = string(data)
		}
		mapping, err := annotation.ParseClassMapping([]byte(raw))
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "convert", "parse --classes", "", err)
		}
		return mapping, nil
	}
	if len(cfg.Conversion.Classes) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "convert", "class mapping",
			`no classes configured; pass --classes '{"person": 0}' or add [[conversion.classes]]`, nil)
	}
	entries := make([]annotation.ClassEntry, 0, len(cfg.Conversion.Classes))
	for _, class := range cfg.Conversion.Classes {
		entries = append(entries, annotation.ClassEntry{Name: class.Name, ID: class.ID})
	}
	mapping, err := annotation.NewClassMapping(entries)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "convert", "class mapping", "", err)
	}
	return mapping, nil
}

// loadInputs reads the export and lists local videos.
func loadInputs(cfg *config.Config) ([]annotation.Task, []string, error) {
	tasks, err := annotation.LoadFile(cfg.Paths.AnnotationsFile)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrValidation, "load", "annotations", "", err)
	}
	videos, err := videoresolve.ScanVideos(cfg.Paths.VideoDir)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrConfiguration, "load", "video directory", "", err)
	}
	return tasks, videos, nil
}

func newResolver(cfg *config.Config, logger *slog.Logger) *videoresolve.Resolver {
	return videoresolve.New(videoresolve.Options{
		FuzzyThreshold:     cfg.Resolver.FuzzyThreshold,
		MinSubstringLength: cfg.Resolver.MinSubstringLength,
		Logger:             logger,
	})
}

func newDecoder(cfg *config.Config) extract.Decoder {
	decoder := extract.NewFFmpegDecoder(cfg.FFmpegBinary(), cfg.FFprobeBinary())
	decoder.CountFrames = cfg.Extraction.CountFrames
	return decoder
}

// applyPathFlags overrides config paths with non-empty flag values.
func applyPathFlags(cfg *config.Config, annotationsFile, videoDir, outputDir string) error {
	overrides := []struct {
		value  string
		target *string
	}{
		{annotationsFile, &cfg.Paths.AnnotationsFile},
		{videoDir, &cfg.Paths.VideoDir},
		{outputDir, &cfg.Paths.OutputDir},
	}
	for _, o := range overrides {
		if strings.TrimSpace(o.value) == "" {
			continue
		}
		expanded, err := config.ExpandPath(o.value)
		if err != nil {
			return fmt.Errorf("resolve path %q: %w", o.value, err)
		}
		*o.target = expanded
	}
	return nil
}
