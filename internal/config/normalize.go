package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeConversion()
	c.normalizeExtraction()
	if err := c.normalizeLabelStudio(); err != nil {
		return err
	}
	c.normalizePublish()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.AnnotationsFile, err = expandPath(strings.TrimSpace(c.Paths.AnnotationsFile)); err != nil {
		return fmt.Errorf("paths.annotations_file: %w", err)
	}
	if c.Paths.VideoDir, err = expandPath(strings.TrimSpace(c.Paths.VideoDir)); err != nil {
		return fmt.Errorf("paths.video_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeConversion() {
	c.Conversion.Format = strings.ToLower(strings.TrimSpace(c.Conversion.Format))
	if c.Conversion.Format == "" {
		c.Conversion.Format = defaultFormat
	}
	c.Conversion.ImageFormat = NormalizeImageFormat(c.Conversion.ImageFormat)
	if c.Conversion.JPEGQuality == 0 {
		c.Conversion.JPEGQuality = defaultJPEGQuality
	}
	for i := range c.Conversion.Classes {
		c.Conversion.Classes[i].Name = strings.TrimSpace(c.Conversion.Classes[i].Name)
	}
}

// NormalizeImageFormat lowercases an image format and folds common aliases
// onto the canonical extension. Empty input yields the default format.
func NormalizeImageFormat(value string) string {
	value = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), ".")
	switch value {
	case "":
		return defaultImageFormat
	case "jpeg":
		return "jpg"
	case "tif":
		return "tiff"
	default:
		return value
	}
}

func (c *Config) normalizeExtraction() {
	c.Extraction.FFmpegBinary = strings.TrimSpace(c.Extraction.FFmpegBinary)
	if c.Extraction.FFmpegBinary == "" {
		c.Extraction.FFmpegBinary = defaultFFmpegBinary
	}
	c.Extraction.FFprobeBinary = strings.TrimSpace(c.Extraction.FFprobeBinary)
	if c.Extraction.FFprobeBinary == "" {
		c.Extraction.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeLabelStudio() error {
	if value, ok := os.LookupEnv("LABEL_STUDIO_URL"); ok && strings.TrimSpace(c.LabelStudio.URL) == defaultLabelStudioURL {
		c.LabelStudio.URL = value
	}
	c.LabelStudio.URL = strings.TrimRight(strings.TrimSpace(c.LabelStudio.URL), "/")
	if c.LabelStudio.URL == "" {
		c.LabelStudio.URL = defaultLabelStudioURL
	}
	if c.LabelStudio.APIKey == "" {
		if value, ok := os.LookupEnv("LABEL_STUDIO_API_KEY"); ok {
			c.LabelStudio.APIKey = value
		}
	}
	c.LabelStudio.APIKey = strings.TrimSpace(c.LabelStudio.APIKey)
	for _, key := range []string{"LABEL_STUDIO_PROJECT_ID", "PROJECT_ID"} {
		value, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(value) == "" || c.LabelStudio.ProjectID != defaultLabelStudioProject {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("label_studio.project_id: %s=%q is not a number", key, value)
		}
		c.LabelStudio.ProjectID = id
		break
	}
	if c.LabelStudio.RequestTimeout == 0 {
		c.LabelStudio.RequestTimeout = defaultRequestTimeout
	}
	return nil
}

func (c *Config) normalizePublish() {
	c.Publish.Bucket = strings.TrimSpace(c.Publish.Bucket)
	c.Publish.Prefix = strings.Trim(strings.TrimSpace(c.Publish.Prefix), "/")
	c.Publish.Region = strings.TrimSpace(c.Publish.Region)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
