package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateConversion(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateResolver(); err != nil {
		return err
	}
	if err := c.validateLabelStudio(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if c.Preview.Limit < 0 {
		return errors.New("preview.limit must be >= 0")
	}
	if c.Preview.LineWidth <= 0 {
		return errors.New("preview.line_width must be positive")
	}
	return nil
}

func (c *Config) validateConversion() error {
	switch c.Conversion.Format {
	case "yolo", "coco":
	default:
		return fmt.Errorf("conversion.format must be yolo or coco, got %q", c.Conversion.Format)
	}
	if err := ValidateImageFormat(c.Conversion.ImageFormat); err != nil {
		return err
	}
	if c.Conversion.JPEGQuality < 1 || c.Conversion.JPEGQuality > 100 {
		return errors.New("conversion.jpeg_quality must be between 1 and 100")
	}
	if c.Conversion.FrameBase < 0 {
		return errors.New("conversion.frame_base must be >= 0")
	}
	names := make(map[string]struct{}, len(c.Conversion.Classes))
	ids := make(map[int]string, len(c.Conversion.Classes))
	for _, class := range c.Conversion.Classes {
		if class.Name == "" {
			return errors.New("conversion.classes entries must have a name")
		}
		if class.ID < 0 {
			return fmt.Errorf("conversion.classes %q must have a non-negative id", class.Name)
		}
		if _, dup := names[class.Name]; dup {
			return fmt.Errorf("conversion.classes name %q is defined twice", class.Name)
		}
		if other, dup := ids[class.ID]; dup {
			return fmt.Errorf("conversion.classes id %d is shared by %q and %q", class.ID, other, class.Name)
		}
		names[class.Name] = struct{}{}
		ids[class.ID] = class.Name
	}
	return nil
}

// ValidateImageFormat reports whether value names a supported frame encoding.
func ValidateImageFormat(value string) error {
	switch value {
	case "jpg", "png", "bmp", "tiff":
		return nil
	default:
		return fmt.Errorf("conversion.image_format must be one of jpg, png, bmp, tiff, got %q", value)
	}
}

func (c *Config) validateExtraction() error {
	if c.Extraction.BatchSize <= 0 {
		return errors.New("extraction.batch_size must be positive")
	}
	if c.Extraction.Workers <= 0 {
		return errors.New("extraction.workers must be positive")
	}
	return nil
}

func (c *Config) validateResolver() error {
	if c.Resolver.FuzzyThreshold <= 0 || c.Resolver.FuzzyThreshold > 1 {
		return errors.New("resolver.fuzzy_threshold must be greater than 0 and at most 1")
	}
	if c.Resolver.MinSubstringLength < 1 {
		return errors.New("resolver.min_substring_length must be positive")
	}
	return nil
}

func (c *Config) validateLabelStudio() error {
	if c.LabelStudio.ProjectID <= 0 {
		return errors.New("label_studio.project_id must be positive")
	}
	if c.LabelStudio.RequestTimeout <= 0 {
		return errors.New("label_studio.request_timeout must be positive (seconds)")
	}
	if !strings.HasPrefix(c.LabelStudio.URL, "http://") && !strings.HasPrefix(c.LabelStudio.URL, "https://") {
		return fmt.Errorf("label_studio.url must be an http(s) URL, got %q", c.LabelStudio.URL)
	}
	return nil
}

func (c *Config) validatePublish() error {
	if c.Publish.Enabled && c.Publish.Bucket == "" {
		return errors.New("publish.bucket must be set when publish.enabled is true")
	}
	return nil
}
