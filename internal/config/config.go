package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains input and output locations for a conversion run.
type Paths struct {
	AnnotationsFile string `toml:"annotations_file"`
	VideoDir        string `toml:"video_dir"`
	OutputDir       string `toml:"output_dir"`
	StateDir        string `toml:"state_dir"`
	LogDir          string `toml:"log_dir"`
}

// Class binds a human-readable label to a dataset class id.
type Class struct {
	Name string `toml:"name"`
	ID   int    `toml:"id"`
}

// Conversion controls how annotations become dataset files.
type Conversion struct {
	Format      string  `toml:"format"`
	ImageFormat string  `toml:"image_format"`
	JPEGQuality int     `toml:"jpeg_quality"`
	FrameBase   int     `toml:"frame_base"`
	Classes     []Class `toml:"classes"`
}

// Extraction controls the decode pass over each video.
type Extraction struct {
	BatchSize     int    `toml:"batch_size"`
	Workers       int    `toml:"workers"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	// CountFrames decodes the whole stream with ffprobe when the container
	// has no frame count, so out-of-range frames are known before decoding.
	CountFrames   bool   `toml:"count_frames"`
}

// Resolver tunes how annotation video references are matched to local files.
type Resolver struct {
	FuzzyThreshold     float64 `toml:"fuzzy_threshold"`
	MinSubstringLength int     `toml:"min_substring_length"`
}

// LabelStudio contains connection settings for export and video download.
type LabelStudio struct {
	URL                  string `toml:"url"`
	APIKey               string `toml:"api_key"`
	ProjectID            int    `toml:"project_id"`
	InterpolateKeyframes bool   `toml:"interpolate_keyframes"`
	RequestTimeout       int    `toml:"request_timeout"`
}

// Publish contains archive and S3 upload settings.
type Publish struct {
	Enabled bool   `toml:"enabled"`
	Bucket  string `toml:"bucket"`
	Prefix  string `toml:"prefix"`
	Region  string `toml:"region"`
	Archive bool   `toml:"archive"`
}

// Preview controls QA rendering of boxes onto exported frames.
type Preview struct {
	Limit     int     `toml:"limit"`
	LineWidth float64 `toml:"line_width"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for labelreel.
//
// Configuration sections by subsystem:
//   - Paths: annotation export, video directory, output and state locations
//   - Conversion: dataset format, image encoding, frame numbering, classes
//   - Extraction: batch size, worker count, ffmpeg/ffprobe binaries
//   - Resolver: fuzzy and substring matching thresholds
//   - LabelStudio: export and video download
//   - Publish: dataset archive and S3 upload
//   - Preview: box overlay rendering
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Conversion  Conversion  `toml:"conversion"`
	Extraction  Extraction  `toml:"extraction"`
	Resolver    Resolver    `toml:"resolver"`
	LabelStudio LabelStudio `toml:"label_studio"`
	Publish     Publish     `toml:"publish"`
	Preview     Preview     `toml:"preview"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("labelreel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. The dataset output
// directory is created by the conversion run itself, after class validation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the location of the run history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// FFmpegBinary returns the ffmpeg executable used for frame decoding.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Extraction.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Extraction.FFprobeBinary); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "labelreel")
	}
	return "~/.local/state/labelreel"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
