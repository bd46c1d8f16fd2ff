package config

const (
	defaultConfigPath         = "~/.config/labelreel/config.toml"
	defaultAnnotationsFile    = "json_file/annotations.json"
	defaultVideoDir           = "video_files"
	defaultOutputDir          = "dataset"
	defaultLogDir             = "~/.local/share/labelreel/logs"
	defaultFormat             = "yolo"
	defaultImageFormat        = "jpg"
	defaultJPEGQuality        = 95
	defaultFrameBase          = 1
	defaultBatchSize          = 500
	defaultWorkers            = 1
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultFuzzyThreshold     = 0.85
	defaultMinSubstringLength = 4
	defaultLabelStudioURL     = "http://localhost:8080"
	defaultLabelStudioProject = 5
	defaultRequestTimeout     = 120
	defaultPublishPrefix      = "datasets"
	defaultPreviewLimit       = 50
	defaultPreviewLineWidth   = 2
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			AnnotationsFile: defaultAnnotationsFile,
			VideoDir:        defaultVideoDir,
			OutputDir:       defaultOutputDir,
			StateDir:        defaultStateDir(),
			LogDir:          defaultLogDir,
		},
		Conversion: Conversion{
			Format:      defaultFormat,
			ImageFormat: defaultImageFormat,
			JPEGQuality: defaultJPEGQuality,
			FrameBase:   defaultFrameBase,
		},
		Extraction: Extraction{
			BatchSize:     defaultBatchSize,
			Workers:       defaultWorkers,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Resolver: Resolver{
			FuzzyThreshold:     defaultFuzzyThreshold,
			MinSubstringLength: defaultMinSubstringLength,
		},
		LabelStudio: LabelStudio{
			URL:                  defaultLabelStudioURL,
			ProjectID:            defaultLabelStudioProject,
			InterpolateKeyframes: true,
			RequestTimeout:       defaultRequestTimeout,
		},
		Publish: Publish{
			Prefix:  defaultPublishPrefix,
			Archive: true,
		},
		Preview: Preview{
			Limit:     defaultPreviewLimit,
			LineWidth: defaultPreviewLineWidth,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
