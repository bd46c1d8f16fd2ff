package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Duration     string `json:"duration"`
	BitRate      string `json:"bit_rate"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	PixFmt       string `json:"pix_fmt"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NBFrames     string `json:"nb_frames"`
	NBReadFrames string `json:"nb_read_frames"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	return run(ctx, binary, path, "-show_format", "-show_streams")
}

// CountFrames decodes the first video stream and reports the exact number of
// frames. It is slow on long videos and is used only when the container does
// not record a frame count.
func CountFrames(ctx context.Context, binary string, path string) (int, error) {
	result, err := run(ctx, binary, path, "-count_frames", "-select_streams", "v:0", "-show_streams")
	if err != nil {
		return 0, err
	}
	stream, ok := result.PrimaryVideo()
	if !ok {
		return 0, errors.New("ffprobe count frames: no video stream")
	}
	count, err := strconv.Atoi(strings.TrimSpace(stream.NBReadFrames))
	if err != nil {
		return 0, fmt.Errorf("ffprobe count frames: %w", err)
	}
	return count, nil
}

func run(ctx context.Context, binary, path string, extra ...string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	args := []string{"-v", "error", "-hide_banner"}
	args = append(args, extra...)
	args = append(args, "-of", "json", "--", path)
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// PrimaryVideo returns the first video stream.
func (r Result) PrimaryVideo() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// FrameRate returns the stream's frame rate in frames per second, preferring
// the average rate. Returns 0 when neither rate parses.
func (s Stream) FrameRate() float64 {
	for _, value := range []string{s.AvgFrameRate, s.RFrameRate} {
		if rate := parseRational(value); rate > 0 {
			return rate
		}
	}
	return 0
}

// FrameCount returns the number of frames in the stream and whether the value
// is exact. nb_frames from the container is exact; otherwise the count is
// estimated from duration and frame rate. Returns 0, false when unknown.
func (s Stream) FrameCount(containerDuration float64) (int, bool) {
	if n, err := strconv.Atoi(strings.TrimSpace(s.NBFrames)); err == nil && n > 0 {
		return n, true
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s.NBReadFrames)); err == nil && n > 0 {
		return n, true
	}
	duration := parseFloat(s.Duration)
	if math.IsNaN(duration) || duration <= 0 {
		duration = containerDuration
	}
	rate := s.FrameRate()
	if math.IsNaN(duration) || duration <= 0 || rate <= 0 {
		return 0, false
	}
	return int(math.Round(duration * rate)), false
}

func parseRational(value string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(value), "/")
	if !found {
		f := parseFloat(num)
		if math.IsNaN(f) {
			return 0
		}
		return f
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if math.IsNaN(n) || math.IsNaN(d) || d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
