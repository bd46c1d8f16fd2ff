package deps

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

// MediaRequirements lists the decode tools a conversion run needs.
func MediaRequirements(ffmpegBinary, ffprobeBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegBinary,
			Description: "Required for frame extraction",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobeBinary,
			Description: "Required for video inspection",
		},
	}
}

// WithVersions fills Version for every available status by running
// "<command> -version" and keeping the first line.
func WithVersions(ctx context.Context, statuses []Status) []Status {
	out := make([]Status, len(statuses))
	for i, status := range statuses {
		if status.Available {
			status.Version = ProbeVersion(ctx, status.Path)
		}
		out[i] = status
	}
	return out
}

// ProbeVersion runs "<binary> -version" and returns the first output line, or
// "" when the binary fails.
func ProbeVersion(ctx context.Context, binary string) string {
	if strings.TrimSpace(binary) == "" {
		return ""
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	output, err := exec.CommandContext(probeCtx, binary, "-version").Output()
	if err != nil {
		return ""
	}
	scanner := bufio.NewScanner(bytes.NewReader(output))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	return ""
}
