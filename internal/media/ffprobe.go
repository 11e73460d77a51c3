package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// FFProbe measures audio duration by piping the stream through ffprobe.
type FFProbe struct {
	Path string
}

// NewFFProbe returns a prober invoking the given binary, "ffprobe" when empty.
func NewFFProbe(path string) *FFProbe {
	if strings.TrimSpace(path) == "" {
		path = "ffprobe"
	}
	return &FFProbe{Path: path}
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe implements DurationProber.
func (p *FFProbe) Probe(ctx context.Context, reader io.Reader) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, p.Path,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		"pipe:0",
	)
	cmd.Stdin = reader
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("run ffprobe: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseFFProbe(stdout.Bytes())
}

func parseFFProbe(raw []byte) (time.Duration, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("decode ffprobe output: %w", err)
	}
	value := strings.TrimSpace(out.Format.Duration)
	if value == "" || value == "N/A" {
		return 0, ErrDurationUnknown
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds <= 0 {
		return 0, ErrDurationUnknown
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
