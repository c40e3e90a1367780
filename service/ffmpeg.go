package service

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

type Resolution struct {
	Width     int
	Height    int
	Bitrate   string // e.g., "800k"
	AudioRate string // e.g., "96k"
}

func (r Resolution) Name() string {
	return fmt.Sprintf("%dp", r.Height)
}

var knownResolutions = []Resolution{
	{Width: 256, Height: 144, Bitrate: "200k", AudioRate: "64k"},
	{Width: 640, Height: 360, Bitrate: "800k", AudioRate: "96k"},
	{Width: 854, Height: 480, Bitrate: "1500k", AudioRate: "128k"},
	{Width: 1280, Height: 720, Bitrate: "3000k", AudioRate: "192k"},
	{Width: 1920, Height: 1080, Bitrate: "5000k", AudioRate: "192k"},
}

// ResolutionsFor maps configured heights to known renditions, skipping
// unknown ones. No heights selects 360p and 720p.
func ResolutionsFor(heights []int) []Resolution {
	if len(heights) == 0 {
		heights = []int{360, 720}
	}
	var out []Resolution
	for _, h := range heights {
		for _, r := range knownResolutions {
			if r.Height == h {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// mediaTool is the part of ffmpeg the transcoder needs.
type mediaTool interface {
	Probe(ctx context.Context, input string) (seconds int, err error)
	Transcode(ctx context.Context, input, output string, r Resolution) error
}

type ffmpegTool struct {
	ffmpeg  string
	ffprobe string
}

func (f ffmpegTool) Probe(ctx context.Context, input string) (int, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		input,
	}
	output, err := exec.CommandContext(ctx, f.ffprobe, args...).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe execution failed: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", output, err)
	}
	return int(math.Round(seconds)), nil
}

func (f ffmpegTool) Transcode(ctx context.Context, input, output string, r Resolution) error {
	ffmpegArgs := []string{
		"-y",
		"-i", input,
		"-vf", fmt.Sprintf("scale=w=%d:h=%d:force_original_aspect_ratio=decrease,pad=w=%d:h=%d:x=(ow-iw)/2:y=(oh-ih)/2",
			r.Width, r.Height, r.Width, r.Height),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "22",
		"-b:v", r.Bitrate,
		"-maxrate", r.Bitrate,
		"-bufsize", r.Bitrate,
		"-map", "0:v:0",
		"-map", "0:a:0?",
		"-c:a", "aac",
		"-b:a", r.AudioRate,
		"-movflags", "+faststart",
		output,
	}

	cmd := exec.CommandContext(ctx, f.ffmpeg, ffmpegArgs...)
	zerolog.Ctx(ctx).Debug().Str("resolution", r.Name()).Msgf("executing: %s %s", f.ffmpeg, strings.Join(ffmpegArgs, " "))

	out, err := cmd.CombinedOutput()
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("resolution", r.Name()).Str("ffmpeg_output", string(out)).Msg("ffmpeg failed")
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}
	return nil
}
