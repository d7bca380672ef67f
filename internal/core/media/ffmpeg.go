// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package media

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ptsTime = regexp.MustCompile(`pts_time:\s*([0-9]+(?:\.[0-9]+)?)`)

// SceneDetector finds content changes in a local video and grabs frames.
type SceneDetector interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	// DetectCuts returns the timestamps, in seconds, at which the content
	// difference exceeds threshold on a 0-100 scale.
	DetectCuts(ctx context.Context, path string, threshold float64) ([]float64, error)
	// ExtractFrame returns the frame at the timestamp as PNG.
	ExtractFrame(ctx context.Context, path string, at float64) ([]byte, error)
}

// SlideshowRenderer renders still images into a crossfaded video.
type SlideshowRenderer interface {
	Render(ctx context.Context, images []string, output string, spec SlideshowSpec) error
}

// FFmpeg implements SceneDetector and SlideshowRenderer with the ffmpeg and
// ffprobe binaries.
type FFmpeg struct {
	FFmpegBinary  string
	FFprobeBinary string
}

func NewFFmpeg(ffmpeg string, ffprobe string) *FFmpeg {
	if len(ffmpeg) == 0 {
		ffmpeg = "ffmpeg"
	}
	if len(ffprobe) == 0 {
		ffprobe = "ffprobe"
	}
	return &FFmpeg{FFmpegBinary: ffmpeg, FFprobeBinary: ffprobe}
}

func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	stdout, _, err := run(ctx, f.FFprobeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, err
	}
	value := strings.TrimSpace(string(stdout))
	if len(value) == 0 || value == "N/A" {
		return 0, errors.New("ffprobe reported no duration")
	}
	return strconv.ParseFloat(value, 64)
}

func (f *FFmpeg) DetectCuts(ctx context.Context, path string, threshold float64) ([]float64, error) {
	filter := fmt.Sprintf("select='gt(scene,%.4f)',showinfo", threshold/100)
	_, stderr, err := run(ctx, f.FFmpegBinary,
		"-hide_banner", "-nostats",
		"-i", path,
		"-filter:v", filter,
		"-an", "-f", "null", "-")
	if err != nil {
		return nil, err
	}
	return ParseShowInfo(string(stderr)), nil
}

// ParseShowInfo extracts the pts_time values of showinfo log lines.
func ParseShowInfo(log string) []float64 {
	out := make([]float64, 0)
	for _, line := range strings.Split(log, "\n") {
		if !strings.Contains(line, "showinfo") {
			continue
		}
		m := ptsTime.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func (f *FFmpeg) ExtractFrame(ctx context.Context, path string, at float64) ([]byte, error) {
	stdout, _, err := run(ctx, f.FFmpegBinary,
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(at, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe", "-vcodec", "png", "-")
	if err != nil {
		return nil, err
	}
	if len(stdout) == 0 {
		return nil, fmt.Errorf("no frame at %.3fs", at)
	}
	return stdout, nil
}

func (f *FFmpeg) Render(ctx context.Context, images []string, output string, spec SlideshowSpec) error {
	if len(images) == 0 {
		return errors.New("slideshow needs at least one image")
	}
	_, _, err := run(ctx, f.FFmpegBinary, spec.Args(images, output)...)
	return err
}
