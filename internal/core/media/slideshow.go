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
	"fmt"
	"strconv"
	"strings"
)

// SlideshowSpec describes the rendered slideshow: frame size, how long each
// image is fully shown and the crossfade between neighbours.
type SlideshowSpec struct {
	Width             int
	Height            int
	SecondsPerImage   float64
	TransitionSeconds float64
	FrameRate         int
}

// TotalDuration is the rendered length for n images. Every crossfade
// overlaps two clips, so each clip but the last runs one transition longer
// and the total stays n x SecondsPerImage.
func (s SlideshowSpec) TotalDuration(n int) float64 {
	return float64(n) * s.SecondsPerImage
}

// ClipDurations returns the input duration of each of n images.
func (s SlideshowSpec) ClipDurations(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = s.SecondsPerImage
		if i < n-1 {
			out[i] += s.transition()
		}
	}
	return out
}

func (s SlideshowSpec) transition() float64 {
	if s.TransitionSeconds <= 0 || s.TransitionSeconds >= s.SecondsPerImage {
		return 0
	}
	return s.TransitionSeconds
}

func (s SlideshowSpec) fps() int {
	if s.FrameRate <= 0 {
		return 30
	}
	return s.FrameRate
}

// FilterGraph builds the filter_complex for n inputs. Each input is scaled
// and padded to the frame, then chained through xfade. It returns the
// graph and the label of the final video stream.
func (s SlideshowSpec) FilterGraph(n int) (string, string) {
	parts := make([]string, 0, 2*n)
	for i := 0; i < n; i++ {
		parts = append(parts, fmt.Sprintf(
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d,format=yuv420p[v%d]",
			i, s.Width, s.Height, s.Width, s.Height, s.fps(), i))
	}
	last := "v0"
	t := s.transition()
	for i := 1; i < n; i++ {
		label := fmt.Sprintf("x%d", i)
		if t > 0 {
			offset := float64(i) * s.SecondsPerImage
			parts = append(parts, fmt.Sprintf("[%s][v%d]xfade=transition=fade:duration=%s:offset=%s[%s]",
				last, i, formatSeconds(t), formatSeconds(offset), label))
		} else {
			parts = append(parts, fmt.Sprintf("[%s][v%d]concat=n=2:v=1:a=0[%s]", last, i, label))
		}
		last = label
	}
	return strings.Join(parts, ";"), last
}

// Args returns the ffmpeg arguments rendering images to output.
func (s SlideshowSpec) Args(images []string, output string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	for i, d := range s.ClipDurations(len(images)) {
		args = append(args, "-loop", "1", "-t", formatSeconds(d), "-i", images[i])
	}
	graph, out := s.FilterGraph(len(images))
	args = append(args,
		"-filter_complex", graph,
		"-map", "["+out+"]",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(s.fps()),
		"-movflags", "+faststart",
		output)
	return args
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
