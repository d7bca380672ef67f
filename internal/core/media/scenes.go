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
	"math"
	"sort"
)

// minSceneLength drops boundaries closer than this to their neighbour, in
// seconds. ffmpeg can report several frames of one transition.
const minSceneLength = 0.05

// SceneSpan is the time range of one detected scene.
type SceneSpan struct {
	Number int
	Start  float64
	End    float64
}

func (s SceneSpan) Duration() float64 {
	return s.End - s.Start
}

// BuildSceneSpans turns cut timestamps into contiguous scenes
// [0,c1), [c1,c2), ..., [cn,duration). Cuts outside (0, duration) are
// ignored. A video without cuts is one scene; a zero duration yields none.
func BuildSceneSpans(cuts []float64, duration float64) []SceneSpan {
	if duration <= 0 || math.IsNaN(duration) {
		return nil
	}
	sorted := append([]float64(nil), cuts...)
	sort.Float64s(sorted)

	bounds := []float64{0}
	for _, c := range sorted {
		if c <= 0 || c >= duration || math.IsNaN(c) {
			continue
		}
		if c-bounds[len(bounds)-1] < minSceneLength {
			continue
		}
		bounds = append(bounds, c)
	}
	if duration-bounds[len(bounds)-1] < minSceneLength && len(bounds) > 1 {
		bounds = bounds[:len(bounds)-1]
	}
	bounds = append(bounds, duration)

	out := make([]SceneSpan, 0, len(bounds)-1)
	for i := 0; i < len(bounds)-1; i++ {
		out = append(out, SceneSpan{Number: i, Start: bounds[i], End: bounds[i+1]})
	}
	return out
}
