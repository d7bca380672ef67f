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

package test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/media"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

// ErrInjected is the failure the fakes return when told to fail.
var ErrInjected = errors.New("injected failure")

// PNG returns a solid w x h PNG image.
func PNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

type rule struct {
	match    string
	response string
	err      error
}

// ScriptedGenerator answers prompts by substring: the first rule whose match
// is contained in the prompt wins, otherwise Default is returned.
type ScriptedGenerator struct {
	mu      sync.Mutex
	rules   []rule
	Default string
	prompts []string
	media   int
}

func NewScriptedGenerator() *ScriptedGenerator {
	return &ScriptedGenerator{}
}

// On answers prompts containing match with response.
func (g *ScriptedGenerator) On(match string, response string) *ScriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules = append(g.rules, rule{match: match, response: response})
	return g
}

// FailOn fails prompts containing match.
func (g *ScriptedGenerator) FailOn(match string) *ScriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules = append(g.rules, rule{match: match, err: ErrInjected})
	return g
}

func (g *ScriptedGenerator) answer(prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	for _, r := range g.rules {
		if strings.Contains(prompt, r.match) {
			return r.response, r.err
		}
	}
	return g.Default, nil
}

func (g *ScriptedGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.answer(prompt)
}

func (g *ScriptedGenerator) GenerateMultiModal(ctx context.Context, prompt string, media ...cloud.InlineMedia) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	g.media += len(media)
	g.mu.Unlock()
	return g.answer(prompt)
}

// Prompts returns every prompt received so far.
func (g *ScriptedGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// PromptsContaining returns the received prompts that contain match.
func (g *ScriptedGenerator) PromptsContaining(match string) []string {
	out := make([]string, 0)
	for _, p := range g.Prompts() {
		if strings.Contains(p, match) {
			out = append(out, p)
		}
	}
	return out
}

// MediaCount is the number of inline attachments received.
func (g *ScriptedGenerator) MediaCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.media
}

// FakeImageGenerator returns a small PNG for every prompt.
type FakeImageGenerator struct {
	mu      sync.Mutex
	FailOn  string
	prompts []string
}

func (g *FakeImageGenerator) GenerateImage(_ context.Context, prompt string) (*cloud.GeneratedImageData, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if len(g.FailOn) > 0 && strings.Contains(prompt, g.FailOn) {
		return nil, ErrInjected
	}
	return &cloud.GeneratedImageData{Data: PNG(8, 8), MIMEType: "image/png"}, nil
}

func (g *FakeImageGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// FakeSpeechTranscriber returns Transcript, or Err when set.
type FakeSpeechTranscriber struct {
	Transcript *model.Transcript
	Err        error
	LastPrompt string
	LastMIME   string
}

func (s *FakeSpeechTranscriber) Transcribe(_ context.Context, audio []byte, mimeType string, prompt string) (*model.Transcript, error) {
	s.LastPrompt = prompt
	s.LastMIME = mimeType
	if s.Err != nil {
		return nil, s.Err
	}
	if len(audio) == 0 {
		return nil, errors.New("no audio")
	}
	return s.Transcript, nil
}

// FakeVideoSource writes placeholder media into the requested directory and
// remembers every directory it was given.
type FakeVideoSource struct {
	mu          sync.Mutex
	Metadata    *media.RawMetadata
	MetadataErr error
	VideoErr    error
	AudioErr    error
	dirs        []string
	calls       int
}

func (s *FakeVideoSource) FetchMetadata(_ context.Context, url string, _ model.Platform) (*media.RawMetadata, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.MetadataErr != nil {
		return nil, s.MetadataErr
	}
	if s.Metadata == nil {
		return &media.RawMetadata{WebpageURL: url}, nil
	}
	return s.Metadata, nil
}

func (s *FakeVideoSource) write(dir string, name string, data []byte, err error) (string, error) {
	s.mu.Lock()
	s.dirs = append(s.dirs, dir)
	s.mu.Unlock()
	// Leave a partial file behind so cleanup is observable on failure too.
	path := filepath.Join(dir, name)
	if wErr := os.WriteFile(path, data, 0o644); wErr != nil {
		return "", wErr
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

func (s *FakeVideoSource) DownloadVideo(_ context.Context, _ string, _ model.Platform, dir string) (string, error) {
	return s.write(dir, "clip.mp4", []byte("\x00\x00\x00\x18ftypmp42fake-video"), s.VideoErr)
}

func (s *FakeVideoSource) DownloadAudio(_ context.Context, _ string, _ model.Platform, dir string) (string, error) {
	return s.write(dir, "clip.mp3", []byte("ID3fake-audio"), s.AudioErr)
}

// Dirs returns the scratch directories handed to the downloads.
func (s *FakeVideoSource) Dirs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.dirs...)
}

// MetadataCalls is the number of FetchMetadata calls.
func (s *FakeVideoSource) MetadataCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// FakeSceneDetector reports a fixed duration and cut list.
type FakeSceneDetector struct {
	Duration float64
	Cuts     []float64
	Err      error
	FrameErr error
	Width    int
	Height   int
}

func (d *FakeSceneDetector) ProbeDuration(_ context.Context, path string) (float64, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}
	return d.Duration, d.Err
}

func (d *FakeSceneDetector) DetectCuts(_ context.Context, _ string, _ float64) ([]float64, error) {
	return d.Cuts, d.Err
}

func (d *FakeSceneDetector) ExtractFrame(_ context.Context, _ string, _ float64) ([]byte, error) {
	if d.FrameErr != nil {
		return nil, d.FrameErr
	}
	w, h := d.Width, d.Height
	if w == 0 || h == 0 {
		w, h = 64, 36
	}
	return PNG(w, h), nil
}

// FakeSlideshowRenderer writes a placeholder video and records its inputs.
// When Release is set, Render signals Entered and waits for Release to close.
type FakeSlideshowRenderer struct {
	mu      sync.Mutex
	Err     error
	Entered chan struct{}
	Release chan struct{}
	images  []string
	dirs    []string
}

func (r *FakeSlideshowRenderer) Render(_ context.Context, images []string, output string, spec media.SlideshowSpec) error {
	r.mu.Lock()
	r.images = append([]string(nil), images...)
	r.dirs = append(r.dirs, filepath.Dir(output))
	r.mu.Unlock()
	if r.Release != nil {
		if r.Entered != nil {
			r.Entered <- struct{}{}
		}
		<-r.Release
	}
	for _, img := range images {
		if _, err := os.Stat(img); err != nil {
			return fmt.Errorf("missing input %s: %w", img, err)
		}
	}
	if r.Err != nil {
		return r.Err
	}
	body := fmt.Sprintf("\x00\x00\x00\x18ftypmp42slideshow %d images %gs", len(images), spec.TotalDuration(len(images)))
	return os.WriteFile(output, []byte(body), 0o644)
}

// Images returns the inputs of the last render.
func (r *FakeSlideshowRenderer) Images() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.images...)
}

// Dirs returns the directories of every render output.
func (r *FakeSlideshowRenderer) Dirs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dirs...)
}

// FakeCaptionFetcher returns Body, or Err when set.
type FakeCaptionFetcher struct {
	Body    string
	Err     error
	LastURL string
}

func (f *FakeCaptionFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.LastURL = url
	return f.Body, f.Err
}

// FakeRunRecorder keeps run records in memory.
type FakeRunRecorder struct {
	mu   sync.Mutex
	Runs []*services.RunRecord
	Err  error
}

func (r *FakeRunRecorder) Record(_ context.Context, run *services.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Runs = append(r.Runs, run)
	return nil
}

func (r *FakeRunRecorder) Summary(_ context.Context) ([]*services.RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	order := make([]string, 0)
	for _, run := range r.Runs {
		if _, ok := counts[run.Status]; !ok {
			order = append(order, run.Status)
		}
		counts[run.Status]++
	}
	out := make([]*services.RunSummary, 0, len(order))
	for _, s := range order {
		out = append(out, &services.RunSummary{Status: s, Runs: counts[s]})
	}
	return out, nil
}
