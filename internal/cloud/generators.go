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

package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

const meterNamespace = "github.com/jaycherian/gcp-go-recipe-extraction/cloud"

// ErrNoImageGenerated is returned when the image model answered without an image.
var ErrNoImageGenerated = errors.New("no image was generated")

// InlineMedia is a binary attachment to a generation call.
type InlineMedia struct {
	Data     []byte
	MIMEType string
}

// ContentGenerator produces text from a prompt, optionally with attached
// images or audio.
type ContentGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateMultiModal(ctx context.Context, prompt string, media ...InlineMedia) (string, error)
}

// GeneratedImageData is the raw output of an image model.
type GeneratedImageData struct {
	Data     []byte
	MIMEType string
}

// ImageGenerator produces one image for a text prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*GeneratedImageData, error)
}

// generationCounters are the per-generator token and retry counters.
type generationCounters struct {
	input  metric.Int64Counter
	output metric.Int64Counter
	retry  metric.Int64Counter
}

func newGenerationCounters(name string) generationCounters {
	meter := otel.Meter(meterNamespace)
	input, _ := meter.Int64Counter(fmt.Sprintf("%s.gemini.token.input", name))
	output, _ := meter.Int64Counter(fmt.Sprintf("%s.gemini.token.output", name))
	retry, _ := meter.Int64Counter(fmt.Sprintf("%s.gemini.retry", name))
	return generationCounters{input: input, output: output, retry: retry}
}

// GeminiContentGenerator implements ContentGenerator on a quota-aware Gemini
// model. Text-only responses are cached when a cache is configured.
type GeminiContentGenerator struct {
	model    *QuotaAwareGenerativeAIModel
	cache    ResponseCache
	counters generationCounters
}

// NewGeminiContentGenerator names the token counters after name. cache may be nil.
func NewGeminiContentGenerator(name string, m *QuotaAwareGenerativeAIModel, cache ResponseCache) *GeminiContentGenerator {
	return &GeminiContentGenerator{
		model:    m,
		cache:    cache,
		counters: newGenerationCounters(name),
	}
}

func (g *GeminiContentGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	if g.cache != nil {
		if cached, ok := g.cache.Get(ctx, g.model.ModelName, prompt); ok {
			return cached, nil
		}
	}
	out, err := g.generate(ctx, NewUserContent(NewTextPart(prompt)))
	if err != nil {
		return "", err
	}
	if g.cache != nil {
		g.cache.Put(ctx, g.model.ModelName, prompt, out)
	}
	return out, nil
}

func (g *GeminiContentGenerator) GenerateMultiModal(ctx context.Context, prompt string, media ...InlineMedia) (string, error) {
	parts := []*genai.Part{NewTextPart(prompt)}
	for _, m := range media {
		parts = append(parts, NewInlineData(m.Data, m.MIMEType))
	}
	return g.generate(ctx, NewUserContent(parts...))
}

func (g *GeminiContentGenerator) generate(ctx context.Context, content []*genai.Content) (string, error) {
	out, err := GenerateMultiModalResponse(ctx, g.counters.input, g.counters.output, g.counters.retry, 0, g.model, content)
	if err != nil {
		return "", err
	}
	if len(strings.TrimSpace(out)) == 0 {
		return "", model.ErrEmptyModelOutput
	}
	return out, nil
}

// ImagenGenerator implements ImageGenerator with Imagen on Vertex AI.
type ImagenGenerator struct {
	models      *genai.Models
	modelName   string
	aspectRatio string
	limiter     *QuotaAwareGenerativeAIModel
}

// NewImagenGenerator reuses the quota-aware wrapper for its limiter only.
func NewImagenGenerator(handle *genai.Models, values VertexAiImageModel) *ImagenGenerator {
	return &ImagenGenerator{
		models:      handle,
		modelName:   values.Model,
		aspectRatio: values.AspectRatio,
		limiter:     NewQuotaAwareModel(nil, values.Model, handle, values.RateLimit),
	}
}

func (g *ImagenGenerator) GenerateImage(ctx context.Context, prompt string) (*GeneratedImageData, error) {
	if err := g.limiter.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	cfg := &genai.GenerateImagesConfig{NumberOfImages: 1}
	if len(g.aspectRatio) > 0 {
		cfg.AspectRatio = g.aspectRatio
	}
	resp, err := g.models.GenerateImages(ctx, g.modelName, prompt, cfg)
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	for _, img := range resp.GeneratedImages {
		if img == nil || img.Image == nil || len(img.Image.ImageBytes) == 0 {
			continue
		}
		mimeType := img.Image.MIMEType
		if len(mimeType) == 0 {
			mimeType = SniffContentType(img.Image.ImageBytes, "image/png")
		}
		return &GeneratedImageData{Data: img.Image.ImageBytes, MIMEType: mimeType}, nil
	}
	slog.WarnContext(ctx, "image model returned no images", "model", g.modelName)
	return nil, ErrNoImageGenerated
}

// SniffContentType detects a MIME type from the leading bytes of data.
func SniffContentType(data []byte, fallback string) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return fallback
	}
	return kind.MIME.Value
}

// ExtensionFor maps a MIME type to a file extension without the dot.
func ExtensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "video/mp4":
		return "mp4"
	case "audio/mpeg":
		return "mp3"
	}
	ext := "bin"
	filetype.Types.Range(func(_, v any) bool {
		kind := v.(types.Type)
		if kind.MIME.Value == mimeType {
			ext = kind.Extension
			return false
		}
		return true
	})
	return ext
}
