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

// Package cloud defines the application configuration, loaded from TOML
// files, and the clients for every external service the pipelines call:
// Gemini text, vision, speech and image models, blob storage, the document
// store, the response cache and Pub/Sub.
//
// Structs:
//   - Config: the root of the TOML configuration.
//   - ServiceClients: the constructed clients, see state.go.
//
// Functions:
//   - NewConfig: returns a Config populated with defaults so that a partial
//     TOML file only overrides what it names.
package cloud

import (
	"time"

	"google.golang.org/genai"
)

// DefaultSafetySettings leaves every harm category unblocked. Cooking videos
// routinely show knives and raw meat which the default thresholds can flag.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// Storage backends.
const (
	BackendGCS       = "gcs"
	BackendMinIO     = "minio"
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
)

// Logical model names looked up in the model maps.
const (
	DefaultAgentModel  = "creative-flash"
	VisionAgentModel   = "vision-flash"
	DefaultImageModel  = "imagen"
	DefaultSpeechModel = "speech-flash"
)

// BigQueryDataSource names the dataset and table that receive one analytics
// row per finished ingestion run.
type BigQueryDataSource struct {
	DatasetName string `toml:"dataset"`
	RunsTable   string `toml:"runs_table"`
}

// PromptTemplates holds text/template overrides. An empty value keeps the
// compiled-in default prompt.
type PromptTemplates struct {
	ScenePrompt           string `toml:"scene"`
	AggregatePrompt       string `toml:"aggregate"`
	ServingSizePrompt     string `toml:"serving_size"`
	NutritionPrompt       string `toml:"nutrition"`
	StructurePrompt       string `toml:"structure"`
	VerificationPrompt    string `toml:"verification"`
	ManualRecipePrompt    string `toml:"manual_recipe"`
	ManualUpdatePrompt    string `toml:"manual_update"`
	MealImagePrompt       string `toml:"meal_image"`
	IngredientImagePrompt string `toml:"ingredient_image"`
	TranscriptionPrompt   string `toml:"transcription"`
}

// VertexAiLLMModel configures a Gemini model used for text, vision or speech.
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`
	SystemInstructions string  `toml:"system_instructions"`
	Temperature        float32 `toml:"temperature"`
	TopP               float32 `toml:"top_p"`
	TopK               float32 `toml:"top_k"`
	MaxTokens          int32   `toml:"max_tokens"`
	OutputFormat       string  `toml:"output_format"`
	RateLimit          int     `toml:"rate_limit"` // requests per second
}

// VertexAiImageModel configures an Imagen model.
type VertexAiImageModel struct {
	Model       string `toml:"model"`
	AspectRatio string `toml:"aspect_ratio"`
	RateLimit   int    `toml:"rate_limit"`
}

type TopicSubscription struct {
	Name             string `toml:"name"`
	DeadLetterTopic  string `toml:"dead_letter_topic"`
	TimeoutInSeconds int    `toml:"timeout_in_seconds"`
}

type Storage struct {
	Backend       string `toml:"backend"`
	MediaBucket   string `toml:"media_bucket"`
	PublicBaseURL string `toml:"public_base_url"`
}

type MinIO struct {
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	UseSSL          bool   `toml:"use_ssl"`
	Region          string `toml:"region"`
}

type DocumentStoreConfig struct {
	Backend  string `toml:"backend"`
	Database string `toml:"database"`
}

type Cache struct {
	Enabled    bool   `toml:"enabled"`
	RedisAddr  string `toml:"redis_addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// Tools locates the external binaries.
type Tools struct {
	YtDlp             string `toml:"yt_dlp"`
	FFmpeg            string `toml:"ffmpeg"`
	FFprobe           string `toml:"ffprobe"`
	TikTokAPIHostname string `toml:"tiktok_api_hostname"`
}

// Timeouts bounds every external call, in seconds.
type Timeouts struct {
	MetadataSeconds      int `toml:"metadata"`
	DownloadSeconds      int `toml:"download"`
	TranscriptionSeconds int `toml:"transcription"`
	GenerationSeconds    int `toml:"generation"`
	CaptionSeconds       int `toml:"caption"`
	ImageSeconds         int `toml:"image"`
	RenderSeconds        int `toml:"render"`
}

func (t Timeouts) Metadata() time.Duration      { return seconds(t.MetadataSeconds, 120) }
func (t Timeouts) Download() time.Duration      { return seconds(t.DownloadSeconds, 300) }
func (t Timeouts) Transcription() time.Duration { return seconds(t.TranscriptionSeconds, 300) }
func (t Timeouts) Generation() time.Duration    { return seconds(t.GenerationSeconds, 120) }
func (t Timeouts) Caption() time.Duration       { return seconds(t.CaptionSeconds, 30) }
func (t Timeouts) Image() time.Duration         { return seconds(t.ImageSeconds, 120) }
func (t Timeouts) Render() time.Duration        { return seconds(t.RenderSeconds, 300) }

func seconds(v int, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

// SceneDetection tunes shot-boundary detection and the stills sent to the
// vision model. Threshold is on a 0-100 content-difference scale.
type SceneDetection struct {
	Threshold    float64 `toml:"threshold"`
	TargetWidth  int     `toml:"target_width"`
	TargetHeight int     `toml:"target_height"`
	JPEGQuality  int     `toml:"jpeg_quality"`
}

type Slideshow struct {
	Width             int     `toml:"width"`
	Height            int     `toml:"height"`
	SecondsPerImage   float64 `toml:"seconds_per_image"`
	TransitionSeconds float64 `toml:"transition_seconds"`
}

type Pipeline struct {
	VerifyRecipe       bool   `toml:"verify_recipe"`
	StoreVideos        bool   `toml:"store_videos"`
	DefaultServingSize int    `toml:"default_serving_size"`
	IngestionTopic     string `toml:"ingestion_topic"`
	PersistRuns        bool   `toml:"persist_runs"`
}

// Config is the root of the TOML configuration.
type Config struct {
	Application struct {
		Name                      string `toml:"name"`
		GoogleProjectId           string `toml:"google_project_id"`
		GoogleLocation            string `toml:"location"`
		ThreadPoolSize            int    `toml:"thread_pool_size"`
		SignerServiceAccountEmail string `toml:"signer_service_account_email"`
		DefaultUserID             string `toml:"default_user_id"`
	} `toml:"application"`
	Storage            Storage                       `toml:"storage"`
	MinIO              MinIO                         `toml:"minio"`
	DocumentStore      DocumentStoreConfig           `toml:"document_store"`
	BigQueryDataSource BigQueryDataSource            `toml:"big_query_data_source"`
	Cache              Cache                         `toml:"cache"`
	Tools              Tools                         `toml:"tools"`
	Timeouts           Timeouts                      `toml:"timeouts"`
	SceneDetection     SceneDetection                `toml:"scene_detection"`
	Slideshow          Slideshow                     `toml:"slideshow"`
	Pipeline           Pipeline                      `toml:"pipeline"`
	PromptTemplates    PromptTemplates               `toml:"prompt_templates"`
	TopicSubscriptions map[string]TopicSubscription  `toml:"topic_subscriptions"`
	AgentModels        map[string]VertexAiLLMModel   `toml:"agent_models"`
	ImageModels        map[string]VertexAiImageModel `toml:"image_models"`
	SpeechModels       map[string]VertexAiLLMModel   `toml:"speech_models"`
}

// NewConfig returns a Config with its maps allocated and the defaults used
// when a TOML file leaves a value out.
func NewConfig() *Config {
	c := &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		AgentModels:        make(map[string]VertexAiLLMModel),
		ImageModels:        make(map[string]VertexAiImageModel),
		SpeechModels:       make(map[string]VertexAiLLMModel),
	}
	c.Application.ThreadPoolSize = 4
	c.Application.DefaultUserID = "anonymous"
	c.Storage.Backend = BackendGCS
	c.DocumentStore.Backend = BackendFirestore
	c.Cache.TTLSeconds = 3600
	c.Tools = Tools{
		YtDlp:             "yt-dlp",
		FFmpeg:            "ffmpeg",
		FFprobe:           "ffprobe",
		TikTokAPIHostname: "api16-normal-c-useast1a.tiktokv.com",
	}
	c.SceneDetection = SceneDetection{Threshold: 30.0, TargetWidth: 360, TargetHeight: 640, JPEGQuality: 85}
	c.Slideshow = Slideshow{Width: 1080, Height: 1920, SecondsPerImage: 3, TransitionSeconds: 1}
	c.Pipeline.DefaultServingSize = 4
	return c
}
