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

// This file implements the first ingestion step: platform metadata, caption
// text and the optional re-hosting of the source video.
//
// Logic Flow:
//  1. The URL is classified by host. Unknown platforms return empty metadata
//     without calling any tool.
//  2. yt-dlp reports the metadata as JSON, with per-platform extractor flags.
//  3. When an English caption track is listed, it is fetched over HTTP and
//     reduced to plain text. A caption failure only empties the subtitles.
//  4. DownloadAndStore copies the best mp4 rendition into blob storage under
//     a sanitized, collision resistant name. The scratch directory is removed
//     on every path.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/media"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxCaptionBytes bounds a caption download.
const maxCaptionBytes = 4 << 20

// CaptionFetcher returns the raw body of a caption track.
type CaptionFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPCaptionFetcher fetches caption tracks with a traced HTTP client.
type HTTPCaptionFetcher struct {
	client *http.Client
}

func NewHTTPCaptionFetcher() *HTTPCaptionFetcher {
	return &HTTPCaptionFetcher{client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}}
}

func (f *HTTPCaptionFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("caption fetch returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCaptionBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// StoredObject is a blob written by the pipeline.
type StoredObject struct {
	Name string
	URL  string
}

type MetadataExtractor struct {
	source   media.VideoSource
	captions CaptionFetcher
	blobs    cloud.BlobStore
	timeouts cloud.Timeouts
}

func NewMetadataExtractor(source media.VideoSource, captions CaptionFetcher, blobs cloud.BlobStore, timeouts cloud.Timeouts) *MetadataExtractor {
	return &MetadataExtractor{source: source, captions: captions, blobs: blobs, timeouts: timeouts}
}

// Extract returns the metadata of url. An unsupported platform yields
// Ok(nil): no metadata and no error.
func (e *MetadataExtractor) Extract(ctx context.Context, url string) model.Result[*model.VideoMetadata] {
	platform := media.ClassifyPlatform(url)
	if platform == model.PlatformUnknown {
		slog.InfoContext(ctx, "skipping metadata for unsupported platform", "video_url", url)
		return model.Ok[*model.VideoMetadata](nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeouts.Metadata())
	defer cancel()
	raw, err := e.source.FetchMetadata(callCtx, url, platform)
	if err != nil {
		slog.WarnContext(ctx, "metadata extraction failed", "video_url", url, "platform", platform, "error", err)
		return model.Fail[*model.VideoMetadata](fmt.Errorf("metadata extraction failed: %w", err))
	}

	return model.Ok(raw.ToMetadata(platform, url, e.subtitles(ctx, raw)))
}

func (e *MetadataExtractor) subtitles(ctx context.Context, raw *media.RawMetadata) string {
	captionURL := raw.CaptionURL()
	if len(captionURL) == 0 || e.captions == nil {
		return ""
	}
	callCtx, cancel := context.WithTimeout(ctx, e.timeouts.Caption())
	defer cancel()
	doc, err := e.captions.Fetch(callCtx, captionURL)
	if err != nil {
		slog.WarnContext(ctx, "caption fetch failed", "error", err)
		return ""
	}
	return media.ParseVTT(doc)
}

// DownloadAndStore re-hosts the video in blob storage. The title of
// metadata, when present, names the object.
func (e *MetadataExtractor) DownloadAndStore(ctx context.Context, url string, metadata *model.VideoMetadata) model.Result[*StoredObject] {
	platform := media.ClassifyPlatform(url)
	scratch, err := media.NewScratchDir("video-download")
	if err != nil {
		return model.Fail[*StoredObject](err)
	}
	defer func() {
		if rErr := scratch.Remove(); rErr != nil {
			slog.WarnContext(ctx, "failed to remove scratch directory", "path", scratch.Path, "error", rErr)
		}
	}()

	downloadCtx, cancel := context.WithTimeout(ctx, e.timeouts.Download())
	defer cancel()
	path, err := e.source.DownloadVideo(downloadCtx, url, platform, scratch.Path)
	if err != nil {
		return model.Fail[*StoredObject](fmt.Errorf("video download failed: %w", err))
	}

	f, err := os.Open(path)
	if err != nil {
		return model.Fail[*StoredObject](err)
	}
	defer f.Close()

	head := make([]byte, 261)
	n, _ := io.ReadFull(f, head)
	contentType := cloud.SniffContentType(head[:n], "video/mp4")
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return model.Fail[*StoredObject](err)
	}

	title := ""
	if metadata != nil {
		title = metadata.Title
	}
	ext := filepath.Ext(path)
	if len(ext) == 0 {
		ext = "." + cloud.ExtensionFor(contentType)
	}
	name := media.ObjectName("videos", title, ext)
	publicURL, err := e.blobs.Upload(downloadCtx, name, f, contentType)
	if err != nil {
		return model.Fail[*StoredObject](fmt.Errorf("video upload failed: %w", err))
	}
	slog.InfoContext(ctx, "video stored", "video_url", url, "object", name)
	return model.Ok(&StoredObject{Name: name, URL: publicURL})
}
