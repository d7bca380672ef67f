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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
)

// SubtitleTrack is one entry of yt-dlp's subtitles map.
type SubtitleTrack struct {
	URL  string `json:"url"`
	Ext  string `json:"ext"`
	Name string `json:"name,omitempty"`
}

// RawMetadata is the subset of `yt-dlp -J` output the pipeline reads.
type RawMetadata struct {
	ID                string                     `json:"id"`
	Title             string                     `json:"title"`
	Description       string                     `json:"description"`
	Duration          float64                    `json:"duration"`
	Uploader          string                     `json:"uploader"`
	ViewCount         int64                      `json:"view_count"`
	LikeCount         int64                      `json:"like_count"`
	CommentCount      int64                      `json:"comment_count"`
	Thumbnail         string                     `json:"thumbnail"`
	WebpageURL        string                     `json:"webpage_url"`
	Ext               string                     `json:"ext"`
	Subtitles         map[string][]SubtitleTrack `json:"subtitles"`
	AutomaticCaptions map[string][]SubtitleTrack `json:"automatic_captions"`
}

// CaptionURL picks the caption track to fetch: "eng-US" first, then any
// other English track in key order, preferring vtt within a language.
// Manual subtitles win over automatic captions.
func (m *RawMetadata) CaptionURL() string {
	for _, tracks := range []map[string][]SubtitleTrack{m.Subtitles, m.AutomaticCaptions} {
		if u := pickTrack(tracks["eng-US"]); len(u) > 0 {
			return u
		}
		keys := make([]string, 0, len(tracks))
		for k := range tracks {
			if strings.HasPrefix(strings.ToLower(k), "en") {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			if u := pickTrack(tracks[k]); len(u) > 0 {
				return u
			}
		}
	}
	return ""
}

func pickTrack(tracks []SubtitleTrack) string {
	for _, t := range tracks {
		if t.Ext == "vtt" && len(t.URL) > 0 {
			return t.URL
		}
	}
	for _, t := range tracks {
		if len(t.URL) > 0 {
			return t.URL
		}
	}
	return ""
}

// ToMetadata converts the raw record into the platform-independent shape.
// sourceURL is used when yt-dlp reports no webpage URL.
func (m *RawMetadata) ToMetadata(platform model.Platform, sourceURL string, subtitles string) *model.VideoMetadata {
	webpage := m.WebpageURL
	if len(webpage) == 0 {
		webpage = sourceURL
	}
	return &model.VideoMetadata{
		Title:        m.Title,
		Description:  m.Description,
		Duration:     m.Duration,
		Uploader:     m.Uploader,
		ViewCount:    m.ViewCount,
		LikeCount:    m.LikeCount,
		CommentCount: m.CommentCount,
		SubtitleText: subtitles,
		Thumbnail:    m.Thumbnail,
		WebpageURL:   webpage,
		Platform:     platform,
	}
}

// VideoSource retrieves metadata and media for a video URL.
type VideoSource interface {
	FetchMetadata(ctx context.Context, url string, platform model.Platform) (*RawMetadata, error)
	// DownloadVideo saves the best mp4 rendition into dir and returns its path.
	DownloadVideo(ctx context.Context, url string, platform model.Platform, dir string) (string, error)
	// DownloadAudio saves the audio track as mp3 into dir and returns its path.
	DownloadAudio(ctx context.Context, url string, platform model.Platform, dir string) (string, error)
}

// YtDlp implements VideoSource with the yt-dlp binary.
type YtDlp struct {
	Binary            string
	TikTokAPIHostname string
}

func NewYtDlp(binary string, tiktokAPIHostname string) *YtDlp {
	if len(binary) == 0 {
		binary = "yt-dlp"
	}
	return &YtDlp{Binary: binary, TikTokAPIHostname: tiktokAPIHostname}
}

// PlatformArgs returns the per-platform extractor options: a flat listing
// for YouTube, the best single-file format for TikTok and Instagram, and the
// mobile API host for TikTok.
func (y *YtDlp) PlatformArgs(platform model.Platform) []string {
	switch platform {
	case model.PlatformYouTube:
		return []string{"--flat-playlist"}
	case model.PlatformTikTok:
		args := []string{"-f", "best"}
		if len(y.TikTokAPIHostname) > 0 {
			args = append(args, "--extractor-args", "tiktok:api_hostname="+y.TikTokAPIHostname)
		}
		return args
	case model.PlatformInstagram:
		return []string{"-f", "best"}
	}
	return nil
}

// FetchMetadata dumps the metadata of url. URLs outside the known platforms
// fail with ErrUnsupportedPlatform before yt-dlp runs.
func (y *YtDlp) FetchMetadata(ctx context.Context, url string, platform model.Platform) (*RawMetadata, error) {
	if platform == model.PlatformUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, url)
	}
	args := append([]string{"-J", "--skip-download", "--no-warnings", "--no-playlist"}, y.PlatformArgs(platform)...)
	args = append(args, url)
	stdout, _, err := run(ctx, y.Binary, args...)
	if err != nil {
		return nil, err
	}
	if len(stdout) == 0 {
		return nil, errors.New("yt-dlp returned empty output")
	}
	raw := &RawMetadata{}
	if err := json.Unmarshal(stdout, raw); err != nil {
		return nil, fmt.Errorf("failed to decode yt-dlp output: %w", err)
	}
	return raw, nil
}

func (y *YtDlp) downloadArgs(platform model.Platform) []string {
	if platform == model.PlatformTikTok && len(y.TikTokAPIHostname) > 0 {
		return []string{"--extractor-args", "tiktok:api_hostname=" + y.TikTokAPIHostname}
	}
	return nil
}

func (y *YtDlp) DownloadVideo(ctx context.Context, url string, platform model.Platform, dir string) (string, error) {
	args := []string{"--no-playlist", "--no-warnings", "-f", "best[ext=mp4]/best", "-o", filepath.Join(dir, "%(id)s.%(ext)s")}
	args = append(args, y.downloadArgs(platform)...)
	args = append(args, url)
	if _, _, err := run(ctx, y.Binary, args...); err != nil {
		return "", err
	}
	return findOutput(dir)
}

func (y *YtDlp) DownloadAudio(ctx context.Context, url string, platform model.Platform, dir string) (string, error) {
	args := []string{
		"--no-playlist", "--no-warnings",
		"-f", "bestaudio/best",
		"-x", "--audio-format", "mp3", "--audio-quality", "192K",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
	}
	args = append(args, y.downloadArgs(platform)...)
	args = append(args, url)
	if _, _, err := run(ctx, y.Binary, args...); err != nil {
		return "", err
	}
	return findOutput(dir, ".mp3")
}

// findOutput returns the largest finished file in dir, optionally limited to
// the given extensions. Partial downloads are ignored.
func findOutput(dir string, exts ...string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var best string
	var bestSize int64 = -1
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".part") || strings.HasSuffix(e.Name(), ".ytdl") {
			continue
		}
		if len(exts) > 0 && !hasExt(e.Name(), exts) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best = filepath.Join(dir, e.Name())
			bestSize = info.Size()
		}
	}
	if len(best) == 0 {
		return "", fmt.Errorf("no downloaded file found in %s", dir)
	}
	return best, nil
}

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
