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

// Package media wraps the external video tooling the pipelines depend on:
// yt-dlp for metadata and downloads, ffprobe and ffmpeg for scene detection,
// frame grabs and slideshow rendering. It also holds the pure helpers around
// them (platform classification, WebVTT parsing, frame resizing, scene
// boundaries, filename sanitizing and scratch directories).
package media

import (
	"errors"
	"net/url"
	"strings"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
)

// ErrUnsupportedPlatform is returned for URLs outside the known platforms.
var ErrUnsupportedPlatform = errors.New("unsupported video platform")

// ClassifyPlatform maps a video URL to its source platform by hostname.
func ClassifyPlatform(rawURL string) model.Platform {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return model.PlatformUnknown
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case hostIs(host, "tiktok.com"):
		return model.PlatformTikTok
	case hostIs(host, "youtube.com"), hostIs(host, "youtu.be"):
		return model.PlatformYouTube
	case hostIs(host, "instagram.com"):
		return model.PlatformInstagram
	}
	return model.PlatformUnknown
}

// hostIs matches domain itself and any of its subdomains (www., m., vm.).
func hostIs(host string, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
