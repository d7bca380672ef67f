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

package cloud_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	zassert "github.com/zeebo/assert"
)

func TestMemoryBlobStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := cloud.NewMemoryBlobStore("https://media.example.com/")

	url, err := store.Upload(ctx, "videos/pancakes_1a2b3c4d.mp4", strings.NewReader("frames"), "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, "https://media.example.com/videos/pancakes_1a2b3c4d.mp4", url)
	assert.Equal(t, "videos/pancakes_1a2b3c4d.mp4", cloud.ObjectNameFromURL("https://media.example.com", url))

	var buf bytes.Buffer
	require.NoError(t, store.Download(ctx, "videos/pancakes_1a2b3c4d.mp4", &buf))
	assert.Equal(t, "frames", buf.String())

	data, contentType, ok := store.Object("videos/pancakes_1a2b3c4d.mp4")
	zassert.True(t, ok)
	zassert.Equal(t, "video/mp4", contentType)
	zassert.Equal(t, "frames", string(data))

	signed, err := store.SignedURL(ctx, "videos/pancakes_1a2b3c4d.mp4", 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed, url+"?expires="))
}

func TestMemoryBlobStoreMissingObject(t *testing.T) {
	ctx := context.Background()
	store := cloud.NewMemoryBlobStore("")

	err := store.Download(ctx, "missing", &bytes.Buffer{})
	assert.ErrorIs(t, err, cloud.ErrBlobNotFound)

	_, err = store.SignedURL(ctx, "missing", time.Minute)
	assert.ErrorIs(t, err, cloud.ErrBlobNotFound)
}

func TestObjectNameFromForeignURL(t *testing.T) {
	assert.Empty(t, cloud.ObjectNameFromURL("https://storage.googleapis.com/media", "https://www.tiktok.com/@chef/video/1"))
}

func TestSniffContentType(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	assert.Equal(t, "image/png", cloud.SniffContentType(png, "application/octet-stream"))
	assert.Equal(t, "application/octet-stream", cloud.SniffContentType([]byte("plain"), "application/octet-stream"))
	assert.Equal(t, "png", cloud.ExtensionFor("image/png"))
	assert.Equal(t, "jpg", cloud.ExtensionFor("image/jpeg"))
	assert.Equal(t, "mp4", cloud.ExtensionFor("video/mp4"))
	assert.Equal(t, "webm", cloud.ExtensionFor("video/webm"))
	assert.Equal(t, "gif", cloud.ExtensionFor("image/gif"))
	assert.Equal(t, "bin", cloud.ExtensionFor("application/x-unheard-of"))
}

func TestCacheKeyIsStableAndModelScoped(t *testing.T) {
	a := cloud.CacheKey("gemini", "prompt")
	assert.Equal(t, a, cloud.CacheKey("gemini", "prompt"))
	assert.NotEqual(t, a, cloud.CacheKey("other", "prompt"))
	assert.True(t, strings.HasPrefix(a, "genai:"))
	assert.Len(t, a, len("genai:")+64)
}
