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

package services

import (
	"context"
	"time"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
)

// StreamURLExpiry is how long a stream URL stays valid.
const StreamURLExpiry = 15 * time.Minute

// VideoService serves Video entities to the API.
type VideoService struct {
	Videos *VideoRepository
	Blobs  cloud.BlobStore
}

func NewVideoService(videos *VideoRepository, blobs cloud.BlobStore) *VideoService {
	return &VideoService{Videos: videos, Blobs: blobs}
}

func (s *VideoService) Get(ctx context.Context, id string) (*model.Video, error) {
	return s.Videos.Get(ctx, id)
}

// StreamURL returns a time-limited URL for a video stored by the pipeline.
// A video that was never re-hosted streams from its source URL.
func (s *VideoService) StreamURL(ctx context.Context, id string) (string, error) {
	video, err := s.Videos.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if len(video.ObjectName) == 0 {
		return video.VideoURL, nil
	}
	return s.Blobs.SignedURL(ctx, video.ObjectName, StreamURLExpiry)
}
