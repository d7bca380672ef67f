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
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOBlobStore is the S3-compatible BlobStore used for local and
// on-premises deployments.
type MinIOBlobStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinIOClient builds a client with static v4 credentials.
func NewMinIOClient(cfg MinIO) (*minio.Client, error) {
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
}

// NewMinIOBlobStore uses publicBaseURL for returned URLs, or the endpoint
// URL of the bucket when it is empty.
func NewMinIOBlobStore(client *minio.Client, bucket string, publicBaseURL string) *MinIOBlobStore {
	if len(publicBaseURL) == 0 {
		publicBaseURL = client.EndpointURL().String() + "/" + bucket
	}
	return &MinIOBlobStore{client: client, bucket: bucket, baseURL: strings.TrimSuffix(publicBaseURL, "/")}
}

// Upload streams r with an unknown size; minio-go buffers it into a
// multipart upload.
func (s *MinIOBlobStore) Upload(ctx context.Context, name string, r io.Reader, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, name, r, -1, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to %s: %w", name, s.bucket, err)
	}
	return s.baseURL + "/" + name, nil
}

func (s *MinIOBlobStore) Download(ctx context.Context, name string, w io.Writer) error {
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()
	if _, err := io.Copy(w, obj); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("%w: %s", ErrBlobNotFound, name)
		}
		return err
	}
	return nil
}

func (s *MinIOBlobStore) SignedURL(ctx context.Context, name string, expires time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, name, expires, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
