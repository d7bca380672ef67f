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

// This file defines the blob storage contract used for re-hosted videos,
// generated images and rendered slideshows, and its Cloud Storage
// implementation.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
)

// ErrBlobNotFound is returned by Download and SignedURL for a missing object.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore uploads bytes and hands back a URL clients can read.
type BlobStore interface {
	// Upload writes r to name and returns the object's public URL.
	Upload(ctx context.Context, name string, r io.Reader, contentType string) (string, error)
	// Download copies the object to w.
	Download(ctx context.Context, name string, w io.Writer) error
	// SignedURL returns a time-limited read URL for the object.
	SignedURL(ctx context.Context, name string, expires time.Duration) (string, error)
}

// ObjectNameFromURL returns the object name of a URL produced by a store
// whose public base is baseURL, or "" when the URL is not under it.
func ObjectNameFromURL(baseURL string, url string) string {
	prefix := strings.TrimSuffix(baseURL, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}

// GCSBlobStore stores objects in one Cloud Storage bucket. URLs are signed
// through the IAM Credentials API so no local key is needed.
type GCSBlobStore struct {
	client      *storage.Client
	iam         *credentials.IamCredentialsClient
	bucket      string
	signerEmail string
	baseURL     string
}

func NewGCSBlobStore(client *storage.Client, iam *credentials.IamCredentialsClient, bucket string, signerEmail string, publicBaseURL string) *GCSBlobStore {
	if len(publicBaseURL) == 0 {
		publicBaseURL = fmt.Sprintf("https://storage.googleapis.com/%s", bucket)
	}
	return &GCSBlobStore{
		client:      client,
		iam:         iam,
		bucket:      bucket,
		signerEmail: signerEmail,
		baseURL:     strings.TrimSuffix(publicBaseURL, "/"),
	}
}

func (s *GCSBlobStore) Upload(ctx context.Context, name string, r io.Reader, contentType string) (string, error) {
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write gs://%s/%s: %w", s.bucket, name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize gs://%s/%s: %w", s.bucket, name, err)
	}
	return s.baseURL + "/" + name, nil
}

func (s *GCSBlobStore) Download(ctx context.Context, name string, w io.Writer) error {
	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", ErrBlobNotFound, name)
		}
		return err
	}
	defer r.Close()
	_, err = io.Copy(w, r)
	return err
}

func (s *GCSBlobStore) SignedURL(ctx context.Context, name string, expires time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expires),
	}
	if s.iam != nil && len(s.signerEmail) > 0 {
		opts.GoogleAccessID = s.signerEmail
		opts.SignBytes = func(b []byte) ([]byte, error) {
			req := &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.signerEmail),
				Payload: b,
			}
			resp, err := s.iam.SignBlob(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		}
	}
	u, err := s.client.Bucket(s.bucket).SignedURL(name, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).SignedURL(%q): %w", s.bucket, name, err)
	}
	return u, nil
}
