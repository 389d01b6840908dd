// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ErrInvalidGCSURL is returned by ParseGCSURL.
var ErrInvalidGCSURL = errors.New("invalid GCS URL (want gs://bucket/object)")

// ParseGCSURL splits gs://bucket/path/to/object. A trailing slash or an
// empty object path leaves object empty, letting the caller choose a name.
func ParseGCSURL(raw string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(raw, "gs://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidGCSURL, raw)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidGCSURL, raw)
	}
	return bucket, object, nil
}

// Uploader publishes reports to a Google Cloud Storage bucket.
type Uploader struct {
	client *storage.Client
	bucket string
}

// NewUploader creates a GCS client for bucket.
//
// When credentialsFile is empty, Application Default Credentials are used.
func NewUploader(ctx context.Context, bucket, credentialsFile string) (*Uploader, error) {
	if bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		info, err := os.Stat(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("service account key not found at path: %s: %w", credentialsFile, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("service account key path is a directory: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &Uploader{client: client, bucket: bucket}, nil
}

// Upload writes data to object and returns its gs:// URL.
func (u *Uploader) Upload(ctx context.Context, object, contentType string, data []byte) (string, error) {
	if object == "" {
		return "", errors.New("object name is required")
	}
	w := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write GCS object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer for %s: %w", object, err)
	}
	return fmt.Sprintf("gs://%s/%s", u.bucket, object), nil
}

// Close releases the client.
func (u *Uploader) Close() error {
	return u.client.Close()
}
