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

package commands

import (
	goctx "context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-creative-studio/internal/httputil"
)

// GCSReader opens gs:// objects.
type GCSReader interface {
	Open(ctx goctx.Context, obj *cloud.GCSObject) (io.ReadCloser, error)
}

// RemoteToTempFile downloads the locator of the *PersistJob input into a temp
// file registered on the context. http(s) locators use a fresh retrying client
// per call; gs:// locators go through the storage client.
type RemoteToTempFile struct {
	cor.BaseCommand
	gcs            GCSReader
	timeout        time.Duration
	retry          httputil.RetryConfig
	tempFilePrefix string
}

func NewRemoteToTempFile(name string, gcs GCSReader, timeout time.Duration, retry httputil.RetryConfig) *RemoteToTempFile {
	return &RemoteToTempFile{
		BaseCommand:    *cor.NewBaseCommand(name),
		gcs:            gcs,
		timeout:        timeout,
		retry:          retry,
		tempFilePrefix: "asset-",
	}
}

func (c *RemoteToTempFile) Execute(context cor.Context) {
	job, ok := cor.Value[*PersistJob](context, c.GetInputParam())
	if !ok {
		c.Fail(context, errors.New("missing persist job"))
		return
	}

	body, contentType, err := c.open(context, job.Locator)
	if err != nil {
		c.Fail(context, &model.NetworkError{Locator: job.Locator, Err: err})
		return
	}
	defer func() {
		if err := body.Close(); err != nil {
			slog.WarnContext(context.GetContext(), "failed to close download stream", "locator", job.Locator, "error", err)
		}
	}()

	tempFile, err := os.CreateTemp("", c.tempFilePrefix)
	if err != nil {
		c.Fail(context, fmt.Errorf("could not create temp file: %w", err))
		return
	}
	context.AddTempFile(tempFile.Name())

	written, err := io.Copy(tempFile, body)
	_ = tempFile.Close()
	if err != nil {
		c.Fail(context, &model.NetworkError{Locator: job.Locator, Err: fmt.Errorf("download interrupted after %d bytes: %w", written, err)})
		return
	}

	slog.DebugContext(context.GetContext(), "downloaded remote asset", "locator", job.Locator, "file", tempFile.Name(), "bytes", written)
	c.Succeed(context, &DownloadedMedia{
		Job:               job,
		Path:              tempFile.Name(),
		Size:              written,
		HeaderContentType: contentType,
		SourceExt:         locatorExt(job.Locator),
	})
}

func (c *RemoteToTempFile) open(context cor.Context, locator string) (io.ReadCloser, string, error) {
	ctx := context.GetContext()
	if strings.HasPrefix(locator, "gs://") {
		if c.gcs == nil {
			return nil, "", errors.New("storage client not configured for gs:// locators")
		}
		obj, err := cloud.ParseGCSURI(locator)
		if err != nil {
			return nil, "", err
		}
		r, err := c.gcs.Open(ctx, obj)
		return r, "", err
	}

	u, err := url.Parse(locator)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, "", fmt.Errorf("unsupported locator %q", locator)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, "", err
	}
	client := httputil.NewAttemptClient(c.timeout, c.retry)
	resp, err := client.Do(req)
	if err != nil {
		client.Close()
		return nil, "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		client.Close()
		return nil, "", fmt.Errorf("download returned status %d", resp.StatusCode)
	}
	return &closingBody{ReadCloser: resp.Body, client: client}, resp.Header.Get("Content-Type"), nil
}

type closingBody struct {
	io.ReadCloser
	client *httputil.RetryClient
}

func (b *closingBody) Close() error {
	err := b.ReadCloser.Close()
	b.client.Close()
	return err
}

func locatorExt(locator string) string {
	u, err := url.Parse(locator)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
}
