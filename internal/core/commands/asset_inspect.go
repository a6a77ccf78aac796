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
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"strings"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
)

const (
	defaultContentType = "video/mp4"
	defaultExt         = "mp4"
	sniffLength        = 261
)

// AssetInspect rejects empty downloads and resolves the content type: the sniffed
// magic bytes win, then the source Content-Type header, then the locator
// extension, then video/mp4.
type AssetInspect struct {
	cor.BaseCommand
}

func NewAssetInspect(name string) *AssetInspect {
	return &AssetInspect{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *AssetInspect) Execute(context cor.Context) {
	media, ok := cor.Value[*DownloadedMedia](context, c.GetInputParam())
	if !ok {
		c.Fail(context, errors.New("missing downloaded media"))
		return
	}
	if media.Size == 0 {
		c.Fail(context, &model.NetworkError{Locator: media.Job.Locator, Err: model.ErrEmptyPayload})
		return
	}

	head, err := readHead(media.Path)
	if err != nil {
		c.Fail(context, fmt.Errorf("failed to inspect %s: %w", media.Path, err))
		return
	}
	media.ContentType, media.Ext = ResolveContentType(head, media.HeaderContentType, media.SourceExt)
	c.Succeed(context, media)
}

// ResolveContentType returns the content type and file extension for a payload.
func ResolveContentType(head []byte, headerType, sourceExt string) (string, string) {
	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value, kind.Extension
	}
	if mediaType, _, err := mime.ParseMediaType(headerType); err == nil && isMediaType(mediaType) {
		return mediaType, extFor(mediaType, sourceExt)
	}
	if sourceExt != "" {
		if byExt := mime.TypeByExtension("." + sourceExt); byExt != "" {
			mediaType, _, _ := mime.ParseMediaType(byExt)
			if isMediaType(mediaType) {
				return mediaType, sourceExt
			}
		}
	}
	return defaultContentType, defaultExt
}

func isMediaType(mediaType string) bool {
	return strings.HasPrefix(mediaType, "video/") || strings.HasPrefix(mediaType, "image/") || strings.HasPrefix(mediaType, "audio/")
}

func extFor(mediaType, sourceExt string) string {
	if sourceExt != "" {
		return sourceExt
	}
	if kind := filetype.GetType(subtypeExt(mediaType)); kind != filetype.Unknown {
		return kind.Extension
	}
	return defaultExt
}

// subtypeExt maps video/webm to webm, video/quicktime to mov and so on.
func subtypeExt(mediaType string) string {
	switch mediaType {
	case "video/quicktime":
		return "mov"
	case "image/jpeg":
		return "jpg"
	}
	_, sub, _ := strings.Cut(mediaType, "/")
	return sub
}

func readHead(file string) ([]byte, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return head[:n], nil
}
