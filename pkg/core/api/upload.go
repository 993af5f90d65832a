/*
 * Copyright 2025 CamGrid Systems.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/camgrid/shuttersync/pkg/logger"
)

const maxUploadBytes = 32 << 20

var (
	errMissingImage = errors.New("missing image field")
	errBadFilename  = errors.New("invalid filename")
)

// ArtifactStore saves uploaded capture artifacts under one directory.
type ArtifactStore struct {
	dir    string
	logger logger.Logger
}

// NewArtifactStore creates the store, creating the directory if needed.
func NewArtifactStore(dir string, log logger.Logger) (*ArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return &ArtifactStore{dir: dir, logger: log}, nil
}

// Dir returns the storage directory.
func (a *ArtifactStore) Dir() string {
	return a.dir
}

// Save extracts the image from a multipart request and writes it under the
// store directory, keyed by the client-supplied filename.
func (a *ArtifactStore) Save(r *http.Request) (filename, path string, err error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", "", err
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return "", "", errMissingImage
	}
	defer func() { _ = file.Close() }()

	filename = filepath.Base(header.Filename)
	if filename == "." || filename == string(filepath.Separator) || filename == "" {
		return "", "", errBadFilename
	}

	path = filepath.Join(a.dir, filename)

	dst, err := os.Create(path)
	if err != nil {
		return "", "", err
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, file); err != nil {
		return "", "", err
	}

	a.logger.Info().Str("filename", filename).Str("path", path).Msg("Artifact stored")

	return filename, path, nil
}
