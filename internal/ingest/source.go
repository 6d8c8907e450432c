// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/docsort-dev/docsort/internal/document"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// MaxDocumentBytes is the largest document a source may return.
const MaxDocumentBytes = 50 << 20

const gcsScheme = "gs://"

// ObjectFetcher reads a whole object from a bucket.
type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket, object string) ([]byte, error)
}

// GCSFetcher reads objects from Google Cloud Storage with application
// default credentials.
type GCSFetcher struct{}

// Fetch downloads bucket/object.
func (GCSFetcher) Fetch(ctx context.Context, bucket, object string) ([]byte, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeIngestSourceFailure, "create storage client")
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, dserr.Wrap(err, dserr.CodeIngestSourceNotFound, "gcs object not found",
				dserr.Field("uri", gcsScheme+bucket+"/"+object))
		}
		return nil, dserr.Wrap(err, dserr.CodeIngestSourceFailure, "open GCS object reader")
	}
	defer r.Close()

	return readLimited(r, gcsScheme+bucket+"/"+object)
}

// Loader reads documents from local paths and gs:// URIs.
type Loader struct {
	objects ObjectFetcher
}

// NewLoader creates a Loader. A nil fetcher uses GCSFetcher.
func NewLoader(objects ObjectFetcher) *Loader {
	if objects == nil {
		objects = GCSFetcher{}
	}
	return &Loader{objects: objects}
}

// Load reads the document at location. The returned input carries the
// base file name; its source is left for the caller to set.
func (l *Loader) Load(ctx context.Context, location string) (Input, error) {
	if strings.HasPrefix(location, gcsScheme) {
		bucket, object, err := ParseGCSURI(location)
		if err != nil {
			return Input{}, err
		}
		data, err := l.objects.Fetch(ctx, bucket, object)
		if err != nil {
			return Input{}, err
		}
		return Input{Filename: path.Base(object), Data: data}, nil
	}

	data, err := readFile(location)
	if err != nil {
		return Input{}, err
	}
	return Input{Filename: filepath.Base(location), Data: data}, nil
}

// ParseGCSURI splits gs://bucket/object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, gcsScheme)
	if !ok {
		return "", "", dserr.Errorf(dserr.CodeDocumentInputInvalid, "not a gs:// URI: %q", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return "", "", dserr.Errorf(dserr.CodeDocumentInputInvalid, "gs:// URI needs a bucket and an object: %q", uri)
	}
	return bucket, object, nil
}

// SourceFor guesses the source of a loaded file: text files count as
// digital, everything else as a scan.
func SourceFor(filename string) document.Source {
	if document.IsPlainText(document.DocumentType(filename)) {
		return document.SourceDigital
	}
	return document.SourceScan
}

func readFile(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, dserr.Wrap(err, dserr.CodeIngestSourceNotFound, "file not found", dserr.Field("path", name))
		}
		return nil, dserr.Wrap(err, dserr.CodeIngestSourceFailure, "open file", dserr.Field("path", name))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeIngestSourceFailure, "stat file", dserr.Field("path", name))
	}
	if info.IsDir() {
		return nil, dserr.Errorf(dserr.CodeDocumentInputInvalid, "%s is a directory", name)
	}
	return readLimited(f, name)
}

func readLimited(r io.Reader, name string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentBytes+1))
	if err != nil {
		return nil, dserr.Wrap(err, dserr.CodeIngestSourceFailure, fmt.Sprintf("read %s", name))
	}
	if len(data) > MaxDocumentBytes {
		return nil, dserr.Errorf(dserr.CodeDocumentInputInvalid, "%s exceeds %d bytes", name, MaxDocumentBytes)
	}
	return data, nil
}
