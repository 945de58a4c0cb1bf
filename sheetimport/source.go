package sheetimport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/mmdatafocus/po_import/fieldschema"
)

// OpenGCS streams an uploaded sheet from a bucket.
func OpenGCS(ctx context.Context, client *storage.Client, bucket, object string) (io.ReadCloser, error) {
	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs object gs://%s/%s: %w", bucket, object, err)
	}
	return rc, nil
}

// Read picks the csv or xlsx reader from the name's extension.
func Read(name string, r io.Reader, schema *fieldschema.Schema, opts Options) (Result, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r, schema, opts)
	case ".csv":
		return ReadCSV(r, schema, opts)
	}
	return Result{}, fmt.Errorf("invalid file type %q: only .xlsx and .csv files are allowed", filepath.Ext(name))
}

func ReadFile(path string, schema *fieldschema.Schema, opts Options) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	return Read(path, f, schema, opts)
}
