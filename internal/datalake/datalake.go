package datalake

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"

	"github.com/dvloznov/retail-etl/internal/config"
)

// ArchiveStore is the interface for the raw-file archive. Source CSVs are
// archived before processing so every pipeline run can be replayed from the
// exact bytes it ingested.
type ArchiveStore interface {
	// ArchiveFile uploads a local file under a date-partitioned object name
	// and returns the resulting URI.
	ArchiveFile(ctx context.Context, localPath string) (string, error)

	// Fetch downloads file bytes from the given storage URI.
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// GCSStore is the concrete ArchiveStore backed by Google Cloud Storage.
// It assumes Application Default Credentials are configured.
type GCSStore struct {
	bucket string
	now    func() time.Time
	log    zerolog.Logger
}

func NewGCSStore(cfg config.GCPConfig, log zerolog.Logger) *GCSStore {
	return &GCSStore{bucket: cfg.BucketName, now: time.Now, log: log}
}

func (s *GCSStore) ArchiveFile(ctx context.Context, localPath string) (string, error) {
	object := ObjectName(s.now(), filepath.Base(localPath))
	if err := UploadFile(ctx, s.bucket, object, localPath); err != nil {
		return "", err
	}

	uri := fmt.Sprintf("gs://%s/%s", s.bucket, object)
	s.log.Info().Str("uri", uri).Msg("Archived raw source file")
	return uri, nil
}

func (s *GCSStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return FetchFromURI(ctx, uri)
}

// ObjectName builds the date-partitioned archive path for a source file,
// e.g. raw/2023/01/02/online_retail.csv.
func ObjectName(t time.Time, filename string) string {
	return fmt.Sprintf("raw/%s/%s", t.UTC().Format("2006/01/02"), filename)
}

// UploadFile uploads a local file to a GCS bucket under the given object name.
func UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy file to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}

	return nil
}

// FetchFromURI downloads the file bytes from the given gs:// URI.
func FetchFromURI(ctx context.Context, uri string) ([]byte, error) {
	bucketName, objectPath, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetchFromURI: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetchFromURI: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("fetchFromURI: reading bytes: %w", err)
	}

	return data, nil
}

// ParseURI splits a gs://bucket/object URI into its bucket and object path.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}

	return parts[0], parts[1], nil
}

// ExtractFilename extracts the filename from a gs:// URI,
// e.g. "gs://bucket/folder/file.csv" → "file.csv".
func ExtractFilename(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}
