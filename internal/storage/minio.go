// Package storage archives analysis results in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/testforge/smartfill/internal/config"
	"github.com/testforge/smartfill/internal/domain"
)

// MinIOClient wraps the MinIO client
type MinIOClient struct {
	client     *minio.Client
	bucketName string
	prefix     string
}

// NewMinIOClient creates a new MinIO client
func NewMinIOClient(cfg config.StorageConfig) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	return &MinIOClient{
		client:     client,
		bucketName: cfg.Bucket,
		prefix:     strings.Trim(cfg.AnalysisDir, "/"),
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil {
		return fmt.Errorf("checking bucket existence: %w", err)
	}

	if !exists {
		err = m.client.MakeBucket(ctx, m.bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("creating bucket: %w", err)
		}
	}

	return nil
}

// AnalysisKey returns the object key for an analysis, grouped by day.
func (m *MinIOClient) AnalysisKey(result *domain.AnalysisResult) string {
	return AnalysisKey(m.prefix, result)
}

// AnalysisKey builds "<prefix>/<yyyy-mm-dd>/<id>.json".
func AnalysisKey(prefix string, result *domain.AnalysisResult) string {
	day := result.AnalyzedAt.UTC().Format("2006-01-02")
	return path.Join(prefix, day, result.ID+".json")
}

// ArchiveAnalysis stores result as JSON and returns its S3 URI.
func (m *MinIOClient) ArchiveAnalysis(ctx context.Context, result *domain.AnalysisResult) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encoding analysis: %w", err)
	}
	return m.Upload(ctx, m.AnalysisKey(result), data, "application/json")
}

// LoadAnalysis reads an archived analysis back.
func (m *MinIOClient) LoadAnalysis(ctx context.Context, key string) (*domain.AnalysisResult, error) {
	data, err := m.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	var result domain.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding analysis %s: %w", key, err)
	}
	return &result, nil
}

// Upload uploads any file to MinIO
func (m *MinIOClient) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	reader := bytes.NewReader(data)

	_, err := m.client.PutObject(ctx, m.bucketName, key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("uploading object: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", m.bucketName, key), nil
}

// Download downloads a file from MinIO
func (m *MinIOClient) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting object: %w", err)
	}
	defer obj.Close()

	return io.ReadAll(obj)
}

// ListAnalyses lists archived analysis keys for one day ("2006-01-02"),
// or all days when day is empty.
func (m *MinIOClient) ListAnalyses(ctx context.Context, day string) ([]string, error) {
	var keys []string

	prefix := m.prefix + "/"
	if day != "" {
		prefix = path.Join(m.prefix, day) + "/"
	}

	objectCh := m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	for object := range objectCh {
		if object.Err != nil {
			return nil, object.Err
		}
		keys = append(keys, object.Key)
	}

	return keys, nil
}
