// Package publish uploads run outputs to an S3-compatible bucket.
package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the subset of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds construction parameters. Credentials come from the default
// AWS chain.
type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // optional; enables a custom endpoint (e.g. MinIO)
	PathStyle bool
}

// Publisher uploads files under bucket/prefix/runID/.
type Publisher struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// New creates a publisher backed by the AWS SDK.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient creates a publisher around an existing client.
func NewWithClient(client PutObjectAPI, bucket, prefix string) *Publisher {
	return &Publisher{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for a file relative to the run.
func (p *Publisher) Key(runID, rel string) string {
	parts := []string{runID, filepath.ToSlash(rel)}
	if p.prefix != "" {
		parts = append([]string{p.prefix}, parts...)
	}
	return path.Join(parts...)
}

// Upload puts one local file at key.
func (p *Publisher) Upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(localPath)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// PublishRun uploads files that live under root, keyed by their path
// relative to root. Missing files are skipped. It returns the uploaded keys.
func (p *Publisher) PublishRun(ctx context.Context, runID, root string, files []string) ([]string, error) {
	var keys []string
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		rel, err := filepath.Rel(root, file)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(file)
		}
		key := p.Key(runID, rel)
		if err := p.Upload(ctx, file, key); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".fasta", ".fa", ".fna":
		return "text/x-fasta"
	case ".csv":
		return "text/csv"
	case ".tsv":
		return "text/tab-separated-values"
	case ".json":
		return "application/json"
	case ".prom":
		return "text/plain; version=0.0.4"
	default:
		return "application/octet-stream"
	}
}
