// package report
//
// writes a JSON summary of every run to disk and optionally ships it to s3
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/spf13/afero"
)

// Options : where summaries go. An empty Dir disables the local copy, an
// empty S3Bucket disables the upload.
type Options struct {
	Dir      string `json:"dir"`
	S3Bucket string `json:"s3_bucket"`
	S3Prefix string `json:"s3_prefix"`
	MaxRetry int    `json:"max_retry"`
}

// Enabled : true when at least one destination is configured
func (o Options) Enabled() bool {
	return o.Dir != "" || o.S3Bucket != ""
}

type TableSummary struct {
	TableName string        `json:"table_name"`
	State     string        `json:"state"`
	Rows      int           `json:"rows"`
	Batches   int           `json:"batches"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"`
}

type Summary struct {
	RunID      string         `json:"run_id"`
	State      string         `json:"state"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Tables     []TableSummary `json:"tables"`
	Error      string         `json:"error,omitempty"`
}

// Key : relative location of a summary, shared by disk and s3
func Key(runID string) string {
	return path.Join("run_id="+runID, "summary.json")
}

func NewPublisher(fs afero.Fs, s3Client s3iface.S3API, opts Options) *Publisher {
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = 3
	}
	return &Publisher{fs: fs, s3: s3Client, opts: opts}
}

type Publisher struct {
	fs   afero.Fs
	s3   s3iface.S3API
	opts Options
}

// Publish : returns the local path and s3 key written (empty when skipped)
func (p *Publisher) Publish(ctx context.Context, s Summary) (localPath string, s3Key string, err error) {
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", "", err
	}
	key := Key(s.RunID)
	if p.opts.Dir != "" {
		localPath = filepath.Join(p.opts.Dir, filepath.FromSlash(key))
		if err := p.fs.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
			return "", "", err
		}
		if err := afero.WriteFile(p.fs, localPath, body, 0644); err != nil {
			return "", "", err
		}
	}
	if p.opts.S3Bucket != "" && p.s3 != nil {
		s3Key = path.Join(p.opts.S3Prefix, key)
		if err := p.upload(ctx, body, s3Key); err != nil {
			return localPath, "", err
		}
	}
	return localPath, s3Key, nil
}

func (p *Publisher) upload(ctx context.Context, body []byte, key string) error {
	var (
		retryCtr int
		err      error
	)
	for retryCtr < p.opts.MaxRetry {
		_, err = p.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Body:        bytes.NewReader(body),
			Bucket:      aws.String(p.opts.S3Bucket),
			Key:         aws.String(key),
			ContentType: aws.String("application/json"),
		})
		if err == nil {
			return nil
		}
		retryCtr++
	}
	return fmt.Errorf("attempted uploading key (%s) %d times with no success : original_err=%w", key, retryCtr, err)
}
