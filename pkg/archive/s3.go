// Package archive implements lsm.Archiver against S3-compatible object
// storage: a best-effort, write-only copy of an SST file taken
// immediately before the compactor deletes it.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/duskdb/duskdb/pkg/logging"
	"github.com/duskdb/duskdb/pkg/metrics"
)

// Options configures an S3Archiver.
type Options struct {
	Bucket string `validate:"required"`
	Prefix string

	// Region, AccessKeyID, and SecretAccessKey are optional: when empty,
	// the default AWS credential/config chain is used (environment,
	// shared config file, EC2/ECS role).
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	// Timeout bounds each individual Archive call.
	Timeout time.Duration
}

// S3Archiver uploads SST files to an S3 bucket under Prefix/<basename>.
// It satisfies lsm.Archiver.
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
	timeout time.Duration
	log    logging.Logger
	mets   *metrics.Registry
}

// New builds an S3Archiver, resolving AWS config via the SDK's standard
// chain unless static credentials are supplied.
func New(ctx context.Context, opts Options, log logging.Logger, mets *metrics.Registry) (*S3Archiver, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &S3Archiver{
		client:  s3.NewFromConfig(cfg),
		bucket:  opts.Bucket,
		prefix:  opts.Prefix,
		timeout: timeout,
		log:     log,
		mets:    mets,
	}, nil
}

// Archive uploads sstPath to s3://bucket/prefix/<basename>(sstPath). A
// failure is logged and counted but never returned as fatal to the
// caller beyond the error value itself — the compactor treats Archive
// as fire-and-forget and proceeds with deletion regardless.
func (a *S3Archiver) Archive(sstPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	f, err := os.Open(sstPath)
	if err != nil {
		a.recordFailure(sstPath, err)
		return fmt.Errorf("archive: open %s: %w", sstPath, err)
	}
	defer f.Close()

	key := a.objectKey(sstPath)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		a.recordFailure(sstPath, err)
		return fmt.Errorf("archive: put %s: %w", key, err)
	}

	if a.mets != nil {
		a.mets.ArchiveTotal.Inc()
	}
	if a.log != nil {
		a.log.Info("archived sst", logging.Field{Key: "path", Value: sstPath}, logging.Field{Key: "key", Value: key})
	}
	return nil
}

func (a *S3Archiver) objectKey(sstPath string) string {
	base := filepath.Base(sstPath)
	if a.prefix == "" {
		return base
	}
	return a.prefix + "/" + base
}

func (a *S3Archiver) recordFailure(sstPath string, err error) {
	if a.mets != nil {
		a.mets.ArchiveFailureTotal.Inc()
	}
	if a.log != nil {
		a.log.Error("archive failed", logging.Field{Key: "path", Value: sstPath}, logging.Field{Key: "error", Value: err.Error()})
	}
}
