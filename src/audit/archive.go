package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/obrc/blacklist/src/voting"
)

// Uploader stores an object.
type Uploader interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error
}

// S3Uploader is an Uploader over the AWS SDK.
type S3Uploader struct {
	client *s3.Client
}

// ArchiveOptions configure the S3 client.
type ArchiveOptions struct {
	Region string
	// Endpoint overrides the service endpoint for S3 compatible stores.
	Endpoint string
}

// NewS3Uploader loads the default AWS credential chain.
func NewS3Uploader(ctx context.Context, opts ArchiveOptions) (*S3Uploader, error) {
	var loaders []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loaders = append(loaders, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("audit: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Uploader{client: client}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	return err
}

// ArchiveSink keeps a copy of every transcript in object storage.
type ArchiveSink struct {
	uploader Uploader
	bucket   string
	prefix   string
}

// NewArchiveSink returns a sink writing under prefix in bucket.
func NewArchiveSink(uploader Uploader, bucket, prefix string) *ArchiveSink {
	return &ArchiveSink{uploader: uploader, bucket: bucket, prefix: prefix}
}

// Record is a no-op. Events go to the stream.
func (a *ArchiveSink) Record(context.Context, voting.Event) error { return nil }

func (a *ArchiveSink) Transcript(ctx context.Context, t voting.Transcript) error {
	key := a.Key(t)
	if err := a.uploader.Upload(ctx, a.bucket, key, "text/plain; charset=utf-8", bytes.NewReader(RenderTranscript(t))); err != nil {
		return fmt.Errorf("audit: archive %s: %w", key, err)
	}
	return nil
}

// Key is the object key of a transcript.
func (a *ArchiveSink) Key(t voting.Transcript) string {
	day := t.GeneratedAt.UTC().Format("2006/01/02")
	name := fmt.Sprintf("ticket-%d-%s.txt", t.TicketID, uuid.NewString())
	return path.Join(a.prefix, "transcripts", day, name)
}
