// Package modules wraps the external and platform dependencies of the
// calculation service behind func slots.
package modules

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Versent/go-mockfn/future"
)

// Objects reads documents from an S3 compatible object store.
type Objects struct {
	GetObject func(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewObjects binds Objects to client.
func NewObjects(client *s3.Client) *Objects {
	return &Objects{GetObject: client.GetObject}
}

// Dial loads the default AWS configuration for region and binds Objects to a
// new S3 client.
func Dial(ctx context.Context, region string) (*Objects, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewObjects(s3.NewFromConfig(cfg)), nil
}

// Fetch returns the content of key in bucket.
func (o *Objects) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := o.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}
	return buf.Bytes(), nil
}

// Files reads from the local filesystem without blocking the caller.
type Files struct {
	ReadFile func(name string) *future.Future[[]byte]
}

// FS is bound to the operating system.
var FS = &Files{
	ReadFile: func(name string) *future.Future[[]byte] {
		return future.Go(func() ([]byte, error) {
			return os.ReadFile(name)
		})
	},
}
