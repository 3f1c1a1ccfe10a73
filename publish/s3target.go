package publish

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/silverline-ca/corepki/pkierrors"
)

// S3Target publishes issued certificates as DER objects to an S3
// bucket, keyed by the caName passed to Submit and the SHA-256 of the
// DER -- a durable archive
// publishers like CT-log mirrors or audit pipelines can read from,
// generalizing publisher/publisher.go's CT submission target to a
// storage-backed one the domain-stack expansion calls for.
type S3Target struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Target builds a Target backed by an already-configured S3
// client (region/credentials resolution is the caller's responsibility
// via aws-sdk-go-v2/config, per spec.md's ambient-config boundary).
func NewS3Target(client *s3.Client, bucket, prefix string) *S3Target {
	return &S3Target{client: client, bucket: bucket, prefix: prefix}
}

func (t *S3Target) Name() string { return "s3:" + t.bucket }

// Submit uploads der under <prefix>/<caName>/<sha256-of-der>.der. The
// content-addressed key makes re-submission of an already-published
// certificate a harmless overwrite, satisfying Target's idempotency
// contract.
func (t *S3Target) Submit(ctx context.Context, caName string, der []byte) error {
	digest := sha256.Sum256(der)
	key := fmt.Sprintf("%s/%s/%x.der", t.prefix, caName, digest)
	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(der),
		ContentType: aws.String("application/pkix-cert"),
	})
	if err != nil {
		return pkierrors.Wrap(pkierrors.SystemFailure, err, "publish: s3 PutObject %s/%s", t.bucket, key)
	}
	return nil
}
