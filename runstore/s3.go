package runstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/temporalab/modelconf/snapshot"
)

// Compile-time interface checks
var (
	_ Store    = (*S3Store)(nil)
	_ S3Client = (*s3.Client)(nil)
)

// defaultS3Region is the fallback region when none is specified.
const defaultS3Region = "us-west-2"

// S3Client is the subset of the S3 API the store uses. *s3.Client satisfies
// it; tests inject a fake.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store provides an S3-backed implementation of the Store interface.
// Snapshots live under <prefix>/snapshot/<id>.json; a zero-byte marker under
// <prefix>/variant/<variant>/<id> indexes them per variant so filtered
// listings are a single prefix query.
type S3Store struct {
	client S3Client
	bucket string
	prefix string
}

// s3Settings collects the configurable pieces of an S3Store.
type s3Settings struct {
	prefix          string
	region          string
	endpoint        string
	accessKeyID     string
	secretAccessKey string
}

// S3Option configures an S3Store.
type S3Option func(*s3Settings)

// WithS3Prefix sets the object key prefix. Default is "modelconf".
func WithS3Prefix(prefix string) S3Option {
	return func(s *s3Settings) {
		s.prefix = prefix
	}
}

// WithS3Region sets the AWS region. Default is us-west-2.
func WithS3Region(region string) S3Option {
	return func(s *s3Settings) {
		s.region = region
	}
}

// WithS3Endpoint points the client at an S3-compatible endpoint such as
// MinIO, switching to path-style addressing.
func WithS3Endpoint(endpoint string) S3Option {
	return func(s *s3Settings) {
		s.endpoint = endpoint
	}
}

// WithStaticCredentials uses a fixed key pair instead of the default AWS
// credential chain.
func WithStaticCredentials(accessKeyID, secretAccessKey string) S3Option {
	return func(s *s3Settings) {
		s.accessKeyID = accessKeyID
		s.secretAccessKey = secretAccessKey
	}
}

func defaultS3Settings() *s3Settings {
	return &s3Settings{
		prefix: "modelconf",
		region: defaultS3Region,
	}
}

// NewS3Store creates an S3-backed run store using the default AWS credential
// chain. This supports IRSA, instance profiles, and environment variables
// (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY).
func NewS3Store(ctx context.Context, bucket string, opts ...S3Option) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	settings := defaultS3Settings()
	for _, opt := range opts {
		opt(settings)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(settings.region),
	}
	if settings.accessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(settings.accessKeyID, settings.secretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if settings.endpoint != "" {
			o.BaseEndpoint = aws.String(settings.endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: bucket, prefix: settings.prefix}, nil
}

// NewS3StoreWithClient creates an S3 store with an injected client.
func NewS3StoreWithClient(client S3Client, bucket string, opts ...S3Option) *S3Store {
	settings := defaultS3Settings()
	for _, opt := range opts {
		opt(settings)
	}
	return &S3Store{client: client, bucket: bucket, prefix: settings.prefix}
}

// Backend names the storage backend.
func (s *S3Store) Backend() string {
	return "s3"
}

// Save persists a snapshot and its variant index marker.
func (s *S3Store) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	if snap == nil {
		return ErrInvalidSnapshot
	}
	if snap.ID == "" {
		return ErrInvalidID
	}

	data, err := snap.EncodeJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.snapshotObjectKey(snap.ID)),
		Body:        strings.NewReader(string(data)),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put failed: %w", err)
	}

	if snap.Variant != "" {
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.variantMarkerKey(snap.Variant, snap.ID)),
			Body:   strings.NewReader(""),
		})
		if err != nil {
			return fmt.Errorf("s3 put failed: %w", err)
		}
	}

	return nil
}

// Load retrieves a snapshot by ID.
func (s *S3Store) Load(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.snapshotObjectKey(id)),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	snap, err := snapshot.DecodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Delete removes a snapshot and its variant index marker.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	// Load to confirm existence and learn the variant for marker cleanup;
	// S3 deletes are silent for missing keys.
	snap, err := s.Load(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.snapshotObjectKey(id)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}

	if snap.Variant != "" {
		_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.variantMarkerKey(snap.Variant, id)),
		})
		if err != nil {
			return fmt.Errorf("s3 delete failed: %w", err)
		}
	}

	return nil
}

// List returns snapshot IDs matching the given criteria. S3 lists keys in
// lexical order already.
func (s *S3Store) List(ctx context.Context, opts ListOptions) ([]string, error) {
	prefix := path.Join(s.prefix, "snapshot") + "/"
	if opts.Variant != "" {
		prefix = path.Join(s.prefix, "variant", opts.Variant) + "/"
	}

	var ids []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 list failed: %w", err)
		}

		for _, obj := range out.Contents {
			if id := idFromObjectKey(aws.ToString(obj.Key)); id != "" {
				ids = append(ids, id)
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	return applyPagination(ids, opts.Offset, opts.Limit), nil
}

// snapshotObjectKey generates the object key for a snapshot.
func (s *S3Store) snapshotObjectKey(id string) string {
	return path.Join(s.prefix, "snapshot", id+".json")
}

// variantMarkerKey generates the object key for a variant index marker.
func (s *S3Store) variantMarkerKey(variant, id string) string {
	return path.Join(s.prefix, "variant", variant, id)
}

// idFromObjectKey extracts the snapshot ID from either key layout.
func idFromObjectKey(key string) string {
	return strings.TrimSuffix(path.Base(key), ".json")
}
