package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/hupe1980/edgeport/blobstore"
)

// Client is the subset of the S3 API used by Store. *s3.Client satisfies it.
type Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Options configures a Store.
type Options struct {
	// Prefix is prepended to all keys (e.g. "volumes/vol0").
	Prefix string
	// Upload tunes puts.
	Upload UploadConfig

	// Region, Endpoint and UsePathStyle are only used by New.
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// Store implements blobstore.Store for S3.
type Store struct {
	client   Client
	bucket   string
	prefix   string
	upload   UploadConfig
	uploader *manager.Uploader
}

// NewStore creates a new S3 blob store on top of an existing client.
func NewStore(client Client, bucket string, optFns ...func(*Options)) *Store {
	opts := Options{Upload: DefaultUploadConfig()}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Store{
		client:   client,
		bucket:   bucket,
		prefix:   strings.Trim(opts.Prefix, "/"),
		upload:   opts.Upload,
		uploader: newUploader(client, opts.Upload),
	}
}

// New loads the default AWS configuration (environment, shared config,
// instance role) and creates a Store for bucket.
func New(ctx context.Context, bucket string, optFns ...func(*Options)) (*Store, error) {
	opts := Options{Upload: DefaultUploadConfig()}
	for _, fn := range optFns {
		fn(&opts)
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return NewStore(client, bucket, func(o *Options) { *o = opts }), nil
}

func (s *Store) key(name string) string {
	return blobstore.Join(s.prefix, name)
}

func (s *Store) rel(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
}

// isNotFound reports whether err means the key does not exist.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}

// Get downloads the whole object.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	return io.ReadAll(resp.Body)
}

// Put uploads the object. S3 puts are atomic: readers see either the old or
// the new object.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	key := s.key(name)
	if s.upload.PartSize > 0 && int64(len(data)) > s.upload.PartSize {
		return s.multipart(ctx, key, data)
	}
	if s.upload.EnableChecksum {
		return putWithChecksum(ctx, s.client, s.bucket, key, data)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          newBody(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return err
}

// Delete removes the object. S3 deletes of missing keys succeed.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// List returns all blob names below prefix, relative to the store prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.key(prefix)
	if strings.HasSuffix(prefix, "/") && fullPrefix != "" {
		fullPrefix += "/"
	}

	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fullPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			names = append(names, s.rel(aws.ToString(obj.Key)))
		}
	}
	sort.Strings(names)
	return names, nil
}
