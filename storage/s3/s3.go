// Package s3 provides a storage backend on top of an S3 compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/gobeaver/fgen/storage"
)

// Client is the subset of the S3 API used by the adapter. *s3.Client
// satisfies it.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config describes how to reach a bucket.
type Config struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// Adapter is a storage.FileSystem backed by an S3 bucket. Directories are
// key prefixes; CreateDir writes a zero byte "dir/" marker.
type Adapter struct {
	client Client
	bucket string
	prefix string
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithPrefix scopes every key under prefix.
func WithPrefix(prefix string) AdapterOption {
	return func(a *Adapter) {
		prefix = strings.Trim(prefix, "/")
		if prefix != "" {
			prefix += "/"
		}
		a.prefix = prefix
	}
}

// New creates an adapter for bucket using client.
func New(client Client, bucket string, options ...AdapterOption) *Adapter {
	a := &Adapter{client: client, bucket: bucket}
	for _, option := range options {
		option(a)
	}
	return a
}

// NewFromConfig builds an S3 client from cfg and wraps it in an Adapter.
func NewFromConfig(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	var opts []AdapterOption
	if cfg.Prefix != "" {
		opts = append(opts, WithPrefix(cfg.Prefix))
	}
	return New(client, cfg.Bucket, opts...), nil
}

func newClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}

// Root returns the s3:// URL of the adapter's prefix.
func (a *Adapter) Root() string {
	return "s3://" + path.Join(a.bucket, a.prefix)
}

func (a *Adapter) key(p string) string {
	return a.prefix + strings.TrimPrefix(path.Clean("/"+p), "/")
}

func (a *Adapter) dirKey(p string) string {
	k := a.key(p)
	if k == "" || strings.HasSuffix(k, "/") {
		return k
	}
	return k + "/"
}

// Write implements storage.FileWriter.
func (a *Adapter) Write(ctx context.Context, p string, content io.Reader, options ...storage.Option) error {
	opts := storage.ApplyOptions(options...)

	if !opts.Overwrite {
		exists, err := a.FileExists(ctx, p)
		if err != nil {
			return err
		}
		if exists {
			return storage.NewPathError("write", p, storage.ErrExist)
		}
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return storage.NewPathError("write", p, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(a.key(p)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	if _, err := a.client.PutObject(ctx, input); err != nil {
		return mapS3Error("write", p, err)
	}
	return nil
}

// Read implements storage.FileReader.
func (a *Adapter) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(p)),
	})
	if err != nil {
		return nil, mapS3Error("read", p, err)
	}
	return out.Body, nil
}

// ReadAll implements storage.FileReader.
func (a *Adapter) ReadAll(ctx context.Context, p string) ([]byte, error) {
	rc, err := a.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Delete implements storage.FileWriter.
func (a *Adapter) Delete(ctx context.Context, p string) error {
	exists, err := a.FileExists(ctx, p)
	if err != nil {
		return err
	}
	if !exists {
		return storage.NewPathError("delete", p, storage.ErrNotExist)
	}

	if _, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(p)),
	}); err != nil {
		return mapS3Error("delete", p, err)
	}
	return nil
}

// CreateDir implements storage.FileWriter.
func (a *Adapter) CreateDir(ctx context.Context, p string) error {
	k := a.dirKey(p)
	if k == "" {
		return nil
	}
	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(k),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	}); err != nil {
		return mapS3Error("createdir", p, err)
	}
	return nil
}

// FileExists implements storage.FileReader.
func (a *Adapter) FileExists(ctx context.Context, p string) (bool, error) {
	_, err := a.head(ctx, p)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, mapS3Error("fileexists", p, err)
	}
	return true, nil
}

// DirExists implements storage.FileReader. A prefix with at least one
// object under it counts as a directory.
func (a *Adapter) DirExists(ctx context.Context, p string) (bool, error) {
	k := a.dirKey(p)
	if k == "" {
		return true, nil
	}
	out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(a.bucket),
		Prefix:  aws.String(k),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, mapS3Error("direxists", p, err)
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

// Stat implements storage.FileReader.
func (a *Adapter) Stat(ctx context.Context, p string) (*storage.FileInfo, error) {
	out, err := a.head(ctx, p)
	if err == nil {
		clean := strings.TrimPrefix(path.Clean("/"+p), "/")
		return &storage.FileInfo{
			Name:        path.Base(clean),
			Path:        clean,
			Size:        aws.ToInt64(out.ContentLength),
			ModTime:     aws.ToTime(out.LastModified),
			ContentType: aws.ToString(out.ContentType),
			Metadata:    out.Metadata,
		}, nil
	}
	if !isNotFound(err) {
		return nil, mapS3Error("stat", p, err)
	}

	isDir, dirErr := a.DirExists(ctx, p)
	if dirErr != nil {
		return nil, dirErr
	}
	if !isDir {
		return nil, storage.NewPathError("stat", p, storage.ErrNotExist)
	}
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	return &storage.FileInfo{Name: path.Base(clean), Path: clean, IsDir: true}, nil
}

// ListContents implements storage.FileReader. Entries are sorted by path.
func (a *Adapter) ListContents(ctx context.Context, p string, recursive bool) ([]storage.FileInfo, error) {
	listPrefix := a.dirKey(p)

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(listPrefix),
	}
	if !recursive {
		input.Delimiter = aws.String("/")
	}

	var entries []storage.FileInfo
	seenDirs := make(map[string]bool)
	addDir := func(rel string) {
		if rel == "" || seenDirs[rel] {
			return
		}
		seenDirs[rel] = true
		entries = append(entries, storage.FileInfo{Name: path.Base(rel), Path: rel, IsDir: true})
	}

	paginator := s3.NewListObjectsV2Paginator(a.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapS3Error("listcontents", p, err)
		}

		for _, cp := range page.CommonPrefixes {
			addDir(strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), a.prefix), "/"))
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == listPrefix {
				continue
			}
			rel := strings.TrimPrefix(key, a.prefix)
			if strings.HasSuffix(rel, "/") {
				addDir(strings.TrimSuffix(rel, "/"))
				continue
			}
			if recursive {
				for dir := path.Dir(rel); dir != "." && dir+"/" != strings.TrimPrefix(listPrefix, a.prefix); dir = path.Dir(dir) {
					addDir(dir)
				}
			}
			entries = append(entries, storage.FileInfo{
				Name:    path.Base(rel),
				Path:    rel,
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Checksums implements storage.CanChecksum by streaming the object once.
func (a *Adapter) Checksums(ctx context.Context, p string, algorithms []storage.ChecksumAlgorithm) (map[storage.ChecksumAlgorithm]string, error) {
	rc, err := a.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return storage.CalculateChecksums(rc, algorithms)
}

func (a *Adapter) head(ctx context.Context, p string) (*s3.HeadObjectOutput, error) {
	return a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(p)),
	})
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &notFound)
}

func mapS3Error(op, p string, err error) error {
	if isNotFound(err) {
		return storage.NewPathError(op, p, storage.ErrNotExist)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return storage.NewPathError(op, p, err)
}

var (
	_ storage.FileSystem  = (*Adapter)(nil)
	_ storage.CanChecksum = (*Adapter)(nil)
	_ storage.Rooted      = (*Adapter)(nil)
)
