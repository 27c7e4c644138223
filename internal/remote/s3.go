package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"ftpmirror/config"
)

// s3API is the part of *s3.Client used for directory handling.
type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Client maps the directory model onto key prefixes. A directory exists
// when a zero-byte marker object "dir/" exists or when any key starts with
// "dir/".
type S3Client struct {
	// ctx is the context the client was dialed with. Client methods take
	// no context, so every request of the session runs under it.
	ctx      context.Context
	s3Client s3API
	uploader *manager.Uploader
	config   *config.Config
	cwd      string
}

func NewS3(ctx context.Context, cfg *config.Config) (*S3Client, error) {
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
			},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Client *s3.Client
	if cfg.ApiURL != "" {
		s3Client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.ApiURL)
			o.UsePathStyle = true
		})
	} else {
		s3Client = s3.NewFromConfig(awsConfig)
	}

	if _, err := s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.BucketName),
	}); err != nil {
		return nil, fmt.Errorf("failed to access bucket %s: %w", cfg.BucketName, err)
	}

	return &S3Client{
		ctx:      ctx,
		s3Client: s3Client,
		uploader: manager.NewUploader(s3Client),
		config:   cfg,
		cwd:      "/",
	}, nil
}

func (c *S3Client) Welcome() string {
	return fmt.Sprintf("Connected to bucket %s (%s)", c.config.BucketName, c.config.Region)
}

func (c *S3Client) CurrentDir() (string, error) {
	return c.cwd, nil
}

// ChangeDir always succeeds for the bucket root. Other prefixes must carry a
// directory marker or hold at least one object.
func (c *S3Client) ChangeDir(dir string) error {
	target := resolve(c.cwd, dir)
	if target != "/" {
		exists, err := c.dirExists(dirKey(target))
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("directory %s not found", target)
		}
	}
	c.cwd = target
	return nil
}

func (c *S3Client) MakeDir(dir string) error {
	target := resolve(c.cwd, dir)
	key := dirKey(target)

	exists, err := c.dirExists(key)
	if err != nil {
		return err
	}
	if exists {
		return &existError{dir: target, err: errors.New("prefix already present")}
	}

	_, err = c.s3Client.PutObject(c.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(nil),
		ContentType: aws.String("application/x-directory"),
	})
	if err != nil {
		return fmt.Errorf("failed to create directory marker %s: %w", key, err)
	}
	return nil
}

func (c *S3Client) Store(name string, r io.Reader) error {
	key := objectKey(resolve(c.cwd, name))

	_, err := c.uploader.Upload(c.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.config.BucketName),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(detectContentType(name)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

func (c *S3Client) Quit() error {
	return nil
}

func (c *S3Client) objectExists(key string) (bool, error) {
	_, err := c.s3Client.HeadObject(c.ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.config.BucketName),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check %s: %w", key, err)
}

func (c *S3Client) dirExists(key string) (bool, error) {
	exists, err := c.objectExists(key)
	if err != nil || exists {
		return exists, err
	}

	out, err := c.s3Client.ListObjectsV2(c.ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.config.BucketName),
		Prefix:  aws.String(key),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list %s: %w", key, err)
	}
	return len(out.Contents) > 0, nil
}

func objectKey(remotePath string) string {
	return strings.TrimPrefix(path.Clean(remotePath), "/")
}

func dirKey(remotePath string) string {
	key := objectKey(remotePath)
	if key == "" || key == "." {
		return ""
	}
	return key + "/"
}

func detectContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	contentTypes := map[string]string{
		".txt":   "text/plain",
		".html":  "text/html",
		".htm":   "text/html",
		".css":   "text/css",
		".js":    "application/javascript",
		".mjs":   "application/javascript",
		".json":  "application/json",
		".xml":   "application/xml",
		".pdf":   "application/pdf",
		".zip":   "application/zip",
		".wasm":  "application/wasm",
		".jpg":   "image/jpeg",
		".jpeg":  "image/jpeg",
		".png":   "image/png",
		".gif":   "image/gif",
		".svg":   "image/svg+xml",
		".webp":  "image/webp",
		".ico":   "image/x-icon",
		".woff":  "font/woff",
		".woff2": "font/woff2",
		".mp3":   "audio/mpeg",
		".mp4":   "video/mp4",
	}

	if contentType, exists := contentTypes[ext]; exists {
		return contentType
	}

	return "application/octet-stream"
}
