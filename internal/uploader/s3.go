package uploader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
	"go.lorenzomilicia.dev/imgup/internal/encoder"
	"go.lorenzomilicia.dev/imgup/internal/links"
)

// maxDeleteBatch is the DeleteObjects limit per request
const maxDeleteBatch = 1000

// s3API is the subset of the S3 client the gateway needs
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Gateway stores images in S3-compatible storage (AWS S3, Cloudflare R2, etc.)
type S3Gateway struct {
	client  s3API
	bucket  string
	baseURL string
	prefix  string
}

// S3Config contains configuration for S3-compatible storage
type S3Config struct {
	// Endpoint is the S3-compatible endpoint URL (e.g., https://account-id.r2.cloudflarestorage.com)
	// For AWS S3, leave empty to use default
	Endpoint string

	// Region for the S3 bucket (e.g., "us-east-1", "auto" for R2)
	Region string

	Bucket string

	// AccessKeyID falls back to R2_ACCESS_KEY_ID, then AWS_ACCESS_KEY_ID
	AccessKeyID string

	// SecretAccessKey falls back to R2_SECRET_ACCESS_KEY, then AWS_SECRET_ACCESS_KEY
	SecretAccessKey string

	// BaseURL is the public URL base for accessing uploaded files
	BaseURL string

	// Prefix is prepended to every object key
	Prefix string
}

// NewS3Gateway creates a new S3-compatible gateway
func NewS3Gateway(ctx context.Context, cfg S3Config) (*S3Gateway, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("missing bucket name")
	}

	accessKey := firstNonEmpty(cfg.AccessKeyID, os.Getenv("R2_ACCESS_KEY_ID"), os.Getenv("AWS_ACCESS_KEY_ID"))
	secretKey := firstNonEmpty(cfg.SecretAccessKey, os.Getenv("R2_SECRET_ACCESS_KEY"), os.Getenv("AWS_SECRET_ACCESS_KEY"))
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("missing credentials: set R2_ACCESS_KEY_ID/R2_SECRET_ACCESS_KEY or AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for R2
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		if cfg.Endpoint != "" {
			baseURL = fmt.Sprintf("%s/%s", strings.TrimRight(cfg.Endpoint, "/"), cfg.Bucket)
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}

	log.Info().
		Str("bucket", cfg.Bucket).
		Str("region", cfg.Region).
		Str("endpoint", cfg.Endpoint).
		Str("baseURL", baseURL).
		Msg("S3 gateway initialized")

	return newS3Gateway(client, cfg.Bucket, baseURL, cfg.Prefix), nil
}

func newS3Gateway(client s3API, bucket, baseURL, prefix string) *S3Gateway {
	return &S3Gateway{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  strings.Trim(prefix, "/"),
	}
}

// Upload stores the decoded payload under a content-derived key. Objects
// already present are not uploaded again.
func (g *S3Gateway) Upload(ctx context.Context, job Job) Result {
	data, mimeType, err := encoder.DecodeDataURL(job.Payload)
	if err != nil {
		return Failed(&UploadError{Message: "invalid payload", Err: err})
	}
	if job.MIMEType != "" {
		mimeType = job.MIMEType
	}
	if mimeType == "" {
		mimeType = DetectContentType(job.Name)
	}

	key := g.objectKey(data, mimeType, job.Name)
	log.Debug().Str("key", key).Str("contentType", mimeType).Msg("Uploading to S3")

	exists, err := g.exists(ctx, key)
	if err != nil {
		return Failed(&UploadError{Message: "failed to check object", Err: err})
	}
	if exists {
		log.Debug().Str("key", key).Msg("Object already stored, skipping upload")
		return Result{OK: true, URL: g.GetURL(key)}
	}

	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(g.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(mimeType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Upload failed")
		return Failed(&UploadError{Message: fmt.Sprintf("failed to upload %s", key), Err: err})
	}

	log.Debug().Str("key", key).Msg("Upload successful")
	return Result{OK: true, URL: g.GetURL(key)}
}

// Delete removes every object of selection that lives under the public base URL
func (g *S3Gateway) Delete(ctx context.Context, selection string) (DeleteResult, error) {
	var (
		keys    []types.ObjectIdentifier
		sources []string
	)
	for _, ref := range links.Extract(selection) {
		key, ok := g.keyFromURL(ref.Path)
		if !ok {
			continue
		}
		keys = append(keys, types.ObjectIdentifier{Key: aws.String(key)})
		sources = append(sources, ref.Source)
	}
	if len(keys) == 0 {
		return DeleteResult{}, nil
	}

	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))
		log.Debug().Int("count", end-start).Msg("Deleting from S3")

		out, err := g.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(g.bucket),
			Delete: &types.Delete{
				Objects: keys[start:end],
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return DeleteResult{}, &DeleteError{Message: "delete request failed", Err: err}
		}
		if len(out.Errors) > 0 {
			return DeleteResult{}, &DeleteError{
				Message: fmt.Sprintf("%d objects could not be deleted", len(out.Errors)),
			}
		}
	}

	return DeleteResult{Sources: sources}, nil
}

// GetURL returns the public URL for accessing the stored object
func (g *S3Gateway) GetURL(key string) string {
	return fmt.Sprintf("%s/%s", g.baseURL, key)
}

func (g *S3Gateway) exists(ctx context.Context, key string) (bool, error) {
	_, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return false, nil
	}
	return false, fmt.Errorf("failed to check existence of %s: %w", key, err)
}

func (g *S3Gateway) objectKey(data []byte, mimeType, name string) string {
	sum := sha256.Sum256(data)
	file := hex.EncodeToString(sum[:])[:12] + ExtensionFor(mimeType, name)
	if g.prefix == "" {
		return file
	}
	return path.Join(g.prefix, file)
}

func (g *S3Gateway) keyFromURL(u string) (string, bool) {
	key, ok := strings.CutPrefix(u, g.baseURL+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
