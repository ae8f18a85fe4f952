package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/starford/sitesmith/internal/apperr"
)

// checksumMeta is the object metadata key holding the file's SHA-256.
const checksumMeta = "sha256"

// S3Options configure an S3 publisher. Empty credentials fall back to the
// standard AWS_* environment variables.
type S3Options struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	BaseURL         string
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

// S3 uploads the output store to a bucket, skipping objects whose stored
// checksum already matches.
type S3 struct {
	client  *s3.Client
	bucket  string
	prefix  string
	baseURL string
	logger  *slog.Logger
}

var _ Publisher = (*S3)(nil)

// NewS3 returns an S3 publisher. A missing bucket, region or credentials is a
// configuration error.
func NewS3(opts S3Options) (*S3, error) {
	if opts.Bucket == "" || opts.Region == "" {
		return nil, fmt.Errorf("publish: %w: s3 bucket and region are required", apperr.ErrConfiguration)
	}
	creds := aws.Credentials{
		AccessKeyID:     firstNonEmpty(opts.AccessKeyID, os.Getenv("AWS_ACCESS_KEY_ID")),
		SecretAccessKey: firstNonEmpty(opts.SecretAccessKey, os.Getenv("AWS_SECRET_ACCESS_KEY")),
		SessionToken:    firstNonEmpty(opts.SessionToken, os.Getenv("AWS_SESSION_TOKEN")),
		Source:          "sitesmith",
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return nil, fmt.Errorf("publish: %w: s3 credentials missing", apperr.ErrConfiguration)
	}

	s3opts := s3.Options{
		Region: opts.Region,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
	}
	if opts.Endpoint != "" {
		s3opts.BaseEndpoint = aws.String(opts.Endpoint)
		s3opts.UsePathStyle = true
	}
	if opts.HTTPClient != nil {
		s3opts.HTTPClient = opts.HTTPClient
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", opts.Bucket, opts.Region, prefixDir(opts.Prefix))
	}
	return &S3{
		client:  s3.New(s3opts),
		bucket:  opts.Bucket,
		prefix:  prefixDir(opts.Prefix),
		baseURL: baseURL,
		logger:  logger,
	}, nil
}

// Publish uploads every changed file with its content type.
func (s *S3) Publish(ctx context.Context, req Request) (Result, error) {
	res := Result{Target: TargetS3, DeployURL: DeployURL(s.baseURL, "", "")}
	files, err := req.Store.List()
	if err != nil {
		return res, err
	}

	for _, f := range files {
		key := s.prefix + f.Path
		same, err := s.unchanged(ctx, key, f.Checksum)
		if err != nil {
			return res, err
		}
		if same {
			continue
		}
		data, err := req.Store.Read(f.Path)
		if err != nil {
			return res, err
		}
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType(f.Path)),
			Metadata:    map[string]string{checksumMeta: f.Checksum},
		})
		if err != nil {
			return res, fmt.Errorf("publish: s3 put %s: %w: %w", key, apperr.ErrTransient, err)
		}
		res.Files++
	}
	res.Skipped = res.Files == 0
	s.logger.Info("site uploaded", "bucket", s.bucket, "prefix", s.prefix, "uploaded", res.Files, "total", len(files))
	return res, nil
}

// unchanged reports whether key exists with the given checksum.
func (s *S3) unchanged(ctx context.Context, key, sum string) (bool, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		var re *awshttp.ResponseError
		if errors.As(err, &nf) || (errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("publish: s3 head %s: %w: %w", key, apperr.ErrTransient, err)
	}
	return out.Metadata[checksumMeta] == sum, nil
}

func contentType(p string) string {
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func prefixDir(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
