package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"mingle-gateway/internal/domain"
	apperrors "mingle-gateway/pkg/errors"
)

// Uploader hands out presigned PUT URLs so attachment bytes never pass
// through the gateway. A message only references the resulting object URL.
type Uploader struct {
	cfg     Config
	s3      *s3.Client
	presign *s3.PresignClient
}

type Config struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	PublicBase string
	PresignTTL time.Duration
}

func NewUploader(ctx context.Context, cfg Config) (*Uploader, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 region and bucket are required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if parsed, err := url.Parse(endpoint); err == nil {
			endpoint = parsed.String()
		}
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				if service == s3.ServiceID {
					return aws.Endpoint{URL: endpoint, SigningRegion: cfg.Region}, nil
				}
				return aws.Endpoint{}, &aws.EndpointNotFoundError{}
			}),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	return &Uploader{
		cfg:     cfg,
		s3:      s3Client,
		presign: s3.NewPresignClient(s3Client),
	}, nil
}

// PresignRequest describes the upload a client intends to perform.
type PresignRequest struct {
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes,omitempty"`
}

// PresignResult carries everything the client needs to upload and then
// attach the object to a message.
type PresignResult struct {
	UploadURL string            `json:"uploadUrl"`
	Headers   map[string]string `json:"headers,omitempty"`
	Key       string            `json:"key"`
	Media     domain.Media      `json:"media"`
}

// PresignPut issues a time-limited PUT URL for a fresh object key scoped
// to the uploading identity.
func (u *Uploader) PresignPut(ctx context.Context, owner primitive.ObjectID, req PresignRequest) (PresignResult, error) {
	if u == nil {
		return PresignResult{}, errors.New("uploader not initialized")
	}
	if req.ContentType == "" {
		return PresignResult{}, apperrors.ErrInvalidInput
	}
	kind := domain.MediaKindFromContentType(req.ContentType)

	key := fmt.Sprintf("uploads/%s/%s", owner.Hex(), uuid.New().String())

	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(req.ContentType),
	}
	if req.SizeBytes > 0 {
		input.ContentLength = aws.Int64(req.SizeBytes)
	}

	presigned, err := u.presign.PresignPutObject(ctx, input, func(po *s3.PresignOptions) {
		if u.cfg.PresignTTL > 0 {
			po.Expires = u.cfg.PresignTTL
		}
	})
	if err != nil {
		return PresignResult{}, err
	}

	headers := map[string]string{"Content-Type": req.ContentType}
	if req.SizeBytes > 0 {
		headers["Content-Length"] = strconv.FormatInt(req.SizeBytes, 10)
	}

	return PresignResult{
		UploadURL: presigned.URL,
		Headers:   headers,
		Key:       key,
		Media: domain.Media{
			Kind: kind,
			URL:  u.FileURL(key),
		},
	}, nil
}

// FileURL maps an object key to its public address.
func (u *Uploader) FileURL(key string) string {
	if u == nil || key == "" {
		return ""
	}
	if u.cfg.PublicBase != "" {
		return u.cfg.PublicBase + "/" + key
	}
	return ""
}
