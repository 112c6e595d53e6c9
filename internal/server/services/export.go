package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/keyauth/internal/logging"
	sc "github.com/dmitrijs2005/keyauth/internal/server/config"
	"github.com/dmitrijs2005/keyauth/internal/server/models"
	"github.com/dmitrijs2005/keyauth/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ExportLinkValidity is how long the presigned download link stays usable.
const ExportLinkValidity = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ExportResult points at an uploaded license snapshot.
type ExportResult struct {
	ObjectKey   string
	DownloadURL string
	Count       int
}

type exportRecord struct {
	ID        string     `json:"id"`
	Key       string     `json:"key"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	HWID      string     `json:"hwid,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
	Valid     bool       `json:"is_valid"`
}

type exportDocument struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Licenses    []exportRecord `json:"licenses"`
}

// ExportService writes snapshots of the license table to S3-compatible
// storage.
type ExportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	logger      logging.Logger
	now         func() time.Time
}

func NewExportService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config, logger logging.Logger) *ExportService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &ExportService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		logger:      logger.With("module", "export"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ExportObjectKey returns a fresh date-partitioned object key.
func ExportObjectKey(d time.Time) string {
	return fmt.Sprintf("exports/%04d/%02d/%02d/%v.json", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *ExportService) getClients() (*s3.Client, *s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return client, newS3PresignClient(client), nil
}

// Export uploads every license as one JSON document and returns a presigned
// download link for it. Admin only.
func (s *ExportService) Export(ctx context.Context, caller *models.User) (*ExportResult, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	list, err := s.repomanager.Licenses(s.db).List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc := exportDocument{GeneratedAt: now, Licenses: make([]exportRecord, 0, len(list))}
	for _, l := range list {
		doc.Licenses = append(doc.Licenses, exportRecord{
			ID:        l.ID,
			Key:       l.Key,
			Type:      string(l.Type),
			Status:    string(l.Status),
			HWID:      l.HWID,
			UserID:    l.UserID,
			CreatedAt: l.CreatedAt,
			ExpiresAt: l.ExpiresAt,
			Valid:     l.IsValid("", now),
		})
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("error encoding export: %w", err)
	}

	client, presignClient, err := s.getClients()
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	key := ExportObjectKey(now)

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return nil, fmt.Errorf("error uploading export: %w", err)
	}

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(ExportLinkValidity))
	if err != nil {
		return nil, fmt.Errorf("error presigning export: %w", err)
	}

	s.logger.Info(ctx, "licenses exported", "object_key", key, "count", len(list))

	return &ExportResult{ObjectKey: key, DownloadURL: req.URL, Count: len(list)}, nil
}
