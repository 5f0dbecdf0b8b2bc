package service

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/pageza/nutriplan/backend/config"
	"github.com/pageza/nutriplan/backend/internal/types"
	"go.uber.org/zap"
)

const photoURLExpiry = 24 * time.Hour

// PhotoStore keeps uploaded meal photos.
type PhotoStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
}

// S3PhotoStore uploads meal photos to S3 and hands out presigned URLs.
type S3PhotoStore struct {
	s3Config *config.S3Config
	prefix   string
}

var _ PhotoStore = (*S3PhotoStore)(nil)

// NewS3PhotoStore creates a store writing under the meals/ prefix.
func NewS3PhotoStore(s3Config *config.S3Config) *S3PhotoStore {
	return &S3PhotoStore{s3Config: s3Config, prefix: "meals"}
}

// Put uploads data under a random key and returns a presigned GET URL.
func (s *S3PhotoStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	key := path.Join(s.prefix, uuid.New().String()+extensionFor(contentType))
	_, err := s.s3Config.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	url, err := s.s3Config.GeneratePresignedURL(ctx, key, photoURLExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign photo URL: %w", err)
	}
	return url, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	return ""
}

// MealService analyzes meal photos: it labels the food and estimates macros.
type MealService struct {
	describer *VisionDescriber
	macros    *MacroEstimator
	photos    PhotoStore
	logger    *zap.Logger
}

var _ IMealService = (*MealService)(nil)

// NewMealService creates a meal service. photos may be nil to skip storage.
func NewMealService(describer *VisionDescriber, macros *MacroEstimator, photos PhotoStore, logger *zap.Logger) *MealService {
	return &MealService{describer: describer, macros: macros, photos: photos, logger: logger.Named("meal-service")}
}

// Analyze labels the photo and estimates its macros. Classification errors
// fail the request; macro and storage errors do not.
func (s *MealService) Analyze(ctx context.Context, image []byte, contentType string) (*types.ImageAnalysis, error) {
	description, labels, err := s.describer.Describe(ctx, image)
	if err != nil {
		return nil, err
	}

	analysis := &types.ImageAnalysis{
		Description: description,
		Labels:      labels,
		Macros:      s.macros.Estimate(ctx, description),
		AnalyzedAt:  time.Now().UTC(),
	}

	if s.photos != nil {
		url, err := s.photos.Put(ctx, image, contentType)
		if err != nil {
			s.logger.Warn("failed to store meal photo", zap.Error(err))
		} else {
			analysis.ImageURL = url
		}
	}

	s.logger.Info("meal analyzed",
		zap.Strings("labels", labels),
		zap.Int("calories", analysis.Macros.Calories))
	return analysis, nil
}
