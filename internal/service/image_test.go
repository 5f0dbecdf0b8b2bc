package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pageza/nutriplan/backend/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubClassifier struct {
	scores []LabelScore
	err    error
}

func (s stubClassifier) Classify(context.Context, []byte) ([]LabelScore, error) {
	return s.scores, s.err
}

type stubPhotoStore struct {
	url string
	err error
	put [][]byte
}

func (s *stubPhotoStore) Put(_ context.Context, data []byte, _ string) (string, error) {
	s.put = append(s.put, data)
	return s.url, s.err
}

func TestMealServiceAnalyze(t *testing.T) {
	gen := &scriptedGenerator{answers: []string{"Calories: 700\nProtein: 30\nCarbs: 90"}}
	photos := &stubPhotoStore{url: "https://bucket/meals/1.jpg"}
	svc := NewMealService(
		NewVisionDescriber(stubClassifier{scores: []LabelScore{{"burger", 0.9}, {"salad", 0.1}}}),
		NewMacroEstimator(gen, zap.NewNop()),
		photos,
		zap.NewNop(),
	)

	analysis, err := svc.Analyze(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "Detected food items: burger, salad", analysis.Description)
	assert.Equal(t, 700, analysis.Macros.Calories)
	assert.Equal(t, "https://bucket/meals/1.jpg", analysis.ImageURL)
	assert.Len(t, photos.put, 1)
}

func TestMealServiceToleratesMacroAndStorageFailures(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{errors.New("down")}}
	svc := NewMealService(
		NewVisionDescriber(stubClassifier{scores: []LabelScore{{"rice", 0.5}}}),
		NewMacroEstimator(gen, zap.NewNop()),
		&stubPhotoStore{err: errors.New("s3 down")},
		zap.NewNop(),
	)

	analysis, err := svc.Analyze(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Zero(t, analysis.Macros.Calories)
	assert.Empty(t, analysis.ImageURL)
}

func TestMealServiceClassifierFailure(t *testing.T) {
	svc := NewMealService(
		NewVisionDescriber(stubClassifier{err: errors.New("model loading")}),
		NewMacroEstimator(&scriptedGenerator{}, zap.NewNop()),
		nil,
		zap.NewNop(),
	)

	_, err := svc.Analyze(context.Background(), []byte("img"), "image/png")
	assert.Error(t, err)
}

func TestS3PhotoStorePut(t *testing.T) {
	var gotPath, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "test", SecretAccessKey: "test"}, nil
		}),
	})
	store := NewS3PhotoStore(&config.S3Config{Client: client, BucketName: "meal-photos"})

	url, err := store.Put(context.Background(), []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(gotPath, "/meal-photos/meals/"))
	assert.True(t, strings.HasSuffix(gotPath, ".jpg"))
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, "jpeg-bytes", gotBody)
	assert.Contains(t, url, "X-Amz-Signature")
}
