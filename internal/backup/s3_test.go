package backup

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func TestUpload(t *testing.T) {
	client := &mockS3{}
	u := &S3Uploader{client: client, bucket: "paas-backups", logger: zerolog.Nop()}
	ctx := context.Background()

	client.On("PutObject", ctx, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, _ := io.ReadAll(in.Body)
		return aws.ToString(in.Bucket) == "paas-backups" &&
			aws.ToString(in.Key) == "backups/acme/acme-db/x.dump" &&
			aws.ToInt64(in.ContentLength) == 4 &&
			string(body) == "dump"
	})).Return(&s3.PutObjectOutput{}, nil)

	err := u.Upload(ctx, "backups/acme/acme-db/x.dump", strings.NewReader("dump"), 4)
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestUpload_Error(t *testing.T) {
	client := &mockS3{}
	u := &S3Uploader{client: client, bucket: "paas-backups", logger: zerolog.Nop()}
	ctx := context.Background()

	client.On("PutObject", ctx, mock.Anything).Return(nil, errors.New("access denied"))

	err := u.Upload(ctx, "k", strings.NewReader(""), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload backup k")
}

func TestNewS3Uploader(t *testing.T) {
	u := NewS3Uploader(S3Config{Endpoint: "http://minio:9000", Region: "us-east-1", Bucket: "b", AccessKey: "a", SecretKey: "s"}, zerolog.Nop())
	assert.Equal(t, "b", u.Bucket())
	assert.NotNil(t, u.client)
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, "backups/acme/acme-db/20260304T050607Z.dump", ObjectKey("acme", "acme-db", at))
}
