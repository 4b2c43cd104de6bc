package s3sink

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	return &s3.PutObjectOutput{}, f.err
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw       string
		bucket    string
		key       string
		wantError bool
	}{
		{raw: "s3://reports/2024/companies.json", bucket: "reports", key: "2024/companies.json"},
		{raw: "S3://reports/out.csv", bucket: "reports", key: "out.csv"},
		{raw: "s3://reports", wantError: true},
		{raw: "s3://reports/dir/", wantError: true},
		{raw: "s3:///key", wantError: true},
		{raw: "https://reports/out.csv", wantError: true},
	}
	for _, tt := range tests {
		bucket, key, err := ParseURL(tt.raw)
		if tt.wantError {
			assert.ErrorIs(t, err, ErrInvalidURL, "raw=%q", tt.raw)
			continue
		}
		require.NoError(t, err, "raw=%q", tt.raw)
		assert.Equal(t, tt.bucket, bucket)
		assert.Equal(t, tt.key, key)
	}
}

func TestIsS3URL(t *testing.T) {
	assert.True(t, IsS3URL("s3://b/k"))
	assert.False(t, IsS3URL("out/s3.json"))
}

func TestUpload(t *testing.T) {
	fake := &fakeS3{}
	s := NewWithClient(fake, nil)

	require.NoError(t, s.Upload(context.Background(), "s3://reports/top.csv", "text/csv", []byte("a,b\n")))
	assert.Equal(t, "reports", aws.ToString(fake.in.Bucket))
	assert.Equal(t, "top.csv", aws.ToString(fake.in.Key))
	assert.Equal(t, "text/csv", aws.ToString(fake.in.ContentType))
	assert.Equal(t, int64(4), aws.ToInt64(fake.in.ContentLength))
	assert.Equal(t, "a,b\n", string(fake.body))
}

func TestUpload_Errors(t *testing.T) {
	s := NewWithClient(&fakeS3{err: errors.New("access denied")}, nil)
	err := s.Upload(context.Background(), "s3://reports/top.csv", "text/csv", nil)
	assert.ErrorContains(t, err, "access denied")

	err = s.Upload(context.Background(), "reports/top.csv", "text/csv", nil)
	assert.ErrorIs(t, err, ErrInvalidURL)
}
