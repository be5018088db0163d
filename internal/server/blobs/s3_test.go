package blobs

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/artivault/internal/common"
	sc "github.com/dmitrijs2005/artivault/internal/server/config"
)

func testConfig() *sc.Config {
	return &sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "artivault",
	}
}

func stubSeams(t *testing.T) {
	t.Helper()
	origLoad, origNew, origPut, origPresign := loadDefaultAWSConfig, newS3ClientFromConfig, putObject, presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig, newS3ClientFromConfig, putObject, presignGetObject = origLoad, origNew, origPut, origPresign
	})
}

func TestNewS3Store_AppliesConfig(t *testing.T) {
	stubSeams(t)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return s3.New(s3.Options{Region: "us-east-1"})
	}

	store, err := NewS3Store(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, "artivault", store.bucket)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Store_ConfigError(t *testing.T) {
	stubSeams(t)
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no creds")
	}

	_, err := NewS3Store(context.Background(), testConfig())
	assert.ErrorContains(t, err, "no creds")
}

func TestS3Store_PutAndPresign(t *testing.T) {
	stubSeams(t)

	var put *s3.PutObjectInput
	var body []byte
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) error {
		put = in
		var err error
		body, err = io.ReadAll(in.Body)
		return err
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: "https://s3/" + *in.Bucket + "/" + *in.Key}, nil
	}

	store := &S3Store{bucket: "artivault"}
	require.NoError(t, store.Put(context.Background(), FileKey("abc"), []byte("MZ"), "application/octet-stream"))
	assert.Equal(t, "files/abc", *put.Key)
	assert.Equal(t, int64(2), *put.ContentLength)
	assert.Equal(t, "application/octet-stream", *put.ContentType)
	assert.Equal(t, []byte("MZ"), body)

	url, err := store.PresignGet(context.Background(), FileKey("abc"))
	require.NoError(t, err)
	assert.Equal(t, "https://s3/artivault/files/abc", url)
}

func TestS3Store_Errors(t *testing.T) {
	stubSeams(t)
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) error {
		return errors.New("denied")
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("sign failed")
	}

	store := &S3Store{bucket: "artivault"}
	assert.ErrorContains(t, store.Put(context.Background(), "k", nil, ""), "denied")
	_, err := store.PresignGet(context.Background(), "k")
	assert.ErrorContains(t, err, "sign failed")
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	_, err := m.PresignGet(ctx, "files/x")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	require.NoError(t, m.Put(ctx, "files/x", []byte("data"), ""))
	url, err := m.PresignGet(ctx, "files/x")
	require.NoError(t, err)
	assert.Equal(t, "memory://files/x", url)

	got, ok := m.Get("files/x")
	assert.True(t, ok)
	assert.Equal(t, []byte("data"), got)
}
