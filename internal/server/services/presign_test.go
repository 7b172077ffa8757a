package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/server/config"
	"github.com/dmitrijs2005/drivekeeper/internal/server/models"
)

func TestChunkStorageKey(t *testing.T) {
	assert.Equal(t, "users/u1/abc/7", chunkStorageKey("u1", "abc", 7))
}

func TestUploadChunkURL_ConfigLoadErrorPropagates(t *testing.T) {
	stubPresign(t)

	wantErr := errors.New("no credentials")
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, wantErr
	}

	s := NewItemService(openTestDB(t), newFakeRepoManager(), &config.Config{MaxQuotaBytes: 1 << 20})

	_, err := s.UploadChunkURL(context.Background(), "u1", "up1", 0, common.ParentBase, "key")
	assert.ErrorIs(t, err, wantErr)
}

func TestDownloadChunkURL_PresignErrorPropagates(t *testing.T) {
	stubPresign(t)

	wantErr := errors.New("presign refused")
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, wantErr
	}

	m := newFakeRepoManager()
	s := NewItemService(openTestDB(t), m, &config.Config{MaxQuotaBytes: 1 << 20})

	require.NoError(t, m.itemRepo.Create(context.Background(), &models.Item{
		UUID: "file1", UserID: "u1", Type: common.ItemTypeFile, Parent: common.ParentBase, Chunks: 1,
	}))

	_, err := s.DownloadChunkURL(context.Background(), "u1", "file1", 0)
	assert.ErrorIs(t, err, wantErr)
}
