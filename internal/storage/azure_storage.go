package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureBackend stores each key as one blob in a container. Blob storage has
// no practical size limit, so the quota is checked per value.
type AzureBackend struct {
	client    *azblob.Client
	container string
	quota     int64
}

var _ Backend = (*AzureBackend)(nil)

// NewAzureBackend connects with a shared key and makes sure the container exists
func NewAzureBackend(ctx context.Context, accountName, accountKey, container string, quota int64) (*AzureBackend, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	b := &AzureBackend{client: client, container: container, quota: quota}
	if err := b.ensureContainer(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *AzureBackend) ensureContainer(ctx context.Context) error {
	_, err := b.client.CreateContainer(ctx, b.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("%w: create container %s: %v", ErrUnavailable, b.container, err)
	}
	return nil
}

func (b *AzureBackend) Get(ctx context.Context, key string) (string, error) {
	resp, err := b.client.DownloadStream(ctx, b.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: download %s: %v", ErrUnavailable, key, err)
	}

	body := resp.Body
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrUnavailable, key, err)
	}
	return string(data), nil
}

func (b *AzureBackend) Set(ctx context.Context, key, value string) error {
	if b.quota > 0 && int64(len(value)) > b.quota {
		return ErrQuotaExceeded
	}
	if _, err := b.client.UploadBuffer(ctx, b.container, key, []byte(value), nil); err != nil {
		return fmt.Errorf("%w: upload %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (b *AzureBackend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteBlob(ctx, b.container, key, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (b *AzureBackend) Close() error { return nil }
