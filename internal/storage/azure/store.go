package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"hirevoice/interview/internal/storage"
)

// Store keeps objects in one Azure Blob Storage container.
type Store struct {
	client    *azblob.Client
	container string
}

// NewStore connects with a connection string and makes sure the container
// exists.
func NewStore(ctx context.Context, connectionString, container string) (*Store, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	if _, err := client.CreateContainer(ctx, container, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, fmt.Errorf("failed to ensure container %s: %w", container, err)
	}
	return &Store{client: client, container: container}, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (*storage.Object, error) {
	_, err := s.client.UploadBuffer(ctx, s.container, key, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload blob %s: %w", key, err)
	}

	url := s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(key).URL()
	return &storage.Object{Key: key, URL: url}, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteBlob(ctx, s.container, key, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}
