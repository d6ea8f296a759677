package mocks

import (
	"context"

	"zotregistry.dev/zarc/pkg/inventory/types"
)

type InventoryMock struct {
	ListRepositoriesFn func(ctx context.Context, filter string) ([]string, error)

	ListImagesFn func(ctx context.Context, repository string) ([]types.ImageRecord, error)
}

func (inventoryMock InventoryMock) ListRepositories(ctx context.Context, filter string) ([]string, error) {
	if inventoryMock.ListRepositoriesFn != nil {
		return inventoryMock.ListRepositoriesFn(ctx, filter)
	}

	return []string{}, nil
}

func (inventoryMock InventoryMock) ListImages(ctx context.Context, repository string) ([]types.ImageRecord, error) {
	if inventoryMock.ListImagesFn != nil {
		return inventoryMock.ListImagesFn(ctx, repository)
	}

	return []types.ImageRecord{}, nil
}
