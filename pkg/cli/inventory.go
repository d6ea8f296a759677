package cli

import (
	"context"
	"fmt"

	zerr "zotregistry.dev/zarc/errors"
	"zotregistry.dev/zarc/pkg/config"
	"zotregistry.dev/zarc/pkg/inventory/ecr"
	"zotregistry.dev/zarc/pkg/inventory/snapshot"
	"zotregistry.dev/zarc/pkg/inventory/types"
	zlog "zotregistry.dev/zarc/pkg/log"
)

// source is the configured inventory along with what the report says about it.
type source struct {
	types.Inventory

	driver string
	region string
	close  func() error
}

func newInventory(ctx context.Context, conf *config.Config, log zlog.Logger) (source, error) {
	switch conf.Inventory.Driver {
	case config.ECRDriver:
		inventory, err := ecr.New(ctx, ecr.Config{
			Region:     conf.Inventory.Region,
			RegistryID: conf.Inventory.RegistryID,
			PageSize:   conf.Inventory.PageSize,
			MaxRetries: conf.Inventory.MaxRetries,
		}, log.Component("inventory"))
		if err != nil {
			return source{}, err
		}

		return source{
			Inventory: inventory,
			driver:    config.ECRDriver,
			region:    conf.Inventory.Region,
			close:     func() error { return nil },
		}, nil
	case config.SnapshotDriver:
		store, err := snapshot.Open(conf.Inventory.SnapshotPath, log.Component("snapshot"))
		if err != nil {
			return source{}, err
		}

		info, err := store.Info()
		if err != nil {
			store.Close()

			return source{}, err
		}

		log.Info().Str("path", conf.Inventory.SnapshotPath).Time("capturedAt", info.CapturedAt).
			Str("source", info.Source).Int("repositories", len(info.Repositories)).Msg("replaying snapshot")

		return source{
			Inventory: store,
			driver:    config.SnapshotDriver,
			region:    info.Region,
			close:     store.Close,
		}, nil
	default:
		return source{}, fmt.Errorf("%w: %q", zerr.ErrUnknownInventory, conf.Inventory.Driver)
	}
}
