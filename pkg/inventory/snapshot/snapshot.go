package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.etcd.io/bbolt"

	zerr "zotregistry.dev/zarc/errors"
	"zotregistry.dev/zarc/pkg/inventory/types"
	zlog "zotregistry.dev/zarc/pkg/log"
)

const (
	dbPerms     = 0o600
	openTimeout = 10 * time.Second
)

// Info describes a captured snapshot. Repositories keeps the source listing order.
type Info struct {
	CapturedAt   time.Time `json:"capturedAt"`
	Source       string    `json:"source"`
	Region       string    `json:"region,omitempty"`
	Filter       string    `json:"filter,omitempty"`
	Repositories []string  `json:"repositories"`
	Images       int       `json:"images"`
}

// Store is an inventory persisted in a bbolt file, for offline evaluation runs.
type Store struct {
	DB  *bbolt.DB
	Log zlog.Logger
}

// Create opens path for writing, creating the file and its buckets when needed.
func Create(path string, log zlog.Logger) (*Store, error) {
	boltDB, err := bbolt.Open(path, dbPerms, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to create snapshot")

		return nil, err
	}

	err = boltDB.Update(func(transaction *bbolt.Tx) error {
		if _, err := transaction.CreateBucketIfNotExists([]byte(RepositoriesBucket)); err != nil {
			return err
		}

		_, err := transaction.CreateBucketIfNotExists([]byte(MetaBucket))

		return err
	})
	if err != nil {
		boltDB.Close()

		return nil, err
	}

	return &Store{DB: boltDB, Log: log}, nil
}

// Open opens an existing snapshot read only.
func Open(path string, log zlog.Logger) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", zerr.ErrSnapshotNotFound, path)
		}

		return nil, err
	}

	boltDB, err := bbolt.Open(path, dbPerms, &bbolt.Options{Timeout: openTimeout, ReadOnly: true})
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to open snapshot")

		return nil, err
	}

	store := &Store{DB: boltDB, Log: log}

	if _, err := store.Info(); err != nil {
		boltDB.Close()

		return nil, err
	}

	return store, nil
}

func (store *Store) Close() error {
	return store.DB.Close()
}

// Info returns the capture metadata, ErrSnapshotEmpty when nothing was captured.
func (store *Store) Info() (Info, error) {
	var info Info

	err := store.DB.View(func(tx *bbolt.Tx) error {
		metaBuck := tx.Bucket([]byte(MetaBucket))
		if metaBuck == nil {
			return fmt.Errorf("%w: %s", zerr.ErrBucketNotFound, MetaBucket)
		}

		blob := metaBuck.Get([]byte(infoKey))
		if len(blob) == 0 {
			return zerr.ErrSnapshotEmpty
		}

		return jsoniter.Unmarshal(blob, &info)
	})
	if errors.Is(err, zerr.ErrBucketNotFound) {
		return Info{}, fmt.Errorf("%w: %w", zerr.ErrSnapshotEmpty, err)
	}

	return info, err
}

// ListRepositories returns the captured repositories in capture order. A named filter
// must have been captured.
func (store *Store) ListRepositories(ctx context.Context, filter string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if filter != "" {
		found := false

		err := store.DB.View(func(tx *bbolt.Tx) error {
			reposBuck := tx.Bucket([]byte(RepositoriesBucket))
			if reposBuck == nil {
				return fmt.Errorf("%w: %s", zerr.ErrBucketNotFound, RepositoriesBucket)
			}

			found = reposBuck.Get([]byte(filter)) != nil

			return nil
		})
		if err != nil {
			return nil, err
		}

		if !found {
			return nil, fmt.Errorf("%w: %s", zerr.ErrRepoNotFound, filter)
		}

		return []string{filter}, nil
	}

	info, err := store.Info()
	if err != nil {
		return nil, err
	}

	return append([]string{}, info.Repositories...), nil
}

func (store *Store) ListImages(ctx context.Context, repository string) ([]types.ImageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	images := []types.ImageRecord{}

	err := store.DB.View(func(tx *bbolt.Tx) error {
		reposBuck := tx.Bucket([]byte(RepositoriesBucket))
		if reposBuck == nil {
			return fmt.Errorf("%w: %s", zerr.ErrBucketNotFound, RepositoriesBucket)
		}

		blob := reposBuck.Get([]byte(repository))
		if blob == nil {
			return fmt.Errorf("%w: %s", zerr.ErrRepoNotFound, repository)
		}

		return jsoniter.Unmarshal(blob, &images)
	})
	if err != nil {
		return nil, err
	}

	return images, nil
}

// Capture copies the repositories of source selected by info.Filter into the store,
// replacing whatever was captured before. The previous capture is kept when listing fails.
func (store *Store) Capture(ctx context.Context, source types.Inventory, info Info) (Info, error) {
	repos, err := types.SelectRepositories(ctx, source, info.Filter)
	if err != nil {
		return Info{}, err
	}

	blobs := make([][]byte, 0, len(repos))

	info.Repositories = repos
	info.Images = 0

	for _, repo := range repos {
		images, err := source.ListImages(ctx, repo)
		if err != nil {
			store.Log.Error().Err(err).Str("repository", repo).Msg("failed to capture repository")

			return Info{}, fmt.Errorf("capturing %s: %w", repo, err)
		}

		blob, err := jsoniter.Marshal(images)
		if err != nil {
			return Info{}, err
		}

		blobs = append(blobs, blob)
		info.Images += len(images)

		store.Log.Debug().Str("repository", repo).Int("images", len(images)).Msg("captured repository")
	}

	if info.CapturedAt.IsZero() {
		info.CapturedAt = time.Now().UTC()
	}

	infoBlob, err := jsoniter.Marshal(info)
	if err != nil {
		return Info{}, err
	}

	err = store.DB.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(RepositoriesBucket)) != nil {
			if err := tx.DeleteBucket([]byte(RepositoriesBucket)); err != nil {
				return err
			}
		}

		reposBucket, err := tx.CreateBucket([]byte(RepositoriesBucket))
		if err != nil {
			return err
		}

		for idx, repo := range repos {
			if err := reposBucket.Put([]byte(repo), blobs[idx]); err != nil {
				return err
			}
		}

		return tx.Bucket([]byte(MetaBucket)).Put([]byte(infoKey), infoBlob)
	})
	if err != nil {
		store.Log.Error().Err(err).Msg("failed to write snapshot")

		return Info{}, err
	}

	store.Log.Info().Int("repositories", len(repos)).Int("images", info.Images).Str("source", info.Source).
		Msg("snapshot captured")

	return info, nil
}
