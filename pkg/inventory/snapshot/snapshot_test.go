package snapshot_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	zerr "zotregistry.dev/zarc/errors"
	"zotregistry.dev/zarc/pkg/inventory/snapshot"
	"zotregistry.dev/zarc/pkg/inventory/types"
	"zotregistry.dev/zarc/pkg/log"
	"zotregistry.dev/zarc/pkg/test/mocks"
)

var errAccessDenied = errors.New("AccessDeniedException")

func source() mocks.InventoryMock {
	pulled := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)

	images := map[string][]types.ImageRecord{
		"zeta/app": {
			{
				Repository: "zeta/app", Tag: "v1", Digest: "sha256:01", SizeBytes: 100,
				PushedAt: time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC),
			},
			{
				Repository: "zeta/app", Tag: "v2", Tags: []string{"v2", "latest"}, SizeBytes: 50,
				PushedAt:     time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
				LastPulledAt: &pulled,
			},
		},
		"alpha/api": {},
	}

	return mocks.InventoryMock{
		ListRepositoriesFn: func(ctx context.Context, filter string) ([]string, error) {
			return []string{"zeta/app", "alpha/api"}, nil
		},
		ListImagesFn: func(ctx context.Context, repository string) ([]types.ImageRecord, error) {
			return images[repository], nil
		},
	}
}

func TestSnapshot(t *testing.T) {
	Convey("A captured inventory can be replayed offline", t, func() {
		path := filepath.Join(t.TempDir(), "inventory.db")

		store, err := snapshot.Create(path, log.NewNopLogger())
		So(err, ShouldBeNil)

		capturedAt := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

		info, err := store.Capture(context.Background(), source(), snapshot.Info{
			CapturedAt: capturedAt,
			Source:     "ecr",
			Region:     "eu-west-1",
		})
		So(err, ShouldBeNil)
		So(info.Repositories, ShouldResemble, []string{"zeta/app", "alpha/api"})
		So(info.Images, ShouldEqual, 2)
		So(store.Close(), ShouldBeNil)

		replay, err := snapshot.Open(path, log.NewNopLogger())
		So(err, ShouldBeNil)

		defer replay.Close()

		stored, err := replay.Info()
		So(err, ShouldBeNil)
		So(stored.Source, ShouldEqual, "ecr")
		So(stored.Region, ShouldEqual, "eu-west-1")
		So(stored.CapturedAt.Equal(capturedAt), ShouldBeTrue)

		Convey("repositories keep the capture order", func() {
			repos, err := replay.ListRepositories(context.Background(), "")
			So(err, ShouldBeNil)
			So(repos, ShouldResemble, []string{"zeta/app", "alpha/api"})
		})

		Convey("images are restored", func() {
			images, err := replay.ListImages(context.Background(), "zeta/app")
			So(err, ShouldBeNil)
			So(images, ShouldHaveLength, 2)
			So(images[0].Tag, ShouldEqual, "v1")
			So(images[0].Digest, ShouldEqual, "sha256:01")
			So(images[0].NeverPulled(), ShouldBeTrue)
			So(images[1].Tags, ShouldResemble, []string{"v2", "latest"})
			So(images[1].LastPulledAt, ShouldNotBeNil)
			So(images[1].LastPulledAt.Equal(time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)), ShouldBeTrue)

			empty, err := replay.ListImages(context.Background(), "alpha/api")
			So(err, ShouldBeNil)
			So(empty, ShouldBeEmpty)
		})

		Convey("named lookups", func() {
			repos, err := replay.ListRepositories(context.Background(), "alpha/api")
			So(err, ShouldBeNil)
			So(repos, ShouldResemble, []string{"alpha/api"})

			_, err = replay.ListRepositories(context.Background(), "missing")
			So(errors.Is(err, zerr.ErrRepoNotFound), ShouldBeTrue)

			_, err = replay.ListImages(context.Background(), "missing")
			So(errors.Is(err, zerr.ErrRepoNotFound), ShouldBeTrue)
		})

		Convey("cancelled reads", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := replay.ListImages(ctx, "zeta/app")
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})

	Convey("Capturing a filtered inventory", t, func() {
		path := filepath.Join(t.TempDir(), "inventory.db")

		store, err := snapshot.Create(path, log.NewNopLogger())
		So(err, ShouldBeNil)

		defer store.Close()

		info, err := store.Capture(context.Background(), source(), snapshot.Info{Source: "ecr", Filter: "zeta/*"})
		So(err, ShouldBeNil)
		So(info.Repositories, ShouldResemble, []string{"zeta/app"})
		So(info.CapturedAt.IsZero(), ShouldBeFalse)

		Convey("a new capture replaces the previous one", func() {
			info, err := store.Capture(context.Background(), source(), snapshot.Info{Source: "ecr", Filter: "alpha/*"})
			So(err, ShouldBeNil)
			So(info.Repositories, ShouldResemble, []string{"alpha/api"})

			_, err = store.ListImages(context.Background(), "zeta/app")
			So(errors.Is(err, zerr.ErrRepoNotFound), ShouldBeTrue)
		})

		Convey("a failed refresh keeps the previous capture", func() {
			failing := source()
			failing.ListImagesFn = func(ctx context.Context, repository string) ([]types.ImageRecord, error) {
				if repository == "alpha/api" {
					return nil, errAccessDenied
				}

				return source().ListImagesFn(ctx, repository)
			}

			_, err := store.Capture(context.Background(), failing, snapshot.Info{Source: "ecr"})
			So(errors.Is(err, errAccessDenied), ShouldBeTrue)

			kept, err := store.Info()
			So(err, ShouldBeNil)
			So(kept.Repositories, ShouldResemble, []string{"zeta/app"})
			So(kept.Filter, ShouldEqual, "zeta/*")
			So(kept.CapturedAt.Equal(info.CapturedAt), ShouldBeTrue)

			images, err := store.ListImages(context.Background(), "zeta/app")
			So(err, ShouldBeNil)
			So(images, ShouldHaveLength, 2)
		})
	})

	Convey("A failing source aborts the capture", t, func() {
		path := filepath.Join(t.TempDir(), "inventory.db")

		store, err := snapshot.Create(path, log.NewNopLogger())
		So(err, ShouldBeNil)

		failing := source()
		failing.ListImagesFn = func(ctx context.Context, repository string) ([]types.ImageRecord, error) {
			return nil, errAccessDenied
		}

		_, err = store.Capture(context.Background(), failing, snapshot.Info{Source: "ecr"})
		So(errors.Is(err, errAccessDenied), ShouldBeTrue)
		So(store.Close(), ShouldBeNil)

		_, err = snapshot.Open(path, log.NewNopLogger())
		So(errors.Is(err, zerr.ErrSnapshotEmpty), ShouldBeTrue)
	})

	Convey("Unusable snapshot files", t, func() {
		dir := t.TempDir()

		_, err := snapshot.Open(filepath.Join(dir, "missing.db"), log.NewNopLogger())
		So(errors.Is(err, zerr.ErrSnapshotNotFound), ShouldBeTrue)

		path := filepath.Join(dir, "empty.db")

		store, err := snapshot.Create(path, log.NewNopLogger())
		So(err, ShouldBeNil)
		So(store.Close(), ShouldBeNil)

		_, err = snapshot.Open(path, log.NewNopLogger())
		So(errors.Is(err, zerr.ErrSnapshotEmpty), ShouldBeTrue)

		garbage := filepath.Join(dir, "garbage.db")
		So(os.WriteFile(garbage, []byte("not a database"), 0o600), ShouldBeNil)

		_, err = snapshot.Open(garbage, log.NewNopLogger())
		So(err, ShouldNotBeNil)
	})
}
