package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"zotregistry.dev/zarc/pkg/config"
	"zotregistry.dev/zarc/pkg/inventory/snapshot"
	zlog "zotregistry.dev/zarc/pkg/log"
)

func newSnapshotCmd(conf *config.Config) *cobra.Command {
	showSpinner := true

	// "snapshot"
	snapshotCmd := &cobra.Command{
		Use:   "snapshot <config> <file>",
		Short: "`snapshot` captures the configured inventory into a local file",
		Long: "`snapshot` captures the repositories selected by the configured inventory into a bbolt file " +
			"which `evaluate` can replay with the snapshot driver",
		Args: cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := LoadConfiguration(conf, args[0]); err != nil {
				return err
			}

			cmd.SilenceUsage = true

			log := zlog.NewLogger(conf.Log.Level, conf.Log.Output)

			source, err := newInventory(cmd.Context(), conf, log)
			if err != nil {
				return err
			}

			defer source.close() //nolint:errcheck

			store, err := snapshot.Create(args[1], log.Component("snapshot"))
			if err != nil {
				return err
			}

			defer store.Close()

			spin := newSpinner(cmd.ErrOrStderr(), "Capturing inventory ", showSpinner)
			spin.startSpinner()

			info, err := store.Capture(cmd.Context(), source, snapshot.Info{
				Source: source.driver,
				Region: source.region,
				Filter: conf.Inventory.Repository,
			})

			spin.stopSpinner()

			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "captured %d repositories and %d images into %s\n",
				len(info.Repositories), info.Images, args[1])

			return nil
		},
	}

	addSpinnerFlag(snapshotCmd, &showSpinner)

	return snapshotCmd
}
