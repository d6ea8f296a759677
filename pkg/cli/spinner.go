package cli

import (
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

const (
	spinnerDuration = 150 * time.Millisecond
	spinnerFlag     = "spinner"
)

type spinnerState struct {
	spinner *spinner.Spinner
	enabled bool
}

// newSpinner writes to stderr so the report on stdout stays clean.
func newSpinner(writer io.Writer, prefix string, enabled bool) *spinnerState {
	spin := spinner.New(spinner.CharSets[39], spinnerDuration, spinner.WithWriter(writer))
	spin.Prefix = prefix

	return &spinnerState{spinner: spin, enabled: enabled}
}

func (spinner *spinnerState) startSpinner() {
	if spinner.enabled {
		spinner.spinner.Start()
	}
}

func (spinner *spinnerState) stopSpinner() {
	if spinner.enabled && spinner.spinner.Active() {
		spinner.spinner.Stop()
	}
}

func addSpinnerFlag(cmd *cobra.Command, enabled *bool) {
	cmd.Flags().BoolVar(enabled, spinnerFlag, true, "show a progress spinner on stderr while the inventory is scanned")
}
