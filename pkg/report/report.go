package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	zerr "zotregistry.dev/zarc/errors"
	"zotregistry.dev/zarc/pkg/aggregate"
	"zotregistry.dev/zarc/pkg/eligibility"
	"zotregistry.dev/zarc/pkg/evaluator"
	zlog "zotregistry.dev/zarc/pkg/log"
)

const (
	TextFormat = "text"
	JSONFormat = "json"
	YAMLFormat = "yaml"
	ymlFormat  = "yml"

	filePrefix     = "migration_report_"
	fileTimeLayout = "20060102_150405"

	defaultDirPerms  = 0o755
	defaultFilePerms = 0o644
)

func Formats() []string {
	return []string{TextFormat, JSONFormat, YAMLFormat}
}

// ValidateFormat accepts the output formats known to the renderer, case insensitive.
func ValidateFormat(format string) error {
	switch strings.ToLower(format) {
	case "", TextFormat, JSONFormat, YAMLFormat, ymlFormat:
		return nil
	default:
		return fmt.Errorf("%w: %q, expected one of %s", zerr.ErrInvalidOutputFormat, format,
			strings.Join(Formats(), ", "))
	}
}

// Criteria is the policy selection a report was produced with.
type Criteria struct {
	Policy     eligibility.Variant `json:"policy"`
	StartDate  string              `json:"startDate"`
	EndDate    string              `json:"endDate"`
	CutoffDays int                 `json:"cutoffDays"`
}

// Metadata describes where the inventory came from.
type Metadata struct {
	Region string
	Source string
	// Scope is the repository filter, empty for the whole registry.
	Scope    string
	Criteria Criteria
}

type Report struct {
	RunID        string                       `json:"runId"`
	GeneratedAt  time.Time                    `json:"generatedAt"`
	Region       string                       `json:"region,omitempty"`
	Source       string                       `json:"source"`
	Scope        string                       `json:"scope,omitempty"`
	Criteria     Criteria                     `json:"criteria"`
	Repositories []evaluator.RepositoryResult `json:"repositories"`
	Summary      aggregate.GlobalReport       `json:"summary"`
}

func New(run evaluator.RunResult, summary aggregate.GlobalReport, meta Metadata, generatedAt time.Time) Report {
	repos := run.Repositories
	if repos == nil {
		repos = []evaluator.RepositoryResult{}
	}

	return Report{
		RunID:        uuid.NewString(),
		GeneratedAt:  generatedAt,
		Region:       meta.Region,
		Source:       meta.Source,
		Scope:        meta.Scope,
		Criteria:     meta.Criteria,
		Repositories: repos,
		Summary:      summary,
	}
}

// String renders the report in the requested format.
func (rep Report) String(format string) (string, error) {
	switch strings.ToLower(format) {
	case "", TextFormat:
		return rep.stringPlainText(), nil
	case JSONFormat:
		return rep.stringJSON()
	case ymlFormat, YAMLFormat:
		return rep.stringYAML()
	default:
		return "", fmt.Errorf("%w: %q", zerr.ErrInvalidOutputFormat, format)
	}
}

// Filename is the timestamped report file name for format.
func Filename(generatedAt time.Time, format string) string {
	ext := strings.ToLower(format)

	switch ext {
	case "", TextFormat:
		ext = "txt"
	case ymlFormat:
		ext = YAMLFormat
	}

	return filePrefix + generatedAt.Format(fileTimeLayout) + "." + ext
}

// Writer prints a report to the console and, when a directory is set, to a report file.
type Writer struct {
	format    string
	directory string
	console   io.Writer
	log       zlog.Logger
}

func NewWriter(format, directory string, console io.Writer, log zlog.Logger) Writer {
	return Writer{
		format:    format,
		directory: directory,
		console:   console,
		log:       log,
	}
}

// Write renders rep and returns the path of the report file, empty when only the console was written.
func (w Writer) Write(rep Report) (string, error) {
	body, err := rep.String(w.format)
	if err != nil {
		return "", err
	}

	if w.directory == "" {
		_, err := io.WriteString(w.console, body)

		return "", err
	}

	if err := os.MkdirAll(w.directory, defaultDirPerms); err != nil {
		w.log.Error().Err(err).Str("directory", w.directory).Msg("failed to create report directory")

		return "", err
	}

	reportPath := filepath.Join(w.directory, Filename(rep.GeneratedAt, w.format))

	file, err := os.OpenFile(reportPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, defaultFilePerms)
	if err != nil {
		w.log.Error().Err(err).Str("path", reportPath).Msg("failed to create report file")

		return "", err
	}

	out := io.MultiWriter(w.console, file)

	if err := writeBody(out, body, w.format, reportPath); err != nil {
		file.Close()

		return "", err
	}

	if err := file.Close(); err != nil {
		w.log.Error().Err(err).Str("path", reportPath).Msg("failed to close report file")

		return "", err
	}

	w.log.Info().Str("path", reportPath).Str("runID", rep.RunID).Msg("report written")

	return reportPath, nil
}

func writeBody(out io.Writer, body, format, reportPath string) error {
	if _, err := io.WriteString(out, body); err != nil {
		return err
	}

	if isText(format) {
		if _, err := io.WriteString(out, savedFooter(reportPath)); err != nil {
			return err
		}
	}

	return nil
}

func isText(format string) bool {
	format = strings.ToLower(format)

	return format == "" || format == TextFormat
}
