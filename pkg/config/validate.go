package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	zerr "zotregistry.dev/zarc/errors"
	"zotregistry.dev/zarc/pkg/eligibility"
	"zotregistry.dev/zarc/pkg/inventory/types"
	"zotregistry.dev/zarc/pkg/report"
)

const maxPageSize = 1000

// Validate checks the whole config and reports every problem found, wrapped in ErrBadConfig.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err))
	}

	result = multierror.Append(result, c.validateInventory()...)
	result = multierror.Append(result, c.validatePolicy()...)

	if c.Estimate.ThroughputMBps <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: got %v", zerr.ErrInvalidThroughput,
			c.Estimate.ThroughputMBps))
	}

	if err := report.ValidateFormat(c.Report.Format); err != nil {
		result = multierror.Append(result, err)
	}

	if c.Report.TopN < 0 {
		result = multierror.Append(result, fmt.Errorf("report topN must not be negative, got %d", c.Report.TopN))
	}

	if c.Workers < 1 {
		result = multierror.Append(result, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}

	if c.Metrics.Textfile != "" && !c.Metrics.Enable {
		result = multierror.Append(result, fmt.Errorf("metrics textfile %q is set but metrics are disabled",
			c.Metrics.Textfile))
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", zerr.ErrBadConfig, err)
	}

	return nil
}

func (c *Config) validateInventory() []error {
	errs := []error{}

	switch strings.ToLower(c.Inventory.Driver) {
	case ECRDriver:
	case SnapshotDriver:
		if c.Inventory.SnapshotPath == "" {
			errs = append(errs, fmt.Errorf("inventory driver %q requires snapshotPath", SnapshotDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", zerr.ErrUnknownInventory, c.Inventory.Driver))
	}

	if c.Inventory.PageSize < 1 || c.Inventory.PageSize > maxPageSize {
		errs = append(errs, fmt.Errorf("inventory pageSize must be between 1 and %d, got %d", maxPageSize,
			c.Inventory.PageSize))
	}

	if c.Inventory.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("inventory maxRetries must not be negative, got %d", c.Inventory.MaxRetries))
	}

	if err := types.ValidateFilter(c.Inventory.Repository); err != nil {
		errs = append(errs, err)
	}

	return errs
}

func (c *Config) validatePolicy() []error {
	errs := []error{}

	if _, err := eligibility.ParseVariant(c.Policy.Variant); err != nil {
		errs = append(errs, err)
	}

	if c.Policy.CutoffDays < 0 {
		errs = append(errs, fmt.Errorf("policy cutoffDays must not be negative, got %d", c.Policy.CutoffDays))
	}

	start, startErr := parseRequiredDate("startDate", c.Policy.StartDate)
	if startErr != nil {
		errs = append(errs, startErr)
	}

	end, endErr := parseRequiredDate("endDate", c.Policy.EndDate)
	if endErr != nil {
		errs = append(errs, endErr)
	}

	if startErr == nil && endErr == nil && start.After(end) {
		errs = append(errs, fmt.Errorf("%w: %s > %s", zerr.ErrInvalidDateRange, c.Policy.StartDate, c.Policy.EndDate))
	}

	return errs
}

func parseRequiredDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("policy %s is required (or set %s)", name, envName(name))
	}

	date, err := eligibility.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("policy %s: %w", name, err)
	}

	return date, nil
}

func envName(key string) string {
	if key == "startDate" {
		return "START_DATE"
	}

	return "END_DATE"
}

// Window returns the parsed start and end dates, call after Validate.
func (c *Config) Window() (time.Time, time.Time, error) {
	start, err := eligibility.ParseDate(c.Policy.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	end, err := eligibility.ParseDate(c.Policy.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	return start, end, nil
}
