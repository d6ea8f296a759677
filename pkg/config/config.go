package config

import (
	"github.com/spf13/viper"
	"github.com/tiendc/go-deepcopy"

	"zotregistry.dev/zarc/pkg/aggregate"
	"zotregistry.dev/zarc/pkg/eligibility"
	"zotregistry.dev/zarc/pkg/estimate"
	"zotregistry.dev/zarc/pkg/inventory/ecr"
	"zotregistry.dev/zarc/pkg/report"
)

var (
	Commit     string // nolint: gochecknoglobals
	ReleaseTag string // nolint: gochecknoglobals
	GoVersion  string // nolint: gochecknoglobals
)

const (
	ECRDriver      = "ecr"
	SnapshotDriver = "snapshot"

	DefaultRegion = "us-east-1"
)

type LogConfig struct {
	Level  string
	Output string
}

type InventoryConfig struct {
	Driver     string
	Region     string
	RegistryID string
	// Repository is a repository name or a glob, empty for every repository.
	Repository   string
	SnapshotPath string
	PageSize     int
	MaxRetries   int
}

type PolicyConfig struct {
	Variant    string
	StartDate  string
	EndDate    string
	CutoffDays int
}

type EstimateConfig struct {
	ThroughputMBps float64
}

type ReportConfig struct {
	Format string
	// Directory receives the report file, empty prints to stdout only.
	Directory string
	TopN      int
}

type MetricsConfig struct {
	Enable bool
	// Textfile is where metrics are written in the node exporter textfile format.
	Textfile string
}

type Config struct {
	Commit     string `mapstructure:",omitempty"`
	ReleaseTag string `mapstructure:",omitempty"`
	GoVersion  string `mapstructure:",omitempty"`

	Log       LogConfig
	Inventory InventoryConfig
	Policy    PolicyConfig
	Estimate  EstimateConfig
	Report    ReportConfig
	Workers   int
	Metrics   MetricsConfig
}

func New() *Config {
	return &Config{
		Commit:     Commit,
		ReleaseTag: ReleaseTag,
		GoVersion:  GoVersion,
		Log:        LogConfig{Level: "info"},
		Inventory: InventoryConfig{
			Driver:     ECRDriver,
			Region:     DefaultRegion,
			PageSize:   ecr.DefaultPageSize,
			MaxRetries: ecr.DefaultMaxRetries,
		},
		Policy: PolicyConfig{
			Variant:    string(eligibility.DateRangeVariant),
			CutoffDays: eligibility.DefaultCutoffDays,
		},
		Estimate: EstimateConfig{ThroughputMBps: estimate.DefaultThroughputMBps},
		Report:   ReportConfig{Format: report.TextFormat, Directory: ".", TopN: aggregate.DefaultTopN},
		Workers:  1,
	}
}

// Sanitize makes a copy of the config fit for logging, the registry account is masked.
func (c *Config) Sanitize() *Config {
	sanitizedConfig := &Config{}

	if err := deepcopy.Copy(sanitizedConfig, c); err != nil {
		panic(err)
	}

	if id := c.Inventory.RegistryID; len(id) > 4 { //nolint:mnd
		sanitizedConfig.Inventory.RegistryID = "******" + id[len(id)-4:]
	}

	return sanitizedConfig
}

// BindEnv maps the environment variables understood since the first releases onto config keys.
func BindEnv(viperInstance *viper.Viper) error {
	bindings := map[string]string{
		"policy::startDate":     "START_DATE",
		"policy::endDate":       "END_DATE",
		"inventory::repository": "ECR_REPOSITORY_NAME",
		"inventory::region":     "AWS_REGION",
	}

	for key, env := range bindings {
		if err := viperInstance.BindEnv(key, env); err != nil {
			return err
		}
	}

	return nil
}
