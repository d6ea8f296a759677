package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	zerr "zotregistry.dev/zarc/errors"
	"zotregistry.dev/zarc/pkg/common"
	"zotregistry.dev/zarc/pkg/config"
	"zotregistry.dev/zarc/pkg/eligibility"
	zlog "zotregistry.dev/zarc/pkg/log"
)

const defaultEnvFile = ".env"

var logger = zlog.NewLogger("info", "") // Global logger for configuration loading

// metadataConfig reports metadata after parsing, which we use to track
// errors.
func metadataConfig(md *mapstructure.Metadata) viper.DecoderConfigOption {
	return func(c *mapstructure.DecoderConfig) {
		c.Metadata = md
	}
}

// dateToStringHookFunc keeps calendar dates as YYYY-MM-DD when a config format decodes them as timestamps.
func dateToStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to.Kind() != reflect.String {
			return data, nil
		}

		if date, ok := data.(time.Time); ok {
			return date.UTC().Format(eligibility.DateLayout), nil
		}

		return data, nil
	}
}

// LoadEnvFile exports the variables of a dotenv file. A missing default file is not an error.
func LoadEnvFile(path string, required bool) error {
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		logger.Error().Err(err).Str("path", path).Msg("failed to load env file")

		return err
	}

	logger.Debug().Str("path", path).Msg("loaded env file")

	return nil
}

func newVerifyCmd(conf *config.Config) *cobra.Command {
	// verify
	verifyCmd := &cobra.Command{
		Use:     "verify [config]",
		Aliases: []string{"validate"},
		Short:   "`verify` validates a zarc config file",
		Long:    "`verify` validates a zarc config file and the environment it is combined with",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			configPath := ""
			if len(args) > 0 {
				configPath = args[0]
			}

			if err := LoadConfiguration(conf, configPath); err != nil {
				logger.Error().Str("config", configPath).Msg("invalid config")

				return err
			}

			logger.Info().Str("config", configPath).Interface("params", conf.Sanitize()).Msg("config is valid")

			return nil
		},
	}

	return verifyCmd
}

// "zarc" - registry cold storage migration planner.
func NewRootCmd() *cobra.Command {
	showVersion := false
	envFile := defaultEnvFile
	conf := config.New()

	rootCmd := &cobra.Command{
		Use:   "zarc",
		Short: "`zarc` plans registry image migrations to cold storage",
		Long:  "`zarc` finds registry images worth moving to cold storage and estimates the transfer",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return LoadEnvFile(envFile, cmd.Flags().Changed("env-file"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				logger.Info().Str("commit", config.Commit).Str("release-tag", config.ReleaseTag).
					Str("go version", config.GoVersion).Msg("version")
			} else {
				_ = cmd.Usage()
				cmd.SilenceErrors = false
			}

			return nil
		},
	}

	// "evaluate"
	rootCmd.AddCommand(newEvaluateCmd(conf))
	// "snapshot"
	rootCmd.AddCommand(newSnapshotCmd(conf))
	// "verify"
	rootCmd.AddCommand(newVerifyCmd(conf))
	// "estimate"
	rootCmd.AddCommand(newEstimateCmd())
	// "version"
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show the version and exit")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile,
		"dotenv file with START_DATE, END_DATE, ECR_REPOSITORY_NAME and AWS_REGION")

	return rootCmd
}

// LoadConfiguration reads configPath, when set, and the bound environment into config,
// applies defaults and validates the result.
func LoadConfiguration(config *config.Config, configPath string) error {
	viperInstance := viper.NewWithOptions(viper.KeyDelimiter("::"))

	if err := bindEnv(viperInstance); err != nil {
		return err
	}

	if configPath != "" {
		if err := readConfigFile(viperInstance, configPath); err != nil {
			return err
		}
	}

	metaData := &mapstructure.Metadata{}

	decoderOpts := []viper.DecoderConfigOption{
		metadataConfig(metaData),
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				dateToStringHookFunc(),
			),
		),
	}

	if err := viperInstance.UnmarshalExact(config, decoderOpts...); err != nil {
		logger.Error().Err(err).Msg("failed to unmarshal new config")

		return err
	}

	if len(metaData.Keys) == 0 {
		msg := "failed to load config due to the absence of any key:value pair"
		logger.Error().Err(zerr.ErrBadConfig).Msg(msg)

		return fmt.Errorf("%w: %s", zerr.ErrBadConfig, msg)
	}

	if len(metaData.Unused) > 0 {
		msg := "failed to load config due to unknown keys"
		logger.Error().Err(zerr.ErrBadConfig).Strs("keys", metaData.Unused).Msg(msg)

		return fmt.Errorf("%w: %s", zerr.ErrBadConfig, msg)
	}

	// defaults
	applyDefaultValues(config)

	if err := config.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")

		return err
	}

	return nil
}

func bindEnv(viperInstance *viper.Viper) error {
	if err := config.BindEnv(viperInstance); err != nil {
		logger.Error().Err(err).Msg("failed to bind environment variables")

		return err
	}

	return nil
}

func readConfigFile(viperInstance *viper.Viper, configPath string) error {
	ext := filepath.Ext(configPath)
	ext = strings.Replace(ext, ".", "", 1)

	/* if file extension is not supported, try everything
	it's also possible that the filename is starting with a dot eg: ".config". */
	if !common.Contains(viper.SupportedExts, ext) {
		ext = ""
	}

	switch ext {
	case "":
		logger.Info().Str("path", configPath).Msg("config file with no extension, trying all supported config types")

		var err error

		for _, configType := range viper.SupportedExts {
			viperInstance.SetConfigType(configType)
			viperInstance.SetConfigFile(configPath)

			err = viperInstance.ReadInConfig()
			if err == nil {
				break
			}
		}

		if err != nil {
			logger.Error().Err(err).Str("path", configPath).
				Msg("failed to read configuration, tried all supported config types")

			return err
		}
	default:
		viperInstance.SetConfigFile(configPath)

		if err := viperInstance.ReadInConfig(); err != nil {
			logger.Error().Err(err).Str("path", configPath).Msg("failed to read configuration")

			return err
		}
	}

	return nil
}

func applyDefaultValues(config *config.Config) {
	config.Inventory.Driver = strings.ToLower(config.Inventory.Driver)
	config.Report.Format = strings.ToLower(config.Report.Format)

	if config.Report.Format == "" {
		config.Report.Format = "text"
	}
}
