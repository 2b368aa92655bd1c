package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/legacy-guard/guard-client/pkg/config"
	"github.com/legacy-guard/guard-client/pkg/handler"
	"github.com/legacy-guard/guard-client/pkg/intake"
)

var guardConfig = &config.Config{
	Config:         config.DefaultConfigPath,
	MaxArchiveSize: config.DefaultMaxArchiveSize,
	Guard: config.GuardConfig{
		URL:          config.DefaultGuardURL,
		Timeout:      config.DefaultTimeout,
		PollInterval: config.DefaultPollInterval,
		PollRetries:  config.DefaultPollRetries,
	},
	Monitoring: config.MonitoringConfig{
		ModificationDelay: config.DefaultModDelay,
	},
}

func initConfig() {
	if guardConfig.Config == "" {
		conf, err := config.GetConfigFile()
		if err != nil {
			logger.Error("could not create config file", slog.String("location", conf))
		}
		guardConfig.Config = conf
	}
	viper.SetConfigFile(guardConfig.Config)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		logger.Debug("can't read config", slog.String("error", err.Error()))
		return
	}
	if err := viper.Unmarshal(guardConfig); err != nil {
		logger.Error("can't unmarshal config", slog.String("error", err.Error()))
	}
}

func initRoot(rootCmd *cobra.Command) {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&guardConfig.Config, "config", config.DefaultConfigPath, "config file")
	rootCmd.PersistentFlags().StringVar(&guardConfig.Guard.URL, "guard-url", envOr("GUARD_URL", config.DefaultGuardURL), "Legacy Guard API url (E.g http://localhost:8000)")
	rootCmd.PersistentFlags().DurationVar(&guardConfig.Guard.Timeout, "timeout", config.DefaultTimeout, "Time allowed for each request to the API")
	rootCmd.PersistentFlags().DurationVar(&guardConfig.Guard.PollInterval, "poll-interval", config.DefaultPollInterval, "Delay between two status fetches while a job is running")
	rootCmd.PersistentFlags().IntVar(&guardConfig.Guard.PollRetries, "poll-retries", config.DefaultPollRetries, "Bounded retries with backoff for a failed status fetch")
	rootCmd.PersistentFlags().BoolVar(&guardConfig.Guard.Insecure, "insecure", guardConfig.Guard.Insecure, "do not check API certificates")

	rootCmd.PersistentFlags().StringVarP(&guardConfig.ProjectName, "project-name", "n", "", "Display name of the project (defaults to the archive filename)")
	rootCmd.PersistentFlags().StringVarP(&guardConfig.Language, "language", "l", "", "Source language of the project (cobol, c, cpp, java, fortran; empty for unspecified)")
	rootCmd.PersistentFlags().StringVar(&guardConfig.MaxArchiveSize, "max-archive-size", config.DefaultMaxArchiveSize, "Maximum size of an archive to submit (e.g. '100MiB')")
	rootCmd.PersistentFlags().BoolVarP(&guardConfig.Debug, "debug", "d", guardConfig.Debug, "print debug strings")
	rootCmd.PersistentFlags().BoolVarP(&guardConfig.Report.Verbose, "verbose", "v", guardConfig.Report.Verbose, "Render finding descriptions and recommendations, not only the summary lines")
	rootCmd.PersistentFlags().StringVar(&guardConfig.Report.Location, "report-location", "", "File path for findings reports (leave empty to print to stdout only)")
	rootCmd.PersistentFlags().StringVar(&guardConfig.History.Location, "history", "", fmt.Sprintf("Path to the database recording submitted analyses (e.g. %s; leave empty for in-memory store, lost on exit)", config.DefaultHistoryLocation))

	rootCmd.PersistentFlags().StringVar(&guardConfig.S3.Endpoint, "s3-endpoint", os.Getenv("GUARD_S3_ENDPOINT"), "S3 endpoint for s3:// archive sources")
	rootCmd.PersistentFlags().StringVar(&guardConfig.S3.Region, "s3-region", os.Getenv("GUARD_S3_REGION"), "S3 region")
	rootCmd.PersistentFlags().StringVar(&guardConfig.S3.AccessKeyID, "s3-access-key-id", os.Getenv("GUARD_S3_ACCESS_KEY_ID"), "S3 access key id")
	rootCmd.PersistentFlags().StringVar(&guardConfig.S3.SecretAccessKey, "s3-secret-access-key", os.Getenv("GUARD_S3_SECRET_ACCESS_KEY"), "S3 secret access key")
	rootCmd.PersistentFlags().BoolVar(&guardConfig.S3.UsePathStyle, "s3-path-style", guardConfig.S3.UsePathStyle, "use path-style S3 addressing (minio)")

	watchCmd.PersistentFlags().BoolVar(&guardConfig.Monitoring.PreScan, "pre-scan", false, "Immediately submit archives already present in watched folders")
	watchCmd.PersistentFlags().DurationVar(&guardConfig.Monitoring.Period, "scan-period", 0, "Time interval between periodic re-walks of watched folders (e.g., '1h', '30m')")
	watchCmd.PersistentFlags().DurationVar(&guardConfig.Monitoring.ModificationDelay, "mod-delay", config.DefaultModDelay, "Wait time after the last write before a dropped archive is submitted (e.g., '30s')")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var rootCmd = &cobra.Command{
	Use:   "guard-client",
	Short: "Legacy Guard client submits legacy codebases for vulnerability analysis",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		err = yaml.NewEncoder(os.Stdout).Encode(guardConfig)
		if err != nil {
			logger.Error("error encode yaml conf", slog.String("err", err.Error()))
			return
		}
		if err = cmd.Usage(); err != nil {
			return
		}
		return
	},
}

func initHandler(cmd *cobra.Command, _ []string) (err error) {
	if guardConfig.Debug {
		LogLevel.Set(slog.LevelDebug)
		logger.Debug("debug activated")
	}
	handler.ConsoleLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	guardHandler, err = handler.NewHandler(cmd.Context(), guardConfig)
	if err != nil {
		logger.Error("could not init guard client properly", slog.String("error", err.Error()))
		return
	}
	return nil
}

// checkTargets validates submission targets before the handler runs.
// Remote targets (git URLs, s3:// URIs) are resolved later.
func checkTargets(cmd *cobra.Command, args []string) error {
	targets := args
	targets = append(targets, guardConfig.Paths...)
	if len(targets) < 1 {
		return errors.New("at least one target is mandatory")
	}
	for _, target := range targets {
		if intake.IsRepositoryURL(target) || strings.HasPrefix(target, "s3://") {
			continue
		}
		if _, err := os.Stat(filepath.Clean(target)); err != nil {
			return fmt.Errorf("could not check target %s: %w", target, err)
		}
	}
	return nil
}
