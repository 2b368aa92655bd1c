package config

import (
	"time"
)

var Version = "0.3.0"

var (
	DefaultGuardURL       = "http://localhost:8000"
	DefaultTimeout        = 30 * time.Second
	DefaultPollInterval   = 5 * time.Second
	DefaultPollRetries    = 3
	DefaultMaxArchiveSize = "100MiB"
	DefaultModDelay       = 30 * time.Second
)

type GuardConfig struct {
	URL          string        `yaml:"url" mapstructure:"url" desc:"URL to the Legacy Guard API (E.g http://localhost:8000)"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout" desc:"timeout applied to each request to the API"`
	PollInterval time.Duration `yaml:"pollInterval" mapstructure:"poll_interval" desc:"delay between two status fetches while a job is running"`
	PollRetries  int           `yaml:"pollRetries" mapstructure:"poll_retries" desc:"bounded retries with backoff for a failed status fetch"`
	Insecure     bool          `yaml:"insecure" mapstructure:"insecure" desc:"do not check API certificates"`
}

type S3Config struct {
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint" desc:"S3 endpoint for s3:// archive sources"`
	Region          string `yaml:"region" mapstructure:"region" desc:"S3 region"`
	AccessKeyID     string `yaml:"accessKeyId" mapstructure:"access_key_id" desc:"S3 access key id"`
	SecretAccessKey string `yaml:"secretAccessKey" mapstructure:"secret_access_key" password:"true" desc:"S3 secret access key"`
	Insecure        bool   `yaml:"insecure" mapstructure:"insecure" desc:"do not check S3 certificates"`
	UsePathStyle    bool   `yaml:"usePathStyle" mapstructure:"use_path_style" desc:"use path-style S3 addressing (minio)"`
}

type HistoryConfig struct {
	Location string `yaml:"location" mapstructure:"location" desc:"location of the submission history database (leave empty for in-memory store, lost on exit)"`
}

type MonitoringConfig struct {
	PreScan           bool          `yaml:"preScan" mapstructure:"pre_scan" desc:"submit archives already present in watched folders when watching starts"`
	Period            time.Duration `yaml:"period" mapstructure:"period" desc:"interval between periodic re-walks of watched folders"`
	ModificationDelay time.Duration `yaml:"modificationDelay" mapstructure:"modification_delay" desc:"delay after the last write before a dropped archive is submitted"`
}

type ReportConfig struct {
	Location string `yaml:"location" mapstructure:"location" desc:"file path for findings reports (leave empty to print to stdout)"`
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose" desc:"render finding descriptions and recommendations, not only the summary lines"`
}

type Config struct {
	// global
	Config         string   `yaml:"config" mapstructure:"config" desc:"path to configuration file"`
	ProjectName    string   `yaml:"projectName" mapstructure:"project_name" desc:"display name of the project (defaults to the archive filename)"`
	Language       string   `yaml:"language" mapstructure:"language" desc:"source language of the project (cobol, c, cpp, java, fortran; empty for unspecified)"`
	Branch         string   `yaml:"branch" mapstructure:"branch" desc:"branch to clone when the target is a git repository (empty for the remote default branch)"`
	MaxArchiveSize string   `yaml:"maxArchiveSize" mapstructure:"max_archive_size" desc:"maximum size of an archive to submit (e.g. '100MiB')"`
	Debug          bool     `yaml:"debug" mapstructure:"debug" desc:"print debug strings"`
	Paths          []string `yaml:"paths" mapstructure:"paths" desc:"folders to watch for dropped archives"`

	Guard      GuardConfig      `yaml:"guard" mapstructure:"guard" desc:"Legacy Guard API configuration"`
	S3         S3Config         `yaml:"s3" mapstructure:"s3" desc:"S3 archive source configuration"`
	History    HistoryConfig    `yaml:"history" mapstructure:"history" desc:"submission history configuration"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring" desc:"watch mode configuration"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report" desc:"findings report configuration"`
}
