package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database    *dbConfig
	Queue       *queueConfig
	HotStorage  *hotStorageConfig
	ColdStorage *coldStorageConfig
	Worker      *workerConfig
	Service     *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"annotations"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

// queueConfig selects the channel backend and names the four logical
// channels the workers communicate through.
type queueConfig struct {
	Backend           string        `envconfig:"ANNOTATION_QUEUE_BACKEND" default:"postgres"`
	JobRequestQueue   string        `envconfig:"ANNOTATION_JOB_REQUEST_QUEUE" default:"job-requests"`
	JobCompletedQueue string        `envconfig:"ANNOTATION_JOB_COMPLETED_QUEUE" default:"job-completed"`
	ArchiveQueue      string        `envconfig:"ANNOTATION_ARCHIVE_QUEUE" default:"archive-requests"`
	ThawQueue         string        `envconfig:"ANNOTATION_THAW_QUEUE" default:"thaw-completed"`
	WaitTime          time.Duration `envconfig:"ANNOTATION_QUEUE_WAIT_TIME" default:"20s"`
	VisibilityTimeout time.Duration `envconfig:"ANNOTATION_QUEUE_VISIBILITY_TIMEOUT" default:"120s"`
	MaxReceiveCount   int           `envconfig:"ANNOTATION_QUEUE_MAX_RECEIVE_COUNT" default:"5"`
	AwsRegion         string        `envconfig:"ANNOTATION_AWS_REGION" default:"us-east-1"`
}

type hotStorageConfig struct {
	Endpoint      string `envconfig:"ANNOTATION_HOT_ENDPOINT" default:"localhost:9000"`
	AccessKey     string `envconfig:"ANNOTATION_HOT_ACCESS_KEY" default:""`
	SecretKey     string `envconfig:"ANNOTATION_HOT_SECRET_KEY" default:""`
	UseSSL        bool   `envconfig:"ANNOTATION_HOT_USE_SSL" default:"false"`
	InputsBucket  string `envconfig:"ANNOTATION_INPUTS_BUCKET" default:"annotation-inputs"`
	ResultsBucket string `envconfig:"ANNOTATION_RESULTS_BUCKET" default:"annotation-results"`
}

type coldStorageConfig struct {
	Vault     string `envconfig:"ANNOTATION_COLD_VAULT" default:"annotation-archive"`
	AwsRegion string `envconfig:"ANNOTATION_COLD_AWS_REGION" default:"us-east-1"`
}

type workerConfig struct {
	StagingDir      string `envconfig:"ANNOTATION_STAGING_DIR" default:"/var/lib/annotation/staging"`
	RunnerCommand   string `envconfig:"ANNOTATION_RUNNER_COMMAND" default:"annotation-runner"`
	AnnotateCommand string `envconfig:"ANNOTATION_TOOL_COMMAND" default:"anntool"`
}

type svcConfig struct {
	LogLevel        string `envconfig:"ANNOTATION_LOG_LEVEL" default:"info"`
	MigrationFolder string `envconfig:"ANNOTATION_MIGRATIONS_FOLDER" default:""`
	MetricsAddress  string `envconfig:"ANNOTATION_METRICS_ADDRESS" default:""`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a config populated with defaults only, ignoring the
// environment. Used by tests.
func NewDefault() *Config {
	cfg := new(Config)
	if err := envconfig.Process("annotation_test_defaults_only", cfg); err != nil {
		return nil
	}
	return cfg
}
