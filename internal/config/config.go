// Package config loads the service configuration from defaults, an optional
// JSON file, environment variables and command-line flags, in that order of
// priority, and validates the result.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"reflect"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the service.
type Config struct {
	RunAddr  string `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	Port     string `env:"PORT" json:"port" validate:"omitempty,numeric"`
	LogLevel string `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`

	MongoURI            string        `env:"MONGO_URI" json:"mongo_uri"`
	MongoDatabase       string        `env:"MONGO_DB" json:"mongo_db"`
	DatabaseDSN         string        `env:"DATABASE_DSN" json:"database_dsn"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR" json:"migrations_dir"`
	DBFileName          string        `env:"FILE_STORAGE_PATH" json:"file_storage_path" validate:"filepath"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" json:"-"`

	JWTSecret string        `env:"JWT_SECRET" json:"jwt_secret" validate:"required"`
	TokenTTL  time.Duration `env:"JWT_TTL" json:"-"`

	UploadDir     string `env:"UPLOAD_DIR" json:"upload_dir" validate:"required"`
	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE" json:"max_upload_size" validate:"gt=0"`

	ImageCleanupEnabled       bool          `env:"IMAGE_CLEANUP_ENABLED" json:"image_cleanup_enabled"`
	ImageCleanupQueueCapacity int           `env:"IMAGE_CLEANUP_QUEUE_CAPACITY" json:"image_cleanup_queue_capacity" validate:"gt=0"`
	ImageCleanupInterval      time.Duration `env:"IMAGE_CLEANUP_INTERVAL" json:"-" validate:"gt=0"`

	S3Endpoint  string `env:"S3_ENDPOINT" json:"s3_endpoint"`
	S3AccessKey string `env:"S3_ACCESS_KEY" json:"s3_access_key" validate:"required_with=S3Endpoint"`
	S3SecretKey string `env:"S3_SECRET_KEY" json:"s3_secret_key" validate:"required_with=S3Endpoint"`
	S3Bucket    string `env:"S3_BUCKET" json:"s3_bucket" validate:"required_with=S3Endpoint"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," json:"cors_allowed_origins"`

	AuthRateLimitRPS   float64 `env:"AUTH_RATE_LIMIT_RPS" json:"auth_rate_limit_rps" validate:"gt=0"`
	AuthRateLimitBurst int     `env:"AUTH_RATE_LIMIT_BURST" json:"auth_rate_limit_burst" validate:"gt=0"`
	TrustedSubnet      string  `env:"TRUSTED_SUBNET" json:"trusted_subnet" validate:"omitempty,cidr"`

	ConfigFile string `env:"CONFIG" json:"-"`
}

var defaultConfig = Config{
	RunAddr:             ":5000",
	LogLevel:            "info",
	MongoDatabase:       "recipebook",
	MigrationsDir:       "cmd/recipebook/migrations",
	DBConnectionTimeout: 10 * time.Second,
	TokenTTL:            time.Hour,
	UploadDir:           "uploads",
	MaxUploadSize:       5 << 20,

	ImageCleanupQueueCapacity: 256,
	ImageCleanupInterval:      5 * time.Second,

	CORSAllowedOrigins: []string{"*"},
	AuthRateLimitRPS:   1,
	AuthRateLimitBurst: 5,
}

// InitOption configures New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing skips the command-line layer. Tests use it so that
// the test binary flags are not interpreted.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warning": true,
		"error":   true,
		"fatal":   true,
	}

	return allowedLogLevels[value]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

// applyDefaults copies every non-zero field of src into dst.
func applyDefaults(dst *Config, src Config) {
	dstValue := reflect.ValueOf(dst).Elem()
	srcValue := reflect.ValueOf(src)
	for i := 0; i < srcValue.NumField(); i++ {
		if !srcValue.Field(i).IsZero() {
			dstValue.Field(i).Set(srcValue.Field(i))
		}
	}
}

func parseFlags(values *Config) error {
	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.StringVar(&values.RunAddr, "a", "", "address and port to run server")
	flagSet.StringVar(&values.LogLevel, "l", "", "logger level")
	flagSet.StringVar(&values.MongoURI, "m", "", "MongoDB connection URI")
	flagSet.StringVar(&values.DatabaseDSN, "d", "", "A string with the database connection details")
	flagSet.StringVar(&values.DBFileName, "f", "", "JSON file name with database")
	flagSet.StringVar(&values.JWTSecret, "s", "", "secret used to sign bearer tokens")
	flagSet.StringVar(&values.UploadDir, "u", "", "directory for uploaded images")
	flagSet.StringVar(&values.TrustedSubnet, "t", "", "CIDR exempt from auth rate limiting")
	flagSet.StringVar(&values.ConfigFile, "c", "", "path to the JSON config file")

	return flagSet.Parse(os.Args[1:])
}

func parseJSONFile(fileName string, values *Config) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, values)
}

// New builds the configuration. Priority, lowest first: defaults, JSON file,
// environment, flags.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	var valuesFromFlags Config
	if !options.disableFlagsParsing {
		if err := parseFlags(&valuesFromFlags); err != nil {
			return nil, err
		}
	}

	var valuesFromEnv Config
	err = env.Parse(&valuesFromEnv)
	if err != nil {
		return nil, err
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	configFile := valuesFromEnv.ConfigFile
	if valuesFromFlags.ConfigFile != "" {
		configFile = valuesFromFlags.ConfigFile
	}
	if configFile != "" {
		var valuesFromJSON Config
		if err := parseJSONFile(configFile, &valuesFromJSON); err != nil {
			return nil, err
		}
		applyDefaults(values, valuesFromJSON)
	}

	applyDefaults(values, valuesFromEnv)
	if valuesFromFlags.RunAddr == "" && valuesFromEnv.RunAddr == "" && values.Port != "" {
		values.RunAddr = ":" + values.Port
	}
	applyDefaults(values, valuesFromFlags)

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}
