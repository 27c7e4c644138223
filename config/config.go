package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProtocolFTP  = "ftp"
	ProtocolSFTP = "sftp"
	ProtocolS3   = "s3"

	DefaultTimeout    = 30 * time.Second
	DefaultLocalRoot  = "dist-site"
	DefaultRemoteRoot = "/"
)

type Config struct {
	Protocol string

	// FTP and SFTP
	Host        string
	User        string
	Password    string
	Timeout     time.Duration
	ExplicitTLS bool
	DisableEPSV bool
	KeyFile     string
	KnownHosts  string

	// S3
	ApiURL     string
	AccessKey  string
	SecretKey  string
	BucketName string
	Region     string

	LocalRoot  string
	RemoteRoot string
	Exclude    []string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found, using environment variables only")
	}

	timeout, err := getEnvInt("FTP_TIMEOUT", int(DefaultTimeout/time.Second))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Protocol:    strings.ToLower(getEnv("MIRROR_PROTOCOL", ProtocolFTP)),
		Host:        getEnv("FTP_HOST", ""),
		User:        getEnv("FTP_USER", ""),
		Password:    getEnv("FTP_PASSWORD", ""),
		Timeout:     time.Duration(timeout) * time.Second,
		ExplicitTLS: getEnvBool("FTP_EXPLICIT_TLS", false),
		DisableEPSV: getEnvBool("FTP_DISABLE_EPSV", false),
		KeyFile:     getEnv("SFTP_KEY_FILE", ""),
		KnownHosts:  getEnv("SFTP_KNOWN_HOSTS", ""),
		ApiURL:      getEnv("API_URL", ""),
		AccessKey:   getEnv("ACCESS_KEY", ""),
		SecretKey:   getEnv("SECRET_KEY", ""),
		BucketName:  getEnv("BUCKET_NAME", ""),
		Region:      getEnv("REGION", ""),
		LocalRoot:   getEnv("LOCAL_ROOT", DefaultLocalRoot),
		RemoteRoot:  getEnv("REMOTE_ROOT", DefaultRemoteRoot),
		Exclude:     splitList(getEnv("MIRROR_EXCLUDE", "")),
	}

	return config, nil
}

// Validate checks that the fields required by the selected protocol are set.
func (c *Config) Validate() error {
	var missing []string
	switch c.Protocol {
	case ProtocolFTP, ProtocolSFTP:
		if c.Host == "" {
			missing = append(missing, "FTP_HOST")
		}
		if c.User == "" {
			missing = append(missing, "FTP_USER")
		}
	case ProtocolS3:
		if c.BucketName == "" {
			missing = append(missing, "BUCKET_NAME")
		}
		if c.Region == "" {
			missing = append(missing, "REGION")
		}
	default:
		return fmt.Errorf("unsupported protocol %q (want %s, %s or %s)", c.Protocol, ProtocolFTP, ProtocolSFTP, ProtocolS3)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.LocalRoot == "" {
		return errors.New("local root must not be empty")
	}
	return nil
}

// NeedsPassword reports whether a password prompt is required to log in.
func (c *Config) NeedsPassword() bool {
	switch c.Protocol {
	case ProtocolFTP:
		return c.Password == ""
	case ProtocolSFTP:
		return c.Password == "" && c.KeyFile == ""
	}
	return false
}

// Endpoint is a human readable name of the remote target.
func (c *Config) Endpoint() string {
	if c.Protocol == ProtocolS3 {
		if c.ApiURL != "" {
			return c.ApiURL + "/" + c.BucketName
		}
		return "s3://" + c.BucketName
	}
	return c.Host
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("Ignoring invalid boolean", "key", key, "value", value)
		return defaultValue
	}
	return b
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
