package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Queue backends.
const (
	QueueBackendMemory   = "memory"
	QueueBackendTemporal = "temporal"
)

type Config struct {
	ServiceName    string
	LogLevel       string
	// LogFormat is "json" or "console".
	LogFormat      string
	HTTPListenAddr string
	MetricsAddr    string

	// CoreDatabaseURL selects the Postgres store. When empty the process
	// keeps its records in memory.
	CoreDatabaseURL string
	MigrationsDir   string

	QueueBackend          string
	TemporalAddress       string
	TemporalNamespace     string
	TemporalTLSCert       string
	TemporalTLSKey        string
	TemporalTLSCACert     string
	TemporalTLSServerName string

	SSHKeyPath        string
	SSHCAKeyPath      string
	SSHKnownHosts     string
	SSHConnectTimeout time.Duration

	JobAwaitTimeout    time.Duration
	JobRetention       time.Duration
	FailedJobRetention time.Duration

	TemplatesDir string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	// APIURL is the orchestrator base URL used by paasctl.
	APIURL string
}

func Load() (*Config, error) {
	cfg := &Config{
		ServiceName:    getEnv("SERVICE_NAME", "orchestrator"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "json")),
		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsAddr:    getEnv("METRICS_ADDR", ""),

		CoreDatabaseURL: getEnv("CORE_DATABASE_URL", ""),
		MigrationsDir:   getEnv("MIGRATIONS_DIR", "migrations/core"),

		QueueBackend:          strings.ToLower(getEnv("QUEUE_BACKEND", QueueBackendMemory)),
		TemporalAddress:       getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalNamespace:     getEnv("TEMPORAL_NAMESPACE", "default"),
		TemporalTLSCert:       getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:        getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),

		SSHKeyPath:    getEnv("SSH_KEY_PATH", ""),
		SSHCAKeyPath:  getEnv("SSH_CA_KEY_PATH", ""),
		SSHKnownHosts: getEnv("SSH_KNOWN_HOSTS", ""),

		TemplatesDir: getEnv("TEMPLATES_DIR", "templates"),

		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),

		APIURL: getEnv("API_URL", "http://localhost:8090"),
	}

	var err error
	if cfg.SSHConnectTimeout, err = getDuration("SSH_CONNECT_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.JobAwaitTimeout, err = getDuration("JOB_AWAIT_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.JobRetention, err = getDuration("JOB_RETENTION", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.FailedJobRetention, err = getDuration("FAILED_JOB_RETENTION", 7*24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the fields required by the given binary role.
func (c *Config) Validate(role string) error {
	var missing []string
	var errs []error

	switch role {
	case "orchestrator":
		if c.HTTPListenAddr == "" {
			missing = append(missing, "HTTP_LISTEN_ADDR")
		}
		switch c.QueueBackend {
		case QueueBackendMemory:
		case QueueBackendTemporal:
			if c.TemporalAddress == "" {
				missing = append(missing, "TEMPORAL_ADDRESS")
			}
		default:
			errs = append(errs, fmt.Errorf("QUEUE_BACKEND must be %q or %q, got %q", QueueBackendMemory, QueueBackendTemporal, c.QueueBackend))
		}
		if c.SSHConnectTimeout <= 0 {
			errs = append(errs, errors.New("SSH_CONNECT_TIMEOUT must be positive"))
		}
		if c.JobAwaitTimeout <= 0 {
			errs = append(errs, errors.New("JOB_AWAIT_TIMEOUT must be positive"))
		}
	case "paasctl":
		if c.APIURL == "" {
			missing = append(missing, "API_URL")
		}
	}

	if (c.TemporalTLSCert == "") != (c.TemporalTLSKey == "") {
		errs = append(errs, errors.New("TEMPORAL_TLS_CERT and TEMPORAL_TLS_KEY must both be set"))
	}

	if len(missing) > 0 {
		errs = append([]error{fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))}, errs...)
	}
	return errors.Join(errs...)
}

// S3Configured reports whether backups can be uploaded.
func (c *Config) S3Configured() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// TemporalTLS returns the client TLS configuration for Temporal, or nil when
// no client certificate is configured.
func (c *Config) TemporalTLS() (*tls.Config, error) {
	if c.TemporalTLSCert == "" && c.TemporalTLSKey == "" {
		return nil, nil
	}
	pair, err := tls.LoadX509KeyPair(c.TemporalTLSCert, c.TemporalTLSKey)
	if err != nil {
		return nil, fmt.Errorf("load temporal client cert: %w", err)
	}
	out := &tls.Config{Certificates: []tls.Certificate{pair}, ServerName: c.TemporalTLSServerName}
	if c.TemporalTLSCACert == "" {
		return out, nil
	}
	pem, err := os.ReadFile(c.TemporalTLSCACert)
	if err != nil {
		return nil, fmt.Errorf("read temporal CA cert: %w", err)
	}
	out.RootCAs = x509.NewCertPool()
	if !out.RootCAs.AppendCertsFromPEM(pem) {
		return nil, errors.New("parse temporal CA cert: no certificates found")
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	// Bare integers are seconds.
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: invalid duration %q", key, v)
	}
	return time.Duration(n) * time.Second, nil
}
