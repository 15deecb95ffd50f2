package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultPort is the well-known port shared by the server and the interactive client.
const DefaultPort = 6666

// TLSMode represents TLS certificate source
type TLSMode string

const (
	TLSModeFile       TLSMode = "file"
	TLSModeKubernetes TLSMode = "kubernetes"
	TLSModeMemory     TLSMode = "memory"
)

// Config holds all application configuration
type Config struct {
	// Core
	Debug     bool
	LogFormat string
	Transform string // echo, identity, upper, lower, reverse

	// Server
	BindAddr        string
	Port            int
	StatusInterval  time.Duration
	ShutdownTimeout time.Duration

	// Health / status API
	HealthEnabled    bool
	HealthServerPort string

	// Kubernetes access, only needed by the kubernetes TLS mode
	Namespace      string
	KubeConfigPath string
	KubeContext    string

	// TLS Configuration
	TLSEnabled      bool
	TLSMode         TLSMode
	TLSCertFile     string
	TLSKeyFile      string
	TLSSecretName   string
	TLSAutoGenerate bool // Generate self-signed if cert doesn't exist
}

// Load reads configuration from environment variables. The first element of
// args, when present and non-empty, overrides the listening port.
func Load(args []string) (*Config, error) {
	cfg := &Config{
		// Core
		Debug:     getEnvBool("DEBUG", false),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		Transform: strings.ToLower(getEnv("TRANSFORM", "echo")),

		// Server
		BindAddr:        getEnv("BIND_ADDR", ""),
		Port:            getEnvInt("PORT", DefaultPort),
		StatusInterval:  getEnvDuration("STATUS_INTERVAL", 5*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		// Health
		HealthEnabled:    getEnvBool("HEALTH_ENABLED", true),
		HealthServerPort: getEnv("HEALTH_SERVER_PORT", "8080"),

		// Kubernetes
		Namespace:      determineNamespace(),
		KubeConfigPath: getEnv("KUBECONFIG", ""),
		KubeContext:    getEnv("KUBE_CONTEXT", ""),

		// TLS
		TLSEnabled:      getEnvBool("TLS_ENABLED", false),
		TLSMode:         determineTLSMode(),
		TLSCertFile:     getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:      getEnv("TLS_KEY_FILE", ""),
		TLSSecretName:   getEnv("TLS_SECRET_NAME", ""),
		TLSAutoGenerate: getEnvBool("TLS_AUTO_GENERATE", true),
	}

	if len(args) > 0 && args[0] != "" {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid port argument %q: %w", args[0], err)
		}
		cfg.Port = port
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ListenAddr is the host:port the accept loop binds.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.BindAddr, strconv.Itoa(c.Port))
}

// validate ensures configuration is coherent
func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d (must be 1-65535)", c.Port)
	}

	if c.StatusInterval <= 0 {
		return fmt.Errorf("STATUS_INTERVAL must be positive, got %s", c.StatusInterval)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}

	// TLS validation only if TLS is enabled
	if c.TLSEnabled {
		if c.TLSMode == TLSModeFile {
			if c.TLSCertFile == "" || c.TLSKeyFile == "" {
				return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set when using file-based TLS")
			}
		}

		if c.TLSMode == TLSModeKubernetes && c.TLSSecretName == "" {
			return fmt.Errorf("TLS_SECRET_NAME must be set when using kubernetes TLS mode")
		}
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvDuration accepts Go duration strings ("5s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func determineNamespace() string {
	// Explicit namespace
	if ns := os.Getenv("NAMESPACE"); ns != "" {
		return ns
	}

	// Kubernetes downward API
	if ns := os.Getenv("POD_NAMESPACE"); ns != "" {
		return ns
	}

	// Read from service account (in-cluster)
	if data, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace"); err == nil {
		return strings.TrimSpace(string(data))
	}

	return "default"
}

func determineTLSMode() TLSMode {
	// Explicit mode
	if mode := os.Getenv("TLS_MODE"); mode != "" {
		switch strings.ToLower(mode) {
		case "file", "filesystem":
			return TLSModeFile
		case "kubernetes", "k8s", "secret":
			return TLSModeKubernetes
		case "memory", "in-memory":
			return TLSModeMemory
		}
	}

	// Auto-detect based on configuration
	if os.Getenv("TLS_CERT_FILE") != "" {
		return TLSModeFile
	}

	if os.Getenv("TLS_SECRET_NAME") != "" {
		return TLSModeKubernetes
	}

	return TLSModeMemory
}
