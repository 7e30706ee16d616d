// Package config provides configuration loading and validation for the replicator
// and the target API server.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/content-replicator/internal/telemetry"
	"github.com/stacklok/content-replicator/internal/validators"
)

const (
	// EnvPrefix is the prefix of environment variables read through viper
	EnvPrefix = "REPLICATOR"

	// DatabasePasswordEnv holds the database password when no password file is configured
	DatabasePasswordEnv = "REPLICATOR_DATABASE_PASSWORD"

	// ServerAPIKeyEnv holds the target API key when none is configured in the file
	ServerAPIKeyEnv = "REPLICATOR_API_KEY"
)

// Trigger values of a replication
const (
	TriggerPublish = "publish"
	TriggerManual  = "manual"
)

// Content types a replication may declare
const (
	ContentTypeNodes  = "nodes"
	ContentTypeAssets = "assets"
	ContentTypeUsers  = "users"
)

// DefaultSource is the only supported replication source, the local repository
const DefaultSource = "__self__"

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Replications maps replication identifiers to their settings
	Replications map[string]*ReplicationConfig `yaml:"replications"`

	// Targets maps target identifiers to remote endpoints
	Targets map[string]*TargetConfig `yaml:"targets"`

	Client    *ClientConfig     `yaml:"client,omitempty"`
	Server    *ServerConfig     `yaml:"server,omitempty"`
	Database  *DatabaseConfig   `yaml:"database,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`

	// DataDir holds per-target replication status files
	DataDir string `yaml:"dataDir,omitempty"`
}

// ReplicationConfig binds content selection to a list of targets
type ReplicationConfig struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`

	// Trigger is publish or manual, manual is the default
	Trigger string `yaml:"trigger,omitempty"`

	// Types lists the content types replicated, nodes is the default
	Types []string `yaml:"types,omitempty"`

	// Sites restricts replication to the given site node names, empty means all
	Sites []string `yaml:"sites,omitempty"`

	// Workspaces lists the workspace names that trigger replication, empty matches none
	Workspaces []string `yaml:"workspaces,omitempty"`

	// Source is always __self__
	Source string `yaml:"source,omitempty"`

	// Targets lists target identifiers in replication order
	Targets []string `yaml:"targets"`
}

// GetTrigger returns the trigger, using manual if not specified
func (r *ReplicationConfig) GetTrigger() string {
	if r.Trigger == "" {
		return TriggerManual
	}
	return r.Trigger
}

// GetTypes returns the content types, using nodes if not specified
func (r *ReplicationConfig) GetTypes() []string {
	if len(r.Types) == 0 {
		return []string{ContentTypeNodes}
	}
	return r.Types
}

// GetSource returns the source, using __self__ if not specified
func (r *ReplicationConfig) GetSource() string {
	if r.Source == "" {
		return DefaultSource
	}
	return r.Source
}

// TargetConfig defines a remote installation receiving replicated content
type TargetConfig struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`

	// BaseURL is the root URL of the target, the API lives under {baseUrl}/replicator/
	BaseURL string `yaml:"baseUrl"`

	// APIKey is the shared secret sent with every request
	APIKey string `yaml:"apiKey,omitempty"`

	// APIKeyFile is the path to a file containing the shared secret
	APIKeyFile string `yaml:"apiKeyFile,omitempty"`
}

// GetAPIKey returns the target API key, reading APIKeyFile when set
func (t *TargetConfig) GetAPIKey() (string, error) {
	if t.APIKeyFile != "" {
		data, err := os.ReadFile(filepath.Clean(t.APIKeyFile))
		if err != nil {
			return "", fmt.Errorf("failed to read API key from file %s: %w", t.APIKeyFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return t.APIKey, nil
}

// ClientConfig tunes the outbound transport
type ClientConfig struct {
	// Timeout bounds a single request to a target (e.g., "10s")
	Timeout string `yaml:"timeout,omitempty"`
}

// GetTimeout returns the parsed timeout, zero when unset
func (c *ClientConfig) GetTimeout() time.Duration {
	if c == nil || c.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// ServerConfig configures the target API
type ServerConfig struct {
	// Address is the listen address, ":8080" by default
	Address string `yaml:"address,omitempty"`

	// APIKey is the shared secret replicators must present
	APIKey string `yaml:"apiKey,omitempty"`

	// APIKeyFile is the path to a file containing the shared secret
	APIKeyFile string `yaml:"apiKeyFile,omitempty"`

	// AvailablePackages lists the resources packages sites may be created for.
	// An empty list accepts any package.
	AvailablePackages []string `yaml:"availablePackages,omitempty"`

	// NodeTypes declares the node types the target accepts
	NodeTypes map[string]NodeTypeConfig `yaml:"nodeTypes,omitempty"`

	// RequestTimeout bounds request handling (e.g., "30s")
	RequestTimeout string `yaml:"requestTimeout,omitempty"`
}

// NodeTypeConfig declares the properties of a node type
type NodeTypeConfig struct {
	Properties map[string]PropertyConfig `yaml:"properties"`
}

// PropertyConfig declares a single node type property
type PropertyConfig struct {
	Type string `yaml:"type"`
}

// DefaultServerAddress is used when no address is configured
const DefaultServerAddress = ":8080"

// GetAddress returns the listen address, using DefaultServerAddress if not specified
func (s *ServerConfig) GetAddress() string {
	if s == nil || s.Address == "" {
		return DefaultServerAddress
	}
	return s.Address
}

// GetAPIKey returns the server API key using the following priority:
// 1. Read from APIKeyFile if specified
// 2. The apiKey setting
// 3. The REPLICATOR_API_KEY environment variable
func (s *ServerConfig) GetAPIKey() (string, error) {
	if s != nil && s.APIKeyFile != "" {
		data, err := os.ReadFile(filepath.Clean(s.APIKeyFile))
		if err != nil {
			return "", fmt.Errorf("failed to read API key from file %s: %w", s.APIKeyFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if s != nil && s.APIKey != "" {
		return s.APIKey, nil
	}
	if envKey := os.Getenv(ServerAPIKeyEnv); envKey != "" {
		return envKey, nil
	}
	return "", fmt.Errorf("no API key configured: set server.apiKey, server.apiKeyFile or %s", ServerAPIKeyEnv)
}

// GetRequestTimeout returns the parsed request timeout, 30s when unset
func (s *ServerConfig) GetRequestTimeout() time.Duration {
	if s != nil && s.RequestTimeout != "" {
		if d, err := time.ParseDuration(s.RequestTimeout); err == nil {
			return d
		}
	}
	return 30 * time.Second
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the minimum number of idle connections kept in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`

	// ConnectTimeout bounds the start-up connection attempts (e.g., "30s")
	ConnectTimeout string `yaml:"connectTimeout,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from REPLICATOR_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		data, err := os.ReadFile(filepath.Clean(d.PasswordFile))
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(DatabasePasswordEnv); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", DatabasePasswordEnv,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	), nil
}

// GetConnMaxLifetime returns the parsed connection lifetime, zero when unset
func (d *DatabaseConfig) GetConnMaxLifetime() time.Duration {
	if d.ConnMaxLifetime == "" {
		return 0
	}
	lifetime, err := time.ParseDuration(d.ConnMaxLifetime)
	if err != nil {
		return 0
	}
	return lifetime
}

// GetConnectTimeout returns the parsed connect timeout, 30s when unset
func (d *DatabaseConfig) GetConnectTimeout() time.Duration {
	if d.ConnectTimeout != "" {
		if timeout, err := time.ParseDuration(d.ConnectTimeout); err == nil {
			return timeout
		}
	}
	return 30 * time.Second
}

// GetDataDir returns the status directory, "./data" when unset
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return "./data"
	}
	return c.DataDir
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates configuration file content
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// ReplicationIdentifiers returns the replication identifiers in lexical order
func (c *Config) ReplicationIdentifiers() []string {
	ids := make([]string, 0, len(c.Replications))
	for id := range c.Replications {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TargetIdentifiers returns the target identifiers in lexical order
func (c *Config) TargetIdentifiers() []string {
	ids := make([]string, 0, len(c.Targets))
	for id := range c.Targets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	for _, id := range c.TargetIdentifiers() {
		if err := validateTarget(id, c.Targets[id]); err != nil {
			return err
		}
	}

	for _, id := range c.ReplicationIdentifiers() {
		if err := c.validateReplication(id, c.Replications[id]); err != nil {
			return err
		}
	}

	if c.Client != nil && c.Client.Timeout != "" {
		if _, err := time.ParseDuration(c.Client.Timeout); err != nil {
			return fmt.Errorf("client.timeout must be a valid duration (e.g., '10s'): %w", err)
		}
	}

	if err := c.Server.validate(); err != nil {
		return err
	}

	if c.Database != nil {
		if err := c.Database.validate(); err != nil {
			return err
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func validateTarget(id string, target *TargetConfig) error {
	prefix := fmt.Sprintf("target %q", id)
	if target == nil {
		return fmt.Errorf("%s: settings are required", prefix)
	}
	if target.BaseURL == "" {
		return fmt.Errorf("%s: baseUrl is required", prefix)
	}
	parsed, err := url.Parse(target.BaseURL)
	if err != nil {
		return fmt.Errorf("%s: baseUrl is invalid: %w", prefix, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%s: baseUrl must be an absolute http(s) URL", prefix)
	}
	if target.APIKey != "" && target.APIKeyFile != "" {
		return fmt.Errorf("%s: only one of apiKey or apiKeyFile may be specified", prefix)
	}
	return nil
}

func (c *Config) validateReplication(id string, replication *ReplicationConfig) error {
	prefix := fmt.Sprintf("replication %q", id)
	if replication == nil {
		return fmt.Errorf("%s: settings are required", prefix)
	}

	switch replication.GetTrigger() {
	case TriggerPublish, TriggerManual:
	default:
		return fmt.Errorf("%s: trigger must be %s or %s, got %s", prefix, TriggerPublish, TriggerManual, replication.Trigger)
	}

	for _, contentType := range replication.GetTypes() {
		switch contentType {
		case ContentTypeNodes, ContentTypeAssets, ContentTypeUsers:
		default:
			return fmt.Errorf("%s: unknown content type %s", prefix, contentType)
		}
	}

	if replication.GetSource() != DefaultSource {
		return fmt.Errorf("%s: source must be %s, got %s", prefix, DefaultSource, replication.Source)
	}

	for _, target := range replication.Targets {
		if _, ok := c.Targets[target]; !ok {
			return fmt.Errorf("%s: unknown target %s", prefix, target)
		}
	}

	if len(replication.Workspaces) == 0 {
		slog.Warn("Replication lists no workspaces and will never match", "replication", id)
	}

	return nil
}

func (s *ServerConfig) validate() error {
	if s == nil {
		return nil
	}
	if s.APIKey != "" && s.APIKeyFile != "" {
		return errors.New("server: only one of apiKey or apiKeyFile may be specified")
	}
	for _, key := range s.AvailablePackages {
		if _, err := validators.ValidatePackageKey(key); err != nil {
			return fmt.Errorf("server.availablePackages: %w", err)
		}
	}
	if s.RequestTimeout != "" {
		if _, err := time.ParseDuration(s.RequestTimeout); err != nil {
			return fmt.Errorf("server.requestTimeout must be a valid duration: %w", err)
		}
	}
	for name, nodeType := range s.NodeTypes {
		for property, declaration := range nodeType.Properties {
			if declaration.Type == "" {
				return fmt.Errorf("server.nodeTypes %q: property %q needs a type", name, property)
			}
		}
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	if d.Host == "" {
		return errors.New("database.host is required")
	}
	if d.Database == "" {
		return errors.New("database.database is required")
	}
	if d.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(d.ConnMaxLifetime); err != nil {
			return fmt.Errorf("database.connMaxLifetime must be a valid duration: %w", err)
		}
	}
	if d.ConnectTimeout != "" {
		if _, err := time.ParseDuration(d.ConnectTimeout); err != nil {
			return fmt.Errorf("database.connectTimeout must be a valid duration: %w", err)
		}
	}
	return nil
}
