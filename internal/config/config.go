// Package config loads the process-wide pullhook configuration from flags,
// environment variables and an optional YAML file.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"pullhook/internal/security"
	"pullhook/pkg/fileutil"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// FileName is the config file looked up in the default search paths.
	FileName = "pullhook.yaml"

	// EnvPrefix prefixes every environment variable, e.g. PULLHOOK_REPO_PATH.
	EnvPrefix = "PULLHOOK"

	redacted = "***REDACTED***"
)

// Keys shared by viper, the YAML file and the command-line flags.
const (
	KeyHost          = "host"
	KeyPort          = "port"
	KeyRepoPath      = "repo_path"
	KeyBranch        = "branch"
	KeyWebhookSecret = "webhook_secret"
	KeyDebug         = "debug"
	KeyTouchPaths    = "touch_paths"
	KeySyncTimeout   = "sync_timeout"
	KeyDBPath        = "db_path"
	KeyLogFile       = "log_file"
	KeyGitHubToken   = "github_token"
	KeyStatusContext = "status_context"
	KeyGitHubAPIURL  = "github_api_url"
)

// Defaults.
const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 8081
	DefaultRepoPath      = "/workspace"
	DefaultBranch        = "main"
	DefaultTouchPath     = "backend/src/main/java/com/example/counter/CounterBackendApplication.java"
	DefaultStatusContext = "pullhook"
)

// legacyEnv maps keys to unprefixed variable names that older deployments of
// the hook service used.
var legacyEnv = map[string][]string{
	KeyPort:          {"SERVER_PORT"},
	KeyRepoPath:      {"GIT_REPO_PATH"},
	KeyBranch:        {"GIT_BRANCH"},
	KeyWebhookSecret: {"WEBHOOK_SECRET"},
	KeyDebug:         {"WEBHOOK_DEBUG"},
	KeyTouchPaths:    {"TOUCH_PATHS"},
	KeyGitHubToken:   {"GITHUB_TOKEN"},
}

// Config is immutable once loaded and shared read-only by every request.
type Config struct {
	Host          string        `mapstructure:"host" yaml:"host"`
	Port          int           `mapstructure:"port" yaml:"port"`
	RepoPath      string        `mapstructure:"repo_path" yaml:"repo_path"`
	Branch        string        `mapstructure:"branch" yaml:"branch"`
	WebhookSecret string        `mapstructure:"webhook_secret" yaml:"webhook_secret"`
	Debug         bool          `mapstructure:"debug" yaml:"debug"`
	TouchPaths    []string      `mapstructure:"touch_paths" yaml:"touch_paths"`
	SyncTimeout   time.Duration `mapstructure:"sync_timeout" yaml:"sync_timeout"`
	DBPath        string        `mapstructure:"db_path" yaml:"db_path,omitempty"`
	LogFile       string        `mapstructure:"log_file" yaml:"log_file,omitempty"`
	GitHubToken   string        `mapstructure:"github_token" yaml:"github_token,omitempty"`
	StatusContext string        `mapstructure:"status_context" yaml:"status_context"`
	GitHubAPIURL  string        `mapstructure:"github_api_url" yaml:"github_api_url,omitempty"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// New returns a viper instance with defaults and environment bindings set up.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyHost, DefaultHost)
	v.SetDefault(KeyPort, DefaultPort)
	v.SetDefault(KeyRepoPath, DefaultRepoPath)
	v.SetDefault(KeyBranch, DefaultBranch)
	v.SetDefault(KeyWebhookSecret, "")
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyTouchPaths, []string{DefaultTouchPath})
	v.SetDefault(KeySyncTimeout, time.Duration(0))
	v.SetDefault(KeyDBPath, "")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyGitHubToken, "")
	v.SetDefault(KeyStatusContext, DefaultStatusContext)
	v.SetDefault(KeyGitHubAPIURL, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		_ = v.BindEnv(append([]string{key}, names...)...)
	}

	return v
}

// BindFlags binds every flag whose name matches a config key (with dashes in
// place of underscores, e.g. --repo-path) so that an explicitly set flag wins
// over the environment and the config file.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !isKnownKey(key) {
			return
		}
		if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("failed to bind flag --%s: %w", f.Name, err)
		}
	})
	return bindErr
}

func isKnownKey(key string) bool {
	switch key {
	case KeyHost, KeyPort, KeyRepoPath, KeyBranch, KeyWebhookSecret, KeyDebug, KeyTouchPaths,
		KeySyncTimeout, KeyDBPath, KeyLogFile, KeyGitHubToken, KeyStatusContext, KeyGitHubAPIURL:
		return true
	}
	return false
}

// Load reads the config file (explicit path, or the first default location that
// exists) and decodes the merged settings. It does not validate; call Validate.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile == "" {
		configFile = fileutil.SearchPathsOptional(fileutil.DefaultConfigPaths(FileName))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.File = configFile
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Branch = strings.TrimSpace(cfg.Branch)
	cfg.TouchPaths = normalizePaths(cfg.TouchPaths)
	if cfg.RepoPath != "" {
		cfg.RepoPath = filepath.Clean(cfg.RepoPath)
	}

	return &cfg, nil
}

// normalizePaths splits comma-separated entries, trims them and drops blanks.
// Order is preserved.
func normalizePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, entry := range paths {
		for _, p := range strings.Split(entry, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate returns one message per problem; an empty slice means the
// configuration is usable.
func (c *Config) Validate() []string {
	var errors []string

	if c.RepoPath == "" {
		errors = append(errors, "  - missing required 'repo_path'")
	} else if !filepath.IsAbs(c.RepoPath) {
		errors = append(errors, fmt.Sprintf("  - repo_path must be absolute, got '%s'", c.RepoPath))
	} else if !fileutil.DirExists(c.RepoPath) {
		errors = append(errors, fmt.Sprintf("  - repo_path is not an existing directory: '%s'", c.RepoPath))
	}

	if err := security.ValidateWatchedBranch(c.Branch); err != nil {
		errors = append(errors, fmt.Sprintf("  - invalid branch '%s': %v", c.Branch, err))
	}

	if c.Port < 1 || c.Port > 65535 {
		errors = append(errors, fmt.Sprintf("  - port must be between 1 and 65535, got %d", c.Port))
	}

	if c.SyncTimeout < 0 {
		errors = append(errors, fmt.Sprintf("  - sync_timeout must not be negative, got %s", c.SyncTimeout))
	}

	for i, p := range c.TouchPaths {
		if filepath.IsAbs(p) {
			errors = append(errors, fmt.Sprintf("  - touch_paths[%d] must be relative to repo_path, got '%s'", i, p))
		}
	}

	return errors
}

// ValidationError joins Validate's messages into a single error, or nil.
func (c *Config) ValidationError() error {
	errs := c.Validate()
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration:\n%s", strings.Join(errs, "\n"))
}

// Warnings lists settings that are accepted but worth flagging at startup.
func (c *Config) Warnings() []string {
	var warnings []string

	if c.WebhookSecret == "" {
		warnings = append(warnings, "webhook_secret is empty: signature verification is disabled and unauthenticated requests will trigger deploys")
	} else if err := security.CheckSecret(c.WebhookSecret); err != nil {
		warnings = append(warnings, fmt.Sprintf("weak webhook_secret: %v", err))
	}

	if len(c.TouchPaths) == 0 {
		warnings = append(warnings, "touch_paths is empty: no restart signal will be sent after a sync")
	}

	if c.File != "" && (c.WebhookSecret != "" || c.GitHubToken != "") {
		if err := security.ValidateSecurePermissions(c.File); err != nil {
			warnings = append(warnings, err.Error())
		}
	}

	return warnings
}

// Redacted returns a copy that is safe to print or serve.
func (c *Config) Redacted() Config {
	out := *c
	out.TouchPaths = append([]string(nil), c.TouchPaths...)
	if out.WebhookSecret != "" {
		out.WebhookSecret = redacted
	}
	if out.GitHubToken != "" {
		out.GitHubToken = redacted
	}
	return out
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
