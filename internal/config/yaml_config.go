package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// tableNamePattern restricts routed table names to plain lowercase identifiers.
var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// YAMLConfig represents the structure of the config.yaml file.
// Hierarchical settings that are easier to manage in YAML than env vars.
type YAMLConfig struct {
	QuoteRoutes []QuoteRouteConfig `yaml:"quote_routes"`
	RSS         RSSConfig          `yaml:"rss"`
	Staff       StaffConfig        `yaml:"staff"`
}

// QuoteRouteConfig adds or overrides one quote type routing entry.
type QuoteRouteConfig struct {
	Type    string   `yaml:"type"`
	Table   string   `yaml:"table"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// RSSConfig lists extra hosts the feed proxy may fetch from.
type RSSConfig struct {
	AllowedHosts []string `yaml:"allowed_hosts"`
}

// StaffConfig lists extra staff emails allowed into the dashboard.
type StaffConfig struct {
	Emails []string `yaml:"emails"`
}

// LoadYAMLConfig loads the YAML configuration file.
// Path is determined by CONFIG_FILE env var, defaulting to "config.yaml".
// Returns nil without error if the config file doesn't exist.
func LoadYAMLConfig() (*YAMLConfig, error) {
	return LoadYAMLConfigFile(getEnv("CONFIG_FILE", "config.yaml"))
}

// LoadYAMLConfigFile loads and validates the YAML configuration at path.
func LoadYAMLConfigFile(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file is optional
			return nil, nil
		}
		return nil, err
	}

	var cfg YAMLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	for i, r := range cfg.QuoteRoutes {
		if strings.TrimSpace(r.Type) == "" {
			return nil, fmt.Errorf("quote_routes[%d]: type is required", i)
		}
		if !tableNamePattern.MatchString(r.Table) {
			return nil, fmt.Errorf("quote_routes[%d]: invalid table name %q", i, r.Table)
		}
	}

	for i := range cfg.RSS.AllowedHosts {
		cfg.RSS.AllowedHosts[i] = strings.ToLower(strings.TrimSpace(cfg.RSS.AllowedHosts[i]))
	}

	return &cfg, nil
}

// Apply merges YAML-only settings into the env-based config.
func (y *YAMLConfig) Apply(cfg *Config) {
	if y == nil {
		return
	}
	for _, e := range y.Staff.Emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			cfg.AdminEmails = append(cfg.AdminEmails, e)
		}
	}
}

// RSSHosts returns the full feed host allow-list: the env host plus YAML hosts.
func (y *YAMLConfig) RSSHosts(cfg *Config) []string {
	var hosts []string
	if cfg.RSSAllowedHost != "" {
		hosts = append(hosts, cfg.RSSAllowedHost)
	}
	if y != nil {
		for _, h := range y.RSS.AllowedHosts {
			if h != "" {
				hosts = append(hosts, h)
			}
		}
	}
	return hosts
}

// GetQuoteRoutes returns the configured extra routes, or nil.
func (y *YAMLConfig) GetQuoteRoutes() []QuoteRouteConfig {
	if y == nil {
		return nil
	}
	return y.QuoteRoutes
}
