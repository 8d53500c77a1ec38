package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"

	coreconfig "github.com/m3rciful/shopbot/core/config"
	"github.com/m3rciful/shopbot/core/database"
)

// ShopConfig holds storefront settings.
type ShopConfig struct {
	CatalogPath string `yaml:"catalog_path" envconfig:"CATALOG_PATH"`
	// OperatorIDs receive order notifications. OWNER_ID, when set, is
	// always one of them.
	OperatorIDs []int64 `yaml:"operator_ids" envconfig:"OPERATOR_IDS"`
	OwnerID     int64   `yaml:"-" envconfig:"OWNER_ID"`
	// ContactURL adds a link button to the welcome screen. CATALOG_URL is
	// accepted as an alias.
	ContactURL string `yaml:"contact_url" envconfig:"CONTACT_URL"`
	CatalogURL string `yaml:"-" envconfig:"CATALOG_URL"`
	// Currency overrides the catalog currency in prices and orders.
	Currency          string        `yaml:"currency" envconfig:"SHOP_CURRENCY"`
	NotifyTimeout     time.Duration `yaml:"notify_timeout" envconfig:"NOTIFY_TIMEOUT"`
	NotifyConcurrency int           `yaml:"notify_concurrency" envconfig:"NOTIFY_CONCURRENCY"`
	SessionIdleTTL    time.Duration `yaml:"session_idle_ttl" envconfig:"SESSION_IDLE_TTL"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database database.Config `yaml:"database"`
	Shop     ShopConfig      `yaml:"shop"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

const (
	defaultCatalogPath    = "configs/catalog.yaml"
	defaultNotifyTimeout  = 10 * time.Second
	defaultSessionIdleTTL = 24 * time.Hour
)

// LoadConfig reads .env (when present), the YAML file at path and the
// environment, then validates the result.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	return c.Shop.Normalize()
}

// Normalize validates the shop section and fills defaults.
func (s *ShopConfig) Normalize() error {
	s.CatalogPath = strings.TrimSpace(s.CatalogPath)
	if s.CatalogPath == "" {
		s.CatalogPath = defaultCatalogPath
	}

	if s.OwnerID != 0 {
		s.OperatorIDs = append(s.OperatorIDs, s.OwnerID)
	}
	if len(s.OperatorIDs) == 0 {
		return fmt.Errorf("shop.operator_ids requires at least one operator (OPERATOR_IDS or OWNER_ID)")
	}
	for _, id := range s.OperatorIDs {
		if id <= 0 {
			return fmt.Errorf("shop.operator_ids must be positive, got %d", id)
		}
	}
	slices.Sort(s.OperatorIDs)
	s.OperatorIDs = slices.Compact(s.OperatorIDs)

	s.ContactURL = strings.TrimSpace(s.ContactURL)
	if s.ContactURL == "" {
		s.ContactURL = strings.TrimSpace(s.CatalogURL)
	}
	if s.ContactURL != "" {
		u, err := url.Parse(s.ContactURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("shop.contact_url must be an absolute http(s) URL, got %q", s.ContactURL)
		}
	}

	s.Currency = strings.ToUpper(strings.TrimSpace(s.Currency))

	switch {
	case s.NotifyTimeout < 0:
		return fmt.Errorf("shop.notify_timeout must be >= 0")
	case s.NotifyTimeout == 0:
		s.NotifyTimeout = defaultNotifyTimeout
	}
	if s.NotifyConcurrency < 0 {
		return fmt.Errorf("shop.notify_concurrency must be >= 0")
	}
	switch {
	case s.SessionIdleTTL < 0:
		return fmt.Errorf("shop.session_idle_ttl must be >= 0")
	case s.SessionIdleTTL == 0:
		s.SessionIdleTTL = defaultSessionIdleTTL
	}
	return nil
}
