package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Database holds the relational database settings.
type Database struct {
	Driver       string `default:"postgres" envconfig:"DB_DRIVER" json:"DB_DRIVER"`
	URL          string `default:"user=foo dbname=bar sslmode=disable" envconfig:"DB_URL" json:"DB_URL" masked:"true"`
	MaxOpenConns int    `default:"20" envconfig:"DB_MAX_OPEN_CONNS" json:"DB_MAX_OPEN_CONNS"`
	AutoMigrate  bool   `default:"false" envconfig:"DB_AUTO_MIGRATE" json:"DB_AUTO_MIGRATE"`
}

// Storage holds the blob storage settings. A bucket of "standalone" uses the filesystem.
type Storage struct {
	Region    string `default:"ap-southeast-2" envconfig:"STORAGE_REGION" json:"STORAGE_REGION"`
	AccessKey string `envconfig:"STORAGE_ACCESS_KEY" json:"STORAGE_ACCESS_KEY" masked:"true"`
	Secret    string `envconfig:"STORAGE_SECRET" json:"STORAGE_SECRET" masked:"true"`
	Bucket    string `default:"standalone" envconfig:"STORAGE_BUCKET" json:"STORAGE_BUCKET"`
	Root      string `default:"./tmp" envconfig:"STORAGE_ROOT" json:"STORAGE_ROOT"`
}

// Chronik holds the indexer hosts, in the order they are tried.
type Chronik struct {
	URLs          string        `default:"https://chronik.e.cash,https://chronik-native1.fabien.cash,https://chronik.pay2stay.com/xec" envconfig:"CHRONIK_URLS" json:"CHRONIK_URLS"`
	ProvidersFile string        `envconfig:"CHRONIK_PROVIDERS_FILE" json:"CHRONIK_PROVIDERS_FILE"`
	Timeout       time.Duration `default:"10s" envconfig:"CHRONIK_TIMEOUT" json:"CHRONIK_TIMEOUT"`
}

// Pulse holds the payment and session business rules.
type Pulse struct {
	AddressPrefix   string        `default:"ecash" envconfig:"PULSE_ADDRESS_PREFIX" json:"PULSE_ADDRESS_PREFIX"`
	EscrowAddress   string        `envconfig:"PULSE_ESCROW_ADDRESS" json:"PULSE_ESCROW_ADDRESS"`
	Tolerance       string        `default:"0.01" envconfig:"PULSE_TOLERANCE" json:"PULSE_TOLERANCE"`
	FeePercent      string        `default:"0.01" envconfig:"PULSE_FEE_PERCENT" json:"PULSE_FEE_PERCENT"`
	MatchPolicy     string        `default:"sum" envconfig:"PULSE_MATCH_POLICY" json:"PULSE_MATCH_POLICY"`
	SessionDuration time.Duration `default:"24h" envconfig:"PULSE_SESSION_DURATION" json:"PULSE_SESSION_DURATION"`
	SessionPurge    time.Duration `default:"1h" envconfig:"PULSE_SESSION_PURGE_INTERVAL" json:"PULSE_SESSION_PURGE_INTERVAL"`
	AuthMinimum     int64         `default:"546" envconfig:"PULSE_AUTH_MINIMUM" json:"PULSE_AUTH_MINIMUM"`
	AuthMaxAge      time.Duration `default:"24h" envconfig:"PULSE_AUTH_MAX_AGE" json:"PULSE_AUTH_MAX_AGE"`
}

// Config is used to hold all runtime configuration shared by the daemon and the tests.
type Config struct {
	Db      Database
	Storage Storage
	Chronik Chronik
	Pulse   Pulse
}

// ToleranceRate returns the downward payment tolerance as a decimal fraction.
func (p Pulse) ToleranceRate() (decimal.Decimal, error) {
	return parseRate(p.Tolerance, "tolerance")
}

// FeeRate returns the platform fee as a decimal fraction.
func (p Pulse) FeeRate() (decimal.Decimal, error) {
	return parseRate(p.FeePercent, "fee percent")
}

func parseRate(s, name string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %s", name)
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, errors.Errorf("%s out of range [0, 1) : %s", name, s)
	}
	return d, nil
}

// SafeConfig masks sensitive config values
func SafeConfig(cfg Config) *Config {
	cfgSafe := cfg

	if len(cfgSafe.Db.URL) > 0 {
		cfgSafe.Db.URL = "*** Masked ***"
	}
	if len(cfgSafe.Storage.AccessKey) > 0 {
		cfgSafe.Storage.AccessKey = "*** Masked ***"
	}
	if len(cfgSafe.Storage.Secret) > 0 {
		cfgSafe.Storage.Secret = "*** Masked ***"
	}

	return &cfgSafe
}

// Environment returns configuration sourced from environment variables
func Environment() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("API", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
