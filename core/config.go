package core

import (
	"fmt"
	"strings"
	"time"
)

type LocationConfig struct {
	MinInterval     time.Duration `koanf:"min_interval" mapstructure:"min_interval"`
	MinDisplacement float64       `koanf:"min_displacement_meters" mapstructure:"min_displacement_meters"`
}

type OffersConfig struct {
	ListingLimit int           `koanf:"listing_limit" mapstructure:"listing_limit"`
	DefaultTTL   time.Duration `koanf:"default_ttl" mapstructure:"default_ttl"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Currency    string         `koanf:"currency" mapstructure:"currency"`
	Offers      OffersConfig   `koanf:"offers" mapstructure:"offers"`
	Location    LocationConfig `koanf:"location" mapstructure:"location"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "dispatch",
		Currency:    "USD",
		Offers: OffersConfig{
			ListingLimit: 4,
			DefaultTTL:   15 * time.Minute,
		},
		Location: LocationConfig{
			MinInterval:     5 * time.Second,
			MinDisplacement: 25,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Currency) == "" {
		return fmt.Errorf("core: currency is required")
	}
	if c.Offers.ListingLimit <= 0 {
		return fmt.Errorf("core: offers.listing_limit must be positive")
	}
	if c.Location.MinInterval < 0 || c.Location.MinDisplacement < 0 {
		return fmt.Errorf("core: location throttle bounds must not be negative")
	}
	return nil
}
