// Package config содержит логику чтения конфигурации сервиса шопмарт.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Config содержит параметры конфигурации сервиса шопмарт.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	ShippingFee string `env:"SHIPPING_FEE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения переменных окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envShippingFee := cfg.ShippingFee

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ShippingFee, "s", "10.00", "flat shipping fee for physical orders")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envShippingFee != "" {
		cfg.ShippingFee = envShippingFee
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.ShippingFee == "" {
		cfg.ShippingFee = "10.00"
	}

	if _, err := decimal.NewFromString(cfg.ShippingFee); err != nil {
		return nil, fmt.Errorf("invalid shipping fee %q: %w", cfg.ShippingFee, err)
	}

	return cfg, nil
}

// ShippingFeeAmount возвращает тариф доставки в виде точного десятичного числа.
func (c *Config) ShippingFeeAmount() decimal.Decimal {
	fee, err := decimal.NewFromString(c.ShippingFee)
	if err != nil {
		return decimal.Zero
	}
	return fee
}
