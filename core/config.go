package core

import (
	"fmt"
	"strings"
)

type Config struct {
	ServiceName string `koanf:"service_name" mapstructure:"service_name"`
	TablePrefix string `koanf:"table_prefix" mapstructure:"table_prefix"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "connect",
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	return nil
}
