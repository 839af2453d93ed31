package config

import (
	"fmt"
	"net"
	"strings"
)

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if _, _, err := net.SplitHostPort(strings.TrimSpace(c.ListenAddress)); err != nil {
		return fmt.Errorf("ListenAddress: %w", err)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must not be empty")
	}
	if _, ok := validLogLevels[strings.ToLower(strings.TrimSpace(c.LogLevel))]; !ok {
		return fmt.Errorf("LogLevel %q must be one of debug, info, warn, error", c.LogLevel)
	}
	if _, err := c.Farm.RewardRate(); err != nil {
		return err
	}
	if _, err := c.Farm.Custody(); err != nil {
		return err
	}
	stake := strings.ToUpper(strings.TrimSpace(c.Farm.StakeToken))
	reward := strings.ToUpper(strings.TrimSpace(c.Farm.RewardToken))
	if stake == "" || reward == "" {
		return fmt.Errorf("farm: StakeToken and RewardToken are required")
	}
	if stake == reward {
		return fmt.Errorf("farm: StakeToken and RewardToken must differ")
	}
	if _, _, err := c.Whitelist.OwnerAddress(); err != nil {
		return err
	}
	if _, err := c.Whitelist.RootHash(); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.StorageBackend)) {
	case "leveldb", "bolt", "memory":
	default:
		return fmt.Errorf("StorageBackend %q must be one of leveldb, bolt, memory", c.StorageBackend)
	}
	if strings.TrimSpace(c.Admin.JWTSecret) == "" && (strings.TrimSpace(c.Admin.JWTIssuer) != "" || strings.TrimSpace(c.Admin.JWTAudience) != "") {
		return fmt.Errorf("admin: JWTIssuer and JWTAudience require JWTSecret")
	}
	if (c.Telemetry.Traces || c.Telemetry.Metrics) && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("telemetry: Endpoint is required when Traces or Metrics is enabled")
	}
	if c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: Burst must not be negative")
	}
	return nil
}
