package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultClaimCodeLength = 6
	minClaimCodeLength     = 4
	maxClaimCodeLength     = 64
)

type ClaimConfig struct {
	CodeLength int `koanf:"code_length" mapstructure:"code_length"`
	// MaxFailedAttempts of zero disables attempt limiting.
	MaxFailedAttempts    int `koanf:"max_failed_attempts" mapstructure:"max_failed_attempts"`
	AttemptWindowSeconds int `koanf:"attempt_window_seconds" mapstructure:"attempt_window_seconds"`
}

func (c ClaimConfig) AttemptWindow() time.Duration {
	return time.Duration(c.AttemptWindowSeconds) * time.Second
}

func (c ClaimConfig) LimitEnabled() bool {
	return c.MaxFailedAttempts > 0
}

type Config struct {
	ServiceName string      `koanf:"service_name" mapstructure:"service_name"`
	Claim       ClaimConfig `koanf:"claim" mapstructure:"claim"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "devices",
		Claim: ClaimConfig{
			CodeLength:           defaultClaimCodeLength,
			MaxFailedAttempts:    0,
			AttemptWindowSeconds: 900,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Claim.CodeLength < minClaimCodeLength || c.Claim.CodeLength > maxClaimCodeLength {
		return fmt.Errorf(
			"core: claim.code_length must be between %d and %d",
			minClaimCodeLength,
			maxClaimCodeLength,
		)
	}
	if c.Claim.MaxFailedAttempts < 0 {
		return fmt.Errorf("core: claim.max_failed_attempts must be >= 0")
	}
	if c.Claim.AttemptWindowSeconds < 0 {
		return fmt.Errorf("core: claim.attempt_window_seconds must be >= 0")
	}
	if c.Claim.LimitEnabled() && c.Claim.AttemptWindowSeconds == 0 {
		return fmt.Errorf("core: claim.attempt_window_seconds is required when attempt limiting is enabled")
	}
	return nil
}
