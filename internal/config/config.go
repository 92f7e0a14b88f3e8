package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	RedisAddr      string
	SigningKey     []byte
	AllowedOrigins []string

	CommsURL   string
	CommsToken string

	ProfilesURL string

	// Connection admission control.
	MaxConnections        int
	ConnectionIdleTimeout time.Duration
	AdmissionSweepEvery   time.Duration
	ClusteredAdmission    bool

	// Private call lifecycle.
	CallTTL         time.Duration
	CallExpiryEvery time.Duration

	// Community voice chat monitoring.
	CommunityCheckEvery time.Duration
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

type Params struct {
	ServerAddr         string
	DatabaseDSN        string
	RedisAddr          string
	Base64Secret       string
	AllowedOrigins     []string
	CommsURL           string
	CommsToken         string
	ProfilesURL        string
	MaxConnections     int
	IdleTimeout        time.Duration
	CallTTL            time.Duration
	ClusteredAdmission bool
}

func NewConfig(p Params) (*Config, error) {
	if p.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if p.DatabaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if p.RedisAddr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if p.Base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if p.CommsURL == "" {
		return nil, fmt.Errorf("comms URL cannot be empty")
	}
	if p.ProfilesURL == "" {
		return nil, fmt.Errorf("profiles URL cannot be empty")
	}
	if p.MaxConnections <= 0 {
		return nil, fmt.Errorf("max connections must be positive")
	}

	signingKey, err := decodeSigningSecret(p.Base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	idleTimeout := p.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 5 * time.Minute
	}

	callTTL := p.CallTTL
	if callTTL <= 0 {
		callTTL = 30 * time.Second
	}

	return &Config{
		ServerAddr:            p.ServerAddr,
		DatabaseDSN:           p.DatabaseDSN,
		RedisAddr:             p.RedisAddr,
		SigningKey:            signingKey,
		AllowedOrigins:        p.AllowedOrigins,
		CommsURL:              p.CommsURL,
		CommsToken:            p.CommsToken,
		ProfilesURL:           p.ProfilesURL,
		MaxConnections:        p.MaxConnections,
		ConnectionIdleTimeout: idleTimeout,
		AdmissionSweepEvery:   time.Minute,
		ClusteredAdmission:    p.ClusteredAdmission,
		CallTTL:               callTTL,
		CallExpiryEvery:       10 * time.Second,
		CommunityCheckEvery:   time.Minute,
	}, nil
}
