package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "8080" {
					t.Errorf("expected port 8080, got %s", cfg.Port)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("expected log level info, got %s", cfg.LogLevel)
				}
				if cfg.IdleThreshold != 120*time.Second {
					t.Errorf("expected IdleThreshold 120s, got %v", cfg.IdleThreshold)
				}
				if cfg.SessionTimeout != 900*time.Second {
					t.Errorf("expected SessionTimeout 900s, got %v", cfg.SessionTimeout)
				}
				if cfg.SweepInterval != 15*time.Second {
					t.Errorf("expected SweepInterval 15s, got %v", cfg.SweepInterval)
				}
				if cfg.LiveCallTTL != 120*time.Second {
					t.Errorf("expected LiveCallTTL 120s, got %v", cfg.LiveCallTTL)
				}
				if cfg.WSReadTimeout != 60*time.Second {
					t.Errorf("expected WSReadTimeout 60s, got %v", cfg.WSReadTimeout)
				}
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"PORT":                    "9000",
				"LOG_LEVEL":               "debug",
				"IDLE_THRESHOLD_SECONDS":  "60",
				"SESSION_TIMEOUT_SECONDS": "300",
				"SWEEP_INTERVAL_SECONDS":  "5",
				"ALLOWED_ORIGINS":         "http://example.com,http://test.com",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "9000" {
					t.Errorf("expected port 9000, got %s", cfg.Port)
				}
				if cfg.IdleThreshold != 60*time.Second {
					t.Errorf("expected IdleThreshold 60s, got %v", cfg.IdleThreshold)
				}
				if cfg.SessionTimeout != 300*time.Second {
					t.Errorf("expected SessionTimeout 300s, got %v", cfg.SessionTimeout)
				}
				if cfg.SweepInterval != 5*time.Second {
					t.Errorf("expected SweepInterval 5s, got %v", cfg.SweepInterval)
				}
				if len(cfg.AllowedOrigins) != 2 {
					t.Errorf("expected 2 allowed origins, got %d", len(cfg.AllowedOrigins))
				}
			},
		},
		{
			name: "invalid IDLE_THRESHOLD_SECONDS",
			env: map[string]string{
				"IDLE_THRESHOLD_SECONDS": "invalid",
			},
			wantErr: true,
		},
		{
			name: "invalid SESSION_TIMEOUT_SECONDS",
			env: map[string]string{
				"SESSION_TIMEOUT_SECONDS": "nope",
			},
			wantErr: true,
		},
		{
			name: "invalid WS_READ_TIMEOUT",
			env: map[string]string{
				"WS_READ_TIMEOUT": "invalid",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			// Load config
			cfg, err := Load()

			// Check error
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			// Run custom checks
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestWebSocketConstants(t *testing.T) {
	// Clear environment and set clean defaults
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// PongWait should equal WSReadTimeout
	if cfg.PongWait != cfg.WSReadTimeout {
		t.Errorf("PongWait (%v) should equal WSReadTimeout (%v)", cfg.PongWait, cfg.WSReadTimeout)
	}

	// PingPeriod should be less than PongWait
	if cfg.PingPeriod >= cfg.PongWait {
		t.Errorf("PingPeriod (%v) should be less than PongWait (%v)", cfg.PingPeriod, cfg.PongWait)
	}

	// WriteWait should equal WSWriteTimeout
	if cfg.WriteWait != cfg.WSWriteTimeout {
		t.Errorf("WriteWait (%v) should equal WSWriteTimeout (%v)", cfg.WriteWait, cfg.WSWriteTimeout)
	}

	// MaxMessageSize should be set
	if cfg.MaxMessageSize <= 0 {
		t.Errorf("MaxMessageSize should be positive, got %d", cfg.MaxMessageSize)
	}
}

func TestThresholdOrdering(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// A session must go idle before it can time out
	if cfg.IdleThreshold >= cfg.SessionTimeout {
		t.Errorf("IdleThreshold (%v) should be less than SessionTimeout (%v)", cfg.IdleThreshold, cfg.SessionTimeout)
	}
}
