package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test_password")
	os.Setenv("JWT_SECRET_KEY", "this_is_a_test_secret_key_with_32_chars_minimum")
	os.Setenv("MATCH_INTERVAL_MS", "2500")
	defer os.Clearenv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.DBPassword != "test_password" {
		t.Errorf("DBPassword = %q, want %q", cfg.DBPassword, "test_password")
	}
	if cfg.MatchIntervalMs != 2500 {
		t.Errorf("MatchIntervalMs = %d, want 2500", cfg.MatchIntervalMs)
	}
	if cfg.TurnDurationSecs != 60 {
		t.Errorf("TurnDurationSecs = %d, want default 60", cfg.TurnDurationSecs)
	}
	if cfg.PauseTimeoutMinutes != 3 {
		t.Errorf("PauseTimeoutMinutes = %d, want default 3", cfg.PauseTimeoutMinutes)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want default", cfg.RedisAddr)
	}
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{
			name: "Missing DB_PASSWORD",
			envVars: map[string]string{
				"JWT_SECRET_KEY": "this_is_a_test_secret_key_with_32_chars_minimum",
			},
		},
		{
			name: "Missing JWT_SECRET_KEY",
			envVars: map[string]string{
				"DB_PASSWORD": "password",
			},
		},
		{
			name: "Bot token without admin chat",
			envVars: map[string]string{
				"DB_PASSWORD":    "password",
				"JWT_SECRET_KEY": "this_is_a_test_secret_key_with_32_chars_minimum",
				"BOT_TOKEN":      "token",
			},
		},
		{
			name: "Invalid ADMIN_CHAT_ID",
			envVars: map[string]string{
				"DB_PASSWORD":    "password",
				"JWT_SECRET_KEY": "this_is_a_test_secret_key_with_32_chars_minimum",
				"ADMIN_CHAT_ID":  "not-a-number",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			defer os.Clearenv()

			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			_, err := LoadConfig()
			if err == nil {
				t.Error("LoadConfig() expected error for missing required field, got nil")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DBPassword:       "password",
			JWTSecret:        "this_is_a_test_secret_key_with_32_chars_minimum",
			RedisAddr:        "localhost:6379",
			NATSURL:          "nats://localhost:4222",
			MatchIntervalMs:  5000,
			TurnDurationSecs: 60,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "Valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "JWT secret too short", mutate: func(c *Config) { c.JWTSecret = "short" }, wantErr: true},
		{name: "Zero match interval", mutate: func(c *Config) { c.MatchIntervalMs = 0 }, wantErr: true},
		{name: "Zero turn duration", mutate: func(c *Config) { c.TurnDurationSecs = 0 }, wantErr: true},
		{name: "Missing redis", mutate: func(c *Config) { c.RedisAddr = "" }, wantErr: true},
		{name: "Bot with admin chat", mutate: func(c *Config) { c.BotToken = "t"; c.AdminChatID = -100 }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateProductionSecurity(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *Config
		shouldErr bool
	}{
		{
			name: "Valid production config",
			cfg: &Config{
				AppEnv:        "production",
				DBSSLMode:     "require",
				JWTSecret:     "production_secret_key_different_from_default",
				RedisPassword: "redis-secret",
			},
			shouldErr: false,
		},
		{
			name: "Development mode - no validation",
			cfg: &Config{
				AppEnv:    "development",
				DBSSLMode: "disable",
			},
			shouldErr: false,
		},
		{
			name: "Production without SSL",
			cfg: &Config{
				AppEnv:        "production",
				DBSSLMode:     "disable",
				JWTSecret:     "production_secret",
				RedisPassword: "redis-secret",
			},
			shouldErr: true,
		},
		{
			name: "Production with default JWT secret",
			cfg: &Config{
				AppEnv:        "production",
				DBSSLMode:     "require",
				JWTSecret:     "your_jwt_secret_minimum_32_chars_here_change_this",
				RedisPassword: "redis-secret",
			},
			shouldErr: true,
		},
		{
			name: "Production without redis password",
			cfg: &Config{
				AppEnv:    "production",
				DBSSLMode: "require",
				JWTSecret: "production_secret_key_different",
			},
			shouldErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateProductionSecurity()
			if tt.shouldErr && err == nil {
				t.Error("ValidateProductionSecurity() expected error, got nil")
			}
			if !tt.shouldErr && err != nil {
				t.Errorf("ValidateProductionSecurity() unexpected error = %v", err)
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "localhost",
		DBPort:     "5432",
		DBUser:     "testuser",
		DBPassword: "testpass",
		DBName:     "testdb",
		DBSSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	if dsn := cfg.GetDSN(); dsn != expected {
		t.Errorf("GetDSN() = %q, want %q", dsn, expected)
	}
}

func TestDurations(t *testing.T) {
	cfg := &Config{
		MatchIntervalMs:        5000,
		MatchCooldownSecs:      30,
		MatchEventTTLSecs:      10,
		TurnDurationSecs:       60,
		PauseTimeoutMinutes:    3,
		ConnectivityDebounceMs: 3000,
		ConnectivityTTLSecs:    30,
	}

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"MatchInterval", cfg.GetMatchInterval(), 5 * time.Second},
		{"MatchCooldown", cfg.GetMatchCooldown(), 30 * time.Second},
		{"MatchEventTTL", cfg.GetMatchEventTTL(), 10 * time.Second},
		{"TurnDuration", cfg.GetTurnDuration(), time.Minute},
		{"PauseTimeout", cfg.GetPauseTimeout(), 3 * time.Minute},
		{"ConnectivityDebounce", cfg.GetConnectivityDebounce(), 3 * time.Second},
		{"ConnectivityTTL", cfg.GetConnectivityTTL(), 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}
