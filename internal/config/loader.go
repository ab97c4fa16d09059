package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/orahub/oracle-mcp/internal/secret"
)

// Load builds the configuration: defaults, then the YAML profile at path
// (skipped when path is empty or the file does not exist), then
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing profile is fine; env vars may carry everything.
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides maps ORACLE_URL-style environment variables onto the
// config. Environment always wins over the file.
func applyEnvOverrides(cfg *Config) {
	setString("ORACLE_URL", &cfg.Oracle.URL)
	setString("ORACLE_USER", &cfg.Oracle.User)
	if v, ok := os.LookupEnv("ORACLE_PASSWORD"); ok {
		cfg.Oracle.Password = secret.NewPassword(v)
	}

	if v, ok := os.LookupEnv("EDITION"); ok {
		cfg.Edition = Edition(strings.ToLower(v))
	}
	if v, ok := os.LookupEnv("TOOLS_EXPOSURE"); ok {
		cfg.Tools.Exposure = Exposure(strings.ToLower(v))
	}

	setInt("POOL_MAX_SIZE", &cfg.Pool.MaxSize)
	setInt("POOL_MIN_IDLE", &cfg.Pool.MinIdle)
	setInt("POOL_ACQUIRE_TIMEOUT_MS", &cfg.Pool.AcquireTimeoutMs)
	setInt("POOL_MAX_LIFETIME_MS", &cfg.Pool.MaxLifetimeMs)
	setInt("POOL_IDLE_TIMEOUT_MS", &cfg.Pool.IdleTimeoutMs)
	setInt("POOL_LEAK_THRESHOLD_MS", &cfg.Pool.LeakThresholdMs)

	setInt("QUERY_DEFAULT_FETCH_SIZE", &cfg.Query.DefaultFetchSize)
	setInt("QUERY_MAX_ROWS", &cfg.Query.MaxRows)
	setInt("QUERY_TIMEOUT_MS", &cfg.Query.TimeoutMs)
	setInt("QUERY_LOB_PREVIEW_BYTES", &cfg.Query.LobPreviewBytes)

	setInt("FEATURES_DETECT_TTL_MS", &cfg.Features.Detect.TTLMs)

	setBool("SECURITY_BLOCK_SYSTEM_USERS", &cfg.Security.BlockSystemUsers)
	if v, ok := os.LookupEnv("SECURITY_EXTRA_DENYLIST"); ok {
		cfg.Security.ExtraDenylist = splitList(v)
	}

	setInt("SERVER_WORKERS", &cfg.Server.Workers)
	setInt("SERVER_DRAIN_TIMEOUT_MS", &cfg.Server.DrainTimeoutMs)
	setInt("SERVER_CANCEL_GRACE_MS", &cfg.Server.CancelGraceMs)

	setString("LOGGING_LEVEL", &cfg.Logging.Level)
	setBool("LOGGING_PRETTY", &cfg.Logging.Pretty)
}

func setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return
	}
	*dst = n
}

func setBool(key string, dst *bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		*dst = true
	case "false", "0", "no":
		*dst = false
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
