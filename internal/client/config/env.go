package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with environment variables, loading a .env file
// first if one exists in the working directory. Unset variables leave the
// current value untouched.
//
// Recognized variables: GYMSYNC_REMOTE_DSN, GYMSYNC_OWNER_ID,
// GYMSYNC_LOCAL_DB, GYMSYNC_ONLINE_CHECK_INTERVAL (Go duration string),
// GYMSYNC_SYNC_SCHEDULE.
func parseEnv(cfg *Config) {
	// absent .env is fine; real env vars still apply
	_ = godotenv.Load()

	if v := os.Getenv("GYMSYNC_REMOTE_DSN"); v != "" {
		cfg.RemoteDSN = v
	}
	if v := os.Getenv("GYMSYNC_OWNER_ID"); v != "" {
		cfg.OwnerID = v
	}
	if v := os.Getenv("GYMSYNC_LOCAL_DB"); v != "" {
		cfg.LocalDBPath = v
	}
	if v := os.Getenv("GYMSYNC_ONLINE_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.OnlineCheckInterval = d
		}
	}
	if v := os.Getenv("GYMSYNC_SYNC_SCHEDULE"); v != "" {
		cfg.SyncSchedule = v
	}
}
