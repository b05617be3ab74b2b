package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/gymdesk/gymsync/internal/flagx"
	"github.com/gymdesk/gymsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "3s"
// or as integer nanoseconds.
type JsonConfig struct {
	RemoteDSN           string         `json:"remote_dsn"`
	OwnerID             string         `json:"owner_id"`
	LocalDBPath         string         `json:"local_db_path"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	SyncSchedule        string         `json:"sync_schedule"`
}

// parseJson overlays Config with values loaded from a JSON file named by the
// -c/-config flags. Missing flag means no JSON is loaded. Only non-zero
// fields override.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.RemoteDSN != "" {
		cfg.RemoteDSN = jc.RemoteDSN
	}
	if jc.OwnerID != "" {
		cfg.OwnerID = jc.OwnerID
	}
	if jc.LocalDBPath != "" {
		cfg.LocalDBPath = jc.LocalDBPath
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	if jc.SyncSchedule != "" {
		cfg.SyncSchedule = jc.SyncSchedule
	}
}
