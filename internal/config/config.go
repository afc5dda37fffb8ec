package config

import "github.com/kelseyhightower/envconfig"

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken  string `envconfig:"BOT_TOKEN" required:"true"`
	DBPath    string `envconfig:"DB_PATH" default:"./data/timer.db"`
	BackupDir string `envconfig:"BACKUP_DIR" default:"./data/backups"`
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"` // healthz
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error

	MaxTimers        int `envconfig:"MAX_TIMERS" default:"3"`
	MinDurationHours int `envconfig:"MIN_DURATION_HOURS" default:"1"`
	MaxDurationHours int `envconfig:"MAX_DURATION_HOURS" default:"168"` // one week

	CheckIntervalSec       int `envconfig:"CHECK_INTERVAL_SEC" default:"60"`
	MaintenanceIntervalSec int `envconfig:"MAINTENANCE_INTERVAL_SEC" default:"43200"` // 12h
	BackupKeepDays         int `envconfig:"BACKUP_KEEP_DAYS" default:"7"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
