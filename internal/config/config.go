package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
)

type Config struct {
	MasterKey        string
	MasterPassphrase string
	MasterSalt       string
	SQLitePath       string
	BindAddr         string
	CORSOrigins      []string
	GinMode          string

	LogLevel   string
	LogFile    string
	LogConsole bool

	QuietWindow   time.Duration
	RepeatNotices bool

	ProbePort       int
	ProbeTimeout    time.Duration
	ProbeCacheTTL   time.Duration
	ProbeCommand    string
	ProbeKnownHosts string

	MonitorWorkers int
	SessionTTL     time.Duration
}

// Load 从环境变量读取；.env 由 main 先行加载
func Load() (Config, error) {
	cfg := Config{
		MasterKey:        os.Getenv("MASTER_KEY"),
		MasterPassphrase: os.Getenv("MASTER_PASSPHRASE"),
		MasterSalt:       os.Getenv("MASTER_SALT"),
		SQLitePath:       envOr("SQLITE_PATH", "machines.db"),
		BindAddr:         envOr("BIND_ADDR", ":8088"),
		GinMode:          envOr("GIN_MODE", "release"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFile:          os.Getenv("LOG_FILE"),
		ProbeCommand:     os.Getenv("PROBE_COMMAND"),
		ProbeKnownHosts:  os.Getenv("PROBE_KNOWN_HOSTS"),
	}
	if cfg.MasterKey == "" && cfg.MasterPassphrase == "" {
		return cfg, errors.NewNotValid(nil, "MASTER_KEY (base64 32 bytes) or MASTER_PASSPHRASE is required")
	}
	if cfg.MasterKey == "" && cfg.MasterSalt == "" {
		return cfg, errors.NewNotValid(nil, "MASTER_SALT is required with MASTER_PASSPHRASE")
	}

	cors := os.Getenv("CORS_ORIGINS")
	if cors == "" {
		cfg.CORSOrigins = []string{"http://localhost:5173"}
	} else {
		for _, o := range strings.Split(cors, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	var err error
	if cfg.QuietWindow, err = envDuration("QUIET_WINDOW", 400*time.Millisecond); err != nil {
		return cfg, err
	}
	if cfg.ProbeTimeout, err = envDuration("PROBE_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}
	if cfg.ProbeCacheTTL, err = envDuration("PROBE_CACHE_TTL", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.SessionTTL, err = envDuration("SESSION_TTL", 30*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.ProbePort, err = envInt("PROBE_PORT", 22); err != nil {
		return cfg, err
	}
	if cfg.ProbePort <= 0 || cfg.ProbePort > 65535 {
		return cfg, errors.NotValidf("PROBE_PORT %d", cfg.ProbePort)
	}
	if cfg.MonitorWorkers, err = envInt("MONITOR_WORKERS", 8); err != nil {
		return cfg, err
	}
	if cfg.RepeatNotices, err = envBool("REPEAT_NOTICES", false); err != nil {
		return cfg, err
	}
	if cfg.LogConsole, err = envBool("LOG_CONSOLE", false); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def, errors.NotValidf("%s=%q", key, v)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, errors.NotValidf("%s=%q", key, v)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, errors.NotValidf("%s=%q", key, v)
	}
	return b, nil
}
