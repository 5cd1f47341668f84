package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/Pawan459/url-shortener/internal/config"
	"github.com/Pawan459/url-shortener/internal/dispatch"
	"github.com/Pawan459/url-shortener/internal/notify"
	"github.com/Pawan459/url-shortener/internal/server"
	"github.com/Pawan459/url-shortener/internal/storage"
)

// mapStorageConfig translates the config file section into a storage.Config.
// A missing section means memory only.
func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{Driver: "memory"}, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "", "memory":
		return storage.Config{Driver: "memory"}, nil
	case "file":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=file")
		}
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapNotifyConfig(cfg *config.Config) (notify.StoreConfig, error) {
	nc := cfg.Notify
	path := strings.TrimSpace(nc.Path)
	if path == "" {
		path = "./data/messages.json"
	}

	maxAge, err := config.ParseDurationOrDefault("notify.max_age", nc.MaxAge, notify.DefaultMaxAge)
	if err != nil {
		return notify.StoreConfig{}, err
	}
	base, err := config.ParseDurationOrDefault("notify.backoff_base", nc.BackoffBase, notify.DefaultBackoffBase)
	if err != nil {
		return notify.StoreConfig{}, err
	}
	max, err := config.ParseDurationOrDefault("notify.backoff_max", nc.BackoffMax, notify.DefaultBackoffMax)
	if err != nil {
		return notify.StoreConfig{}, err
	}
	purge, err := config.ParseDurationOrDefault("notify.purge_interval", nc.PurgeInterval, notify.DefaultPurgeInterval)
	if err != nil {
		return notify.StoreConfig{}, err
	}

	return notify.StoreConfig{
		Path: path,
		Policy: notify.Policy{
			MaxAge:      maxAge,
			MaxAttempts: nc.MaxAttempts,
		},
		BackoffBase:   base,
		BackoffMax:    max,
		PurgeInterval: purge,
	}, nil
}

func mapDispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	dc := cfg.Dispatch
	poll, err := config.ParseDurationOrDefault("dispatch.poll_interval", dc.PollInterval, dispatch.DefaultPollInterval)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{
		PollInterval: poll,
		SendRate:     dc.SendRate,
	}, nil
}

func mapServerConfig(cfg *config.Config) (server.Config, error) {
	sc := cfg.Server
	read, err := config.ParseDurationField("server.read_timeout", sc.ReadTimeout)
	if err != nil {
		return server.Config{}, err
	}
	write, err := config.ParseDurationField("server.write_timeout", sc.WriteTimeout)
	if err != nil {
		return server.Config{}, err
	}
	idle, err := config.ParseDurationField("server.idle_timeout", sc.IdleTimeout)
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		Addr:         strings.TrimSpace(sc.Addr),
		BaseURL:      strings.TrimSpace(sc.BaseURL),
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
		RatePerSec:   sc.RatePerSec,
		Burst:        sc.Burst,
	}, nil
}
