package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Pawan459/url-shortener/internal/config"
	"github.com/Pawan459/url-shortener/internal/notify"
)

func TestMapStorageConfig(t *testing.T) {
	sc, err := mapStorageConfig(&config.Config{})
	require.NoError(t, err)
	require.Equal(t, "memory", sc.Driver)

	sc, err = mapStorageConfig(&config.Config{
		Storage: &config.StorageConfig{Driver: "file", Path: "./data/links"},
	})
	require.NoError(t, err)
	require.Equal(t, "file", sc.Driver)
	require.Equal(t, "./data/links", sc.Path)

	_, err = mapStorageConfig(&config.Config{
		Storage: &config.StorageConfig{Driver: "file"},
	})
	require.Error(t, err)

	_, err = mapStorageConfig(&config.Config{
		Storage: &config.StorageConfig{Driver: "postgres", Path: "x"},
	})
	require.Error(t, err)
}

func TestMapStorageConfigSQLite(t *testing.T) {
	sc, err := mapStorageConfig(&config.Config{
		Storage: &config.StorageConfig{Driver: "sqlite", Path: "./data/links.db", BusyTimeout: "2s"},
	})
	require.NoError(t, err)
	require.Equal(t, "sqlite", sc.Driver)
	require.Equal(t, 2*time.Second, sc.BusyTimeout)

	_, err = mapStorageConfig(&config.Config{
		Storage: &config.StorageConfig{Driver: "sqlite"},
	})
	require.Error(t, err)
}

func TestMapNotifyConfigDefaults(t *testing.T) {
	nc, err := mapNotifyConfig(&config.Config{})
	require.NoError(t, err)
	require.Equal(t, "./data/messages.json", nc.Path)
	require.Equal(t, notify.DefaultMaxAge, nc.Policy.MaxAge)
	require.Equal(t, notify.DefaultBackoffBase, nc.BackoffBase)

	nc, err = mapNotifyConfig(&config.Config{
		Notify: config.NotifyConfig{MaxAge: "24h", MaxAttempts: 3, BackoffBase: "1s"},
	})
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, nc.Policy.MaxAge)
	require.Equal(t, 3, nc.Policy.MaxAttempts)
	require.Equal(t, time.Second, nc.BackoffBase)

	_, err = mapNotifyConfig(&config.Config{
		Notify: config.NotifyConfig{MaxAge: "soon"},
	})
	require.Error(t, err)
}

func TestMapDispatchConfig(t *testing.T) {
	dc, err := mapDispatchConfig(&config.Config{})
	require.NoError(t, err)
	require.Equal(t, time.Second, dc.PollInterval)

	dc, err = mapDispatchConfig(&config.Config{
		Dispatch: config.DispatchConfig{PollInterval: "250ms", SendRate: 50},
	})
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, dc.PollInterval)
	require.Equal(t, 50, dc.SendRate)
}

func TestMapServerConfig(t *testing.T) {
	sc, err := mapServerConfig(&config.Config{
		Server: config.ServerConfig{Addr: ":9090", ReadTimeout: "5s", RatePerSec: 10},
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", sc.Addr)
	require.Equal(t, 5*time.Second, sc.ReadTimeout)
	require.Equal(t, 10, sc.RatePerSec)

	_, err = mapServerConfig(&config.Config{
		Server: config.ServerConfig{ReadTimeout: "never"},
	})
	require.Error(t, err)
}
