package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_EnvOnlyDefaults(t *testing.T) {
	t.Setenv("AUCTIONEER_AUTH_SECRET", "s3cret")

	cfg, err := Load("", true)
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.HTTPAddr)
	require.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	require.Equal(t, "", cfg.DB.DSN)
	require.Equal(t, "@every 15m", cfg.Sweeper.Schedule)
	require.True(t, cfg.Sweeper.Enabled)
	require.Equal(t, 5*time.Minute, cfg.Auction.DefaultDuration)
	require.Equal(t, "1.00", cfg.Auction.MinBid().StringFixed(2))
	require.Equal(t, "log", cfg.Mail.Driver)
	require.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	path := writeFile(t, `
server:
  http_addr: ":9000"
auth:
  secret: from-file
sweeper:
  schedule: "@every 1m"
auction:
  default_duration: 10m
  default_min_bid: "2.50"
`)
	t.Setenv("AUCTIONEER_SERVER_HTTP_ADDR", ":9100")
	t.Setenv("AUCTIONEER_DB_DSN", "postgres://u:p@localhost:5432/auctioneer?sslmode=disable")

	cfg, err := Load(path, false)
	require.NoError(t, err)

	require.Equal(t, ":9100", cfg.Server.HTTPAddr)
	require.Equal(t, "from-file", cfg.Auth.Secret)
	require.Equal(t, "@every 1m", cfg.Sweeper.Schedule)
	require.Equal(t, 10*time.Minute, cfg.Auction.DefaultDuration)
	require.Equal(t, "2.50", cfg.Auction.MinBid().StringFixed(2))
	require.Contains(t, cfg.DB.DSN, "localhost:5432")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), false)
	require.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no_secret", body: "auth:\n  secret: \"\"\n"},
		{name: "min_bid_below_floor", body: "auth:\n  secret: x\nauction:\n  default_min_bid: \"0.50\"\n"},
		{name: "min_bid_fractional_cents", body: "auth:\n  secret: x\nauction:\n  default_min_bid: \"1.005\"\n"},
		{name: "unknown_mail_driver", body: "auth:\n  secret: x\nmail:\n  driver: carrier-pigeon\n"},
		{name: "admin_without_password", body: "auth:\n  secret: x\nadmin:\n  email: a@b.c\n"},
		{name: "sweeper_without_schedule", body: "auth:\n  secret: x\nsweeper:\n  schedule: \" \"\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tc.body), false)
			require.Error(t, err)
		})
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.yaml"), false)
	require.NoError(t, err)
	require.Equal(t, "admin@auctioneer.local", cfg.Admin.Email)
}
