package config

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActionSources(t *testing.T) {
	res := ParseActionSources("0xABCdef0000000000000000000000000000000001:pool, bad ,0x2:swap,")

	assert.Len(t, res, 2)
	assert.Equal(t, "pool", res["0xabcdef0000000000000000000000000000000001"])
	assert.Equal(t, "swap", res["0x2"])
}

func TestLoadLedgerConfigDefaults(t *testing.T) {
	t.Setenv("LEDGER_DEDUPE_EVENTS", "")
	t.Setenv("AUTO_COMPENSATE", "yes-please")
	t.Setenv("STALE_PENDING_AFTER", "5m")

	cfg := LoadLedgerConfig()

	assert.True(t, cfg.DedupeEvents)
	assert.False(t, cfg.AutoCompensate, "unparsable bool falls back to default")
	assert.Equal(t, 5*time.Minute, cfg.StalePendingAfter)
	assert.Equal(t, "@every 1m", cfg.ReconcileSpec)
}

func TestLoadChainConfigMargin(t *testing.T) {
	t.Setenv("GAS_MARGIN_BPS", "250")
	t.Setenv("TRANSFER_TIMEOUT", "not-a-duration")

	cfg := LoadChainConfig()

	assert.Equal(t, int64(250), cfg.GasMarginBps)
	assert.Equal(t, DEFAULT_TRANSFER_TIMEOUT, cfg.TransferTimeout)
}

func TestLoadChainConfigRejectsNegativeMargin(t *testing.T) {
	t.Setenv("GAS_MARGIN_BPS", "-10000")

	cfg := LoadChainConfig()

	assert.Equal(t, DEFAULT_GAS_MARGIN_BPS, cfg.GasMarginBps)
}

func TestPostgresDSN(t *testing.T) {
	t.Setenv("DB_USER", "ledger")
	t.Setenv("DB_PASSWORD", "p@ss:w/rd")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_NAME", "refledger")
	t.Setenv("DB_SSLMODE", "")
	t.Setenv("DB_CONNECT_TIMEOUT", "3s")

	dsn := LoadPostgresConfig().DSN()

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss:w/rd", pass)
	assert.Equal(t, "db:5432", u.Host)
	assert.Equal(t, "/refledger", u.Path)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "3", u.Query().Get("connect_timeout"))
}
