package rehearse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentfold/shadowwrite/chaos"
	"github.com/rentfold/shadowwrite/rehearse"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CHAOS_ENABLED", "CHAOS_FAIL_RATE", "CHAOS_SEED", "CHAOS_SCOPE", "APP_ENV",
		"POSTGRES_DSN", "JOURNAL_DSN", "REDIS_ADDR", "SURREALDB_URL", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestParseRequiresSubcommand(t *testing.T) {
	clearEnv(t)

	_, _, err := rehearse.Parse(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subcommand required")
}

func TestParseCommands(t *testing.T) {
	clearEnv(t)

	for _, tc := range []struct {
		args []string
		want string
	}{
		{[]string{"run"}, "run"},
		{[]string{"migrate"}, "migrate"},
		{[]string{"report"}, "report"},
	} {
		cmd, cfg, err := rehearse.Parse(tc.args)
		require.NoError(t, err)
		assert.Equal(t, tc.want, cmd.Name())
		assert.Equal(t, rehearse.KindMemory, cfg.Primary)
		assert.Equal(t, rehearse.KindMemory, cfg.Shadow)
		assert.Equal(t, 10, cfg.Cycles)
	}
}

func TestParseUnknownCommand(t *testing.T) {
	clearEnv(t)

	_, _, err := rehearse.Parse([]string{"teardown"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestParseStoreKinds(t *testing.T) {
	clearEnv(t)

	cmd, cfg, err := rehearse.Parse([]string{"-primary", "postgres", "-shadow", "surreal", "run"})
	require.NoError(t, err)
	assert.Equal(t, "run", cmd.Name())
	assert.Equal(t, rehearse.KindPostgres, cfg.Primary)
	assert.Equal(t, rehearse.KindSurreal, cfg.Shadow)

	_, _, err = rehearse.Parse([]string{"-primary", "oracle", "run"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store kind")
}

func TestParseRejectsNonPositiveCycles(t *testing.T) {
	clearEnv(t)

	_, _, err := rehearse.Parse([]string{"-cycles", "0", "run"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycles")
}

func TestParseChaosOverridesOnlyWhenSet(t *testing.T) {
	clearEnv(t)

	_, cfg, err := rehearse.Parse([]string{"run"})
	require.NoError(t, err)
	assert.Nil(t, cfg.ChaosEnabled)
	assert.Nil(t, cfg.FailRate)
	assert.Nil(t, cfg.Seed)

	_, cfg, err = rehearse.Parse([]string{"-chaos", "-fail-rate", "0.25", "-seed", "night-3", "run"})
	require.NoError(t, err)
	require.NotNil(t, cfg.ChaosEnabled)
	assert.True(t, *cfg.ChaosEnabled)
	require.NotNil(t, cfg.FailRate)
	assert.Equal(t, 0.25, *cfg.FailRate)
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, "night-3", *cfg.Seed)
}

func TestParseEnvFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_DSN", "postgres://localhost/rehearsal")
	t.Setenv("SURREALDB_NS", "ns1")

	_, cfg, err := rehearse.Parse([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/rehearsal", cfg.PostgresDSN)
	// JOURNAL_DSN defaults to the primary DSN.
	assert.Equal(t, cfg.PostgresDSN, cfg.JournalDSN)
	assert.Equal(t, "ns1", cfg.SurrealNS)
}

func TestMainRunsMemoryWorkload(t *testing.T) {
	clearEnv(t)

	err := rehearse.Main(context.Background(),
		[]string{"-chaos", "-fail-rate", "1", "-seed", "rehearse-test", "-cycles", "3", "run"})
	require.NoError(t, err)
}

func TestMainHonorsProductionGuard(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")

	err := rehearse.Main(context.Background(), []string{"-chaos", "run"})
	require.Error(t, err)
	assert.ErrorIs(t, err, chaos.ErrEnabledInProduction)
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	clearEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rehearse.Main(ctx, []string{"-cycles", "5", "run"})
	assert.ErrorIs(t, err, context.Canceled)
}
