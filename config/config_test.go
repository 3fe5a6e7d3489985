package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/config"
	"github.com/xraph/volshift/workflow"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "volshift.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.BackendMemory, cfg.Store.Backend)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 14*24*time.Hour, cfg.DLQ.Retention)
	assert.Equal(t, volshift.DefaultConfig(), cfg.Volshift())
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
log_level: debug
store:
  backend: dynamodb
  record_table: tokens
aws:
  region: eu-west-1
orchestrator:
  state_machine_arn: arn:aws:states:eu-west-1:1:stateMachine:volshift
  activities:
    resize: arn:aws:states:eu-west-1:1:activity:resize
    attach-and-cleanup: arn:aws:states:eu-west-1:1:activity:cleanup
runtime:
  concurrency: 4
  poll_interval: 250ms
  fail_stalled_tasks: false
attach:
  max_attempts: 30
  delay: 5s
limits:
  - stage: create-instance
    max_concurrency: 2
    rate_limit: 0.5
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
	assert.Equal(t, "tokens", cfg.Store.RecordTable)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)

	acts, err := cfg.Activities()
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:states:eu-west-1:1:activity:cleanup", acts[workflow.StageAttachAndCleanup])
	assert.Len(t, acts, 2)

	rt := cfg.Volshift()
	assert.Equal(t, 4, rt.Concurrency)
	assert.Equal(t, 250*time.Millisecond, rt.PollInterval)
	assert.False(t, rt.FailStalledTasks)
	assert.Equal(t, 30, rt.Attach.MaxAttempts)
	assert.Equal(t, 5*time.Second, rt.Attach.Delay)
	// Unset fields keep their defaults.
	assert.Equal(t, volshift.DefaultConfig().Attach.Timeout, rt.Attach.Timeout)
	assert.Equal(t, "c6g.2xlarge", rt.Worker.InstanceType)

	require.Len(t, cfg.Limits, 1)
	assert.Equal(t, workflow.StageCreateInstance, cfg.Limits[0].Stage)
	assert.Equal(t, 2, cfg.Limits[0].MaxConcurrency)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, `
store:
  backend: sqlite
  path: /var/lib/volshift/a.db
runtime:
  concurrency: 4
`)
	t.Setenv("VOLSHIFT_STORE_PATH", "/tmp/b.db")
	t.Setenv("VOLSHIFT_CONCURRENCY", "8")
	t.Setenv("VOLSHIFT_HTTP_API_KEY", "s3cret")
	t.Setenv("VOLSHIFT_SFN_ACTIVITIES", "stop-target:arn:aws:states:us-east-1:1:activity:stop")
	t.Setenv("VOLSHIFT_ATTACH_DELAY", "1s")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/b.db", cfg.Store.Path)
	assert.Equal(t, 8, cfg.Runtime.Concurrency)
	assert.Equal(t, "s3cret", cfg.HTTP.APIKey)
	assert.Equal(t, time.Second, cfg.Attach.Delay)

	acts, err := cfg.Activities()
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:states:us-east-1:1:activity:stop", acts[workflow.StageStopTarget])
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "store: {backend: cassandra}"},
		{"sqlite without path", "store: {backend: sqlite}"},
		{"postgres without dsn", "store: {backend: postgres}"},
		{"mongo without database", "store: {backend: mongo, dsn: 'mongodb://localhost'}"},
		{"unknown stage", "orchestrator: {activities: {reboot: arn}}"},
		{"unknown limit stage", "limits: [{stage: reboot, max_concurrency: 1}]"},
		{"bad log level", "log_level: loud"},
		{"zero concurrency", "runtime: {concurrency: 0}"},
		{"zero attach attempts", "attach: {max_attempts: 0}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_Malformed(t *testing.T) {
	_, err := config.Load(writeFile(t, "store: [unclosed"))
	assert.ErrorContains(t, err, "parsing config file")

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDefault_NoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, config.BackendMemory, cfg.Store.Backend)
}
