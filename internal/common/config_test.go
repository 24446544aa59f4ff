package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "percipio.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Std())

	require.NoError(t, d.UnmarshalText([]byte("1h30m")))
	assert.Equal(t, 90*time.Minute, d.Std())

	assert.Error(t, d.UnmarshalText([]byte("soon")))
	assert.Error(t, d.UnmarshalText([]byte("30")))
}

func TestLoadFromFiles_DurationStrings(t *testing.T) {
	path := writeConfigFile(t, `
[crawler]
request_timeout = "45s"
crawl_budget = "2m"

[dispatcher]
call_timeout = "90s"
retry_backoff = "500ms"

[audit]
job_deadline = "20m"
stale_after = "10m"
`)

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, config.Crawler.RequestTimeout.Std())
	assert.Equal(t, 2*time.Minute, config.Crawler.CrawlBudget.Std())
	assert.Equal(t, 90*time.Second, config.Dispatcher.CallTimeout.Std())
	assert.Equal(t, 500*time.Millisecond, config.Dispatcher.RetryBackoff.Std())
	assert.Equal(t, 20*time.Minute, config.Audit.JobDeadline.Std())
	assert.Equal(t, 10*time.Minute, config.Audit.StaleAfter.Std())

	// Untouched sections keep their defaults
	assert.Equal(t, 12, config.Dispatcher.ModuleConcurrency)
	assert.Equal(t, Duration(250*time.Millisecond), config.Crawler.RequestDelay)
}

func TestLoadFromFiles_ShippedDeploymentConfig(t *testing.T) {
	config, err := LoadFromFiles("../../deployments/local/percipio.toml")
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, 30*time.Second, config.Crawler.RequestTimeout.Std())
	assert.Equal(t, 3*time.Minute, config.Crawler.CrawlBudget.Std())
	assert.Equal(t, 3*time.Second, config.Crawler.JavaScriptWaitTime.Std())
	assert.Equal(t, 120*time.Second, config.Dispatcher.CallTimeout.Std())
	assert.Equal(t, 30*time.Minute, config.Audit.JobDeadline.Std())
	assert.Equal(t, "0 */5 * * * *", config.Audit.ReaperSchedule)
	assert.Equal(t, LLMProviderClaude, config.LLM.DefaultProvider)
}

func TestLoadFromFiles_InvalidDuration(t *testing.T) {
	path := writeConfigFile(t, `
[crawler]
request_timeout = "whenever"
`)

	_, err := LoadFromFiles(path)
	assert.Error(t, err)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadFromFiles_LaterFileOverrides(t *testing.T) {
	base := writeConfigFile(t, `
[server]
port = 9000
`)
	override := filepath.Join(t.TempDir(), "override.toml")
	require.NoError(t, os.WriteFile(override, []byte("[server]\nport = 9100\n"), 0o644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)
	assert.Equal(t, 9100, config.Server.Port)
}
