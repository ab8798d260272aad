package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shamebot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.HTTP.Port)
	assert.Equal(t, DefaultPostTime, cfg.Schedule.PostTime)
	assert.Equal(t, DefaultEmailTimeout, cfg.Signup.EmailTimeout)
	assert.Equal(t, DefaultPollAttempts, cfg.Signup.PollAttempts)
	assert.Equal(t, "q", cfg.Signup.CancelToken)
	assert.Equal(t, 10*time.Second, cfg.Todoist.RequestTimeout)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, `
discord:
  token: bot-token
  channel_id: "42"
todoist:
  client_id: cid
  client_secret: secret
  request_timeout: 3s
schedule:
  post_time: "07:30"
signup:
  poll_attempts: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bot-token", cfg.Discord.Token)
	assert.Equal(t, "42", cfg.Discord.ChannelID)
	assert.Equal(t, 3*time.Second, cfg.Todoist.RequestTimeout)
	assert.Equal(t, 3, cfg.Signup.PollAttempts)
	// untouched fields keep their defaults
	assert.Equal(t, DefaultAPIURL, cfg.Todoist.APIURL)

	hour, minute, err := cfg.Schedule.Clock()
	require.NoError(t, err)
	assert.Equal(t, 7, hour)
	assert.Equal(t, 30, minute)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "discord:\n  channel_id: \"1\"\n")
	t.Setenv("SHAMEBOT_DISCORD_CHANNEL_ID", "2")
	t.Setenv("SHAMEBOT_PORT", "9090")
	t.Setenv("SHAMEBOT_VERIFY_WEBHOOKS", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2", cfg.Discord.ChannelID)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.True(t, cfg.Security.VerifyWebhooks)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("SHAMEBOT_PORT", "eighty")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_InvalidPostTime(t *testing.T) {
	path := writeConfig(t, "schedule:\n  post_time: \"25:99\"\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_ReportsMissing(t *testing.T) {
	err := Default().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord.token")
	assert.Contains(t, err.Error(), "todoist.client_secret")
}
