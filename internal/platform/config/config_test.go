package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("JUDGE_WEBHOOK_RPS", "2.5")
	t.Setenv("EVENTS_ENABLED", "false")
	t.Setenv("REDIS_DB", "not-a-number")

	Load()

	assert.Equal(t, "9090", AppConfig.APIPort)
	assert.Equal(t, 2.5, AppConfig.JudgeWebhookRPS)
	assert.False(t, AppConfig.EventsEnabled)
	assert.Equal(t, 0, AppConfig.RedisDB)
	assert.Equal(t, 72*time.Hour, AppConfig.JWTExp)
	assert.Contains(t, AppConfig.DBConnStr, "dbname="+AppConfig.DBName)
}
