package config

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/karma-engine/karma"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"JWT_SECRET": "s"}), nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "karma.db", cfg.DBPath)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, log.InfoLevel, cfg.LogLevel)
	assert.Equal(t, karma.DefaultPolicy(), cfg.Policy)
	assert.Len(t, cfg.CORSOrigins, 2)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"JWT_SECRET":         "s",
		"PORT":               "9000",
		"DB_PATH":            "/tmp/x.db",
		"LOG_LEVEL":          "debug",
		"CORS_ORIGINS":       "https://a.example, https://b.example,",
		"POST_LIKE_KARMA":    "10",
		"COMMENT_LIKE_KARMA": "2",
		"LEADERBOARD_WINDOW": "1h",
		"LEADERBOARD_LIMIT":  "3",
	}), []string{"-port", "9100", "-db", ":memory:"})
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port, "flag wins over env")
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, log.DebugLevel, cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, int64(10), cfg.Policy.PostLikeKarma)
	assert.Equal(t, int64(2), cfg.Policy.CommentLikeKarma)
	assert.Equal(t, time.Hour, cfg.Policy.LeaderboardWindow)
	assert.Equal(t, 3, cfg.Policy.LeaderboardLimit)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"missing secret":   {},
		"bad port":         {"JWT_SECRET": "s", "PORT": "http"},
		"bad level":        {"JWT_SECRET": "s", "LOG_LEVEL": "loud"},
		"zero post karma":  {"JWT_SECRET": "s", "POST_LIKE_KARMA": "0"},
		"negative comment": {"JWT_SECRET": "s", "COMMENT_LIKE_KARMA": "-1"},
		"bad window":       {"JWT_SECRET": "s", "LEADERBOARD_WINDOW": "yesterday"},
		"zero limit":       {"JWT_SECRET": "s", "LEADERBOARD_LIMIT": "0"},
		"non-positive ttl": {"JWT_SECRET": "s", "TOKEN_TTL": "0s"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(env(vars), nil)
			assert.Error(t, err)
		})
	}
}
