/*
Package config assembles server configuration.

SOURCES (later wins):
  1. Defaults
  2. .env file in the working directory (optional)
  3. Process environment
  4. Command-line flags (-port, -db)

KEYS:
  PORT                HTTP port                      (8080)
  DB_PATH             SQLite path, ":memory:" ok     (karma.db)
  JWT_SECRET          Token signing secret           (required)
  TOKEN_TTL           Token lifetime                 (168h)
  LOG_LEVEL           logrus level                   (info)
  CORS_ORIGINS        Comma-separated origins        (http://localhost:5173,http://localhost:8080)
  POST_LIKE_KARMA     Karma per post like            (5)
  COMMENT_LIKE_KARMA  Karma per comment like         (1)
  LEADERBOARD_WINDOW  Trailing leaderboard window    (24h)
  LEADERBOARD_LIMIT   Leaderboard rows               (5)
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/warp/karma-engine/karma"
)

type Config struct {
	Port        int
	DBPath      string
	JWTSecret   string
	TokenTTL    time.Duration
	LogLevel    log.Level
	CORSOrigins []string
	Policy      karma.Policy
}

// Load reads .env (if present), the environment and then args.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv(os.Getenv, args)
}

// FromEnv builds a Config from a lookup function and command-line args.
func FromEnv(getenv func(string) string, args []string) (Config, error) {
	cfg := Config{
		Port:        8080,
		DBPath:      "karma.db",
		TokenTTL:    7 * 24 * time.Hour,
		LogLevel:    log.InfoLevel,
		CORSOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		Policy:      karma.DefaultPolicy(),
	}

	var err error
	if v := getenv("PORT"); v != "" {
		if cfg.Port, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("PORT: %w", err)
		}
	}
	if v := getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	cfg.JWTSecret = getenv("JWT_SECRET")
	if v := getenv("TOKEN_TTL"); v != "" {
		if cfg.TokenTTL, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("TOKEN_TTL: %w", err)
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		if cfg.LogLevel, err = log.ParseLevel(v); err != nil {
			return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := getenv("POST_LIKE_KARMA"); v != "" {
		if cfg.Policy.PostLikeKarma, err = strconv.ParseInt(v, 10, 64); err != nil {
			return Config{}, fmt.Errorf("POST_LIKE_KARMA: %w", err)
		}
	}
	if v := getenv("COMMENT_LIKE_KARMA"); v != "" {
		if cfg.Policy.CommentLikeKarma, err = strconv.ParseInt(v, 10, 64); err != nil {
			return Config{}, fmt.Errorf("COMMENT_LIKE_KARMA: %w", err)
		}
	}
	if v := getenv("LEADERBOARD_WINDOW"); v != "" {
		if cfg.Policy.LeaderboardWindow, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("LEADERBOARD_WINDOW: %w", err)
		}
	}
	if v := getenv("LEADERBOARD_LIMIT"); v != "" {
		if cfg.Policy.LeaderboardLimit, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("LEADERBOARD_LIMIT: %w", err)
		}
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is not set")
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("TOKEN_TTL must be positive, got %v", cfg.TokenTTL)
	}
	if err := cfg.Policy.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
