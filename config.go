package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lg/life-dashboard-api/internal/identity"
	"lg/life-dashboard-api/internal/mailer"
)

// config is the server configuration, read from the environment (a .env file
// is loaded first when present).
type config struct {
	DBURL             string
	Port              string
	Location          *time.Location // APP_TIMEZONE; "today" is computed here
	SMTP              mailer.SMTP    // verification email; disabled when Host is empty
	GoogleUserinfoURL string
	OpenAIBaseURL     string
	OpenAIKey         string
	AllowedOrigins    []string // CORS; empty allows none
}

const (
	defaultPort          = "3000"
	defaultTimezone      = "Asia/Bishkek"
	defaultSMTPPort      = 587
	defaultMailFrom      = "noreply@lifedashboard.com"
	defaultOpenAIBaseURL = "https://api.openai.com"
)

// loadConfig builds the config from getenv. DB_URL is required.
func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		DBURL:             getenv("DB_URL"),
		Port:              getenv("PORT"),
		GoogleUserinfoURL: getenv("GOOGLE_USERINFO_URL"),
		OpenAIBaseURL:     getenv("OPENAI_BASE_URL"),
		OpenAIKey:         getenv("OPENAI_API_KEY"),
	}
	if cfg.DBURL == "" {
		return config{}, errors.New("DB_URL is required")
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.GoogleUserinfoURL == "" {
		cfg.GoogleUserinfoURL = identity.DefaultGoogleUserinfoURL
	}
	if cfg.OpenAIBaseURL == "" {
		cfg.OpenAIBaseURL = defaultOpenAIBaseURL
	}
	cfg.OpenAIBaseURL = strings.TrimSuffix(cfg.OpenAIBaseURL, "/")

	tz := getenv("APP_TIMEZONE")
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return config{}, fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	cfg.SMTP = mailer.SMTP{
		Host:     getenv("SMTP_HOST"),
		Port:     defaultSMTPPort,
		Username: getenv("SMTP_USERNAME"),
		Password: getenv("SMTP_PASSWORD"),
		From:     getenv("MAIL_FROM"),
	}
	if s := getenv("SMTP_PORT"); s != "" {
		port, err := strconv.Atoi(s)
		if err != nil || port <= 0 || port > 65535 {
			return config{}, fmt.Errorf("SMTP_PORT: invalid port %q", s)
		}
		cfg.SMTP.Port = port
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = defaultMailFrom
	}

	for _, o := range strings.Split(getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}
	return cfg, nil
}
