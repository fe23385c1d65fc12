package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	LogLevel    string
	APIToken    string
	RulesPath   string

	SlackBotToken      string
	SlackAlertsChannel string
	SlackReviewChannel string

	CRMBaseURL string
	CRMAPIKey  string

	ConfidenceHigh      float64
	ConfidenceMedium    float64
	AutoUpdateEnabled   bool
	FlaggingEnabled     bool
	StrictMinConfidence bool
	SignalWeights       map[string]float64

	DecayHalfLife    time.Duration
	SignalMaxAge     time.Duration
	SeverityCritical float64
	SeverityHigh     float64
	SeverityMedium   float64

	AlertWindow     time.Duration
	AlertExpiration time.Duration
	AlertChannels   []string

	AuditRetention  time.Duration
	AuditFailClosed bool
	JanitorInterval time.Duration
}

func Load() Config {
	return Config{
		Port:        envInt("DEALWATCH_PORT", 8760),
		NatsURL:     envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		APIToken:    envStr("DEALWATCH_API_TOKEN", ""),
		RulesPath:   envStr("RULES_PATH", ""),

		SlackBotToken:      envStr("SLACK_BOT_TOKEN", ""),
		SlackAlertsChannel: envStr("SLACK_ALERTS_CHANNEL", ""),
		SlackReviewChannel: envStr("SLACK_REVIEW_CHANNEL", envStr("SLACK_ALERTS_CHANNEL", "")),

		CRMBaseURL: envStr("CRM_BASE_URL", ""),
		CRMAPIKey:  envStr("CRM_API_KEY", ""),

		ConfidenceHigh:      envFloat("CONFIDENCE_HIGH", 0.8),
		ConfidenceMedium:    envFloat("CONFIDENCE_MEDIUM", 0.5),
		AutoUpdateEnabled:   envBool("AUTO_UPDATE_ENABLED", true),
		FlaggingEnabled:     envBool("FLAGGING_ENABLED", true),
		StrictMinConfidence: envBool("STRICT_MIN_CONFIDENCE", false),
		SignalWeights:       envWeights("SIGNAL_WEIGHTS"),

		DecayHalfLife:    envDuration("DECAY_HALF_LIFE", 48*time.Hour),
		SignalMaxAge:     envDuration("SIGNAL_MAX_AGE", 168*time.Hour),
		SeverityCritical: envFloat("SEVERITY_CRITICAL", 80),
		SeverityHigh:     envFloat("SEVERITY_HIGH", 60),
		SeverityMedium:   envFloat("SEVERITY_MEDIUM", 40),

		AlertWindow:     envDuration("ALERT_WINDOW", 24*time.Hour),
		AlertExpiration: envDuration("ALERT_EXPIRATION", 72*time.Hour),
		AlertChannels:   envList("ALERT_CHANNELS", []string{"slack", "nats"}),

		AuditRetention:  envDuration("AUDIT_RETENTION", 90*24*time.Hour),
		AuditFailClosed: envBool("AUDIT_FAIL_CLOSED", false),
		JanitorInterval: envDuration("JANITOR_INTERVAL", time.Hour),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping blanks.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envWeights parses TYPE=weight pairs such as "NOT_INTERESTED=1.5,VOICEMAIL=0.8".
// Malformed pairs are skipped.
func envWeights(key string) map[string]float64 {
	out := make(map[string]float64)
	for _, pair := range envList(key, nil) {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || w < 0 {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(name))] = w
	}
	return out
}
