package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Roster selection modes. They mirror the study coordinator's choices:
// monitor the REDCap roster, a hand-picked UID list, the union of both,
// or every user present in the chat store.
const (
	ModeRedcap   = "redcap"
	ModeUIDs     = "uids"
	ModeCombined = "both"
	ModeAll      = "all"
)

// Config holds all runtime configuration. It is assembled once at
// startup and passed into the services that need it; nothing reads the
// environment after Load returns.
type Config struct {
	Database  DatabaseConfig
	REDCap    REDCapConfig
	ChatStore ChatStoreConfig
	Twilio    TwilioConfig
	Sync      SyncConfig
	HTTPPort  string
}

// DatabaseConfig holds the postgres connection settings
type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required"`
	User     string `validate:"required"`
	Password string
	Name     string `validate:"required"`
	SSLMode  string
	TimeZone string
}

// REDCapConfig holds the clinical-trial directory settings.
// RemoteIDField and RAField map onto the project-defined REDCap field
// names, since those are not fixed across studies.
type REDCapConfig struct {
	APIURL        string
	APIToken      string
	FilterLogic   string
	FormName      string
	EventName     string
	RemoteIDField string `validate:"required"`
	RAField       string `validate:"required"`
}

// ChatStoreConfig holds the remote conversation store settings
type ChatStoreConfig struct {
	BaseURL  string `validate:"required,url"`
	APIToken string
	Timeout  time.Duration
}

// TwilioConfig holds the SMS transport settings
type TwilioConfig struct {
	AccountSID   string
	AuthToken    string
	FromNumber   string
	AdminNumbers []string
}

// SyncConfig holds the orchestrator settings
type SyncConfig struct {
	Mode          string `validate:"oneof=redcap uids both all"`
	RemoteIDs     []string
	RiskThreshold float64 `validate:"gte=0,lte=1"`
	Interval      time.Duration
	Timezone      string
}

// Load builds a Config from environment variables and validates it.
// Callers load .env (godotenv) before calling Load.
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "theradash"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnv("DB_NAME", "theradash"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			TimeZone: getEnv("DB_TIMEZONE", "UTC"),
		},
		REDCap: REDCapConfig{
			APIURL:        os.Getenv("REDCAP_API_URL"),
			APIToken:      os.Getenv("REDCAP_API_TOKEN"),
			FilterLogic:   os.Getenv("REDCAP_FILTER_LOGIC"),
			FormName:      getEnv("REDCAP_FORM_NAME", "clinical_trial_monitoring"),
			EventName:     os.Getenv("REDCAP_EVENT_NAME"),
			RemoteIDField: getEnv("REDCAP_REMOTE_ID_FIELD", "firebase_id"),
			RAField:       getEnv("REDCAP_RA_FIELD", "ra"),
		},
		ChatStore: ChatStoreConfig{
			BaseURL:  getEnv("CHATSTORE_BASE_URL", "http://localhost:9099"),
			APIToken: os.Getenv("CHATSTORE_API_TOKEN"),
			Timeout:  getEnvDuration("CHATSTORE_TIMEOUT", 30*time.Second),
		},
		Twilio: TwilioConfig{
			AccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber:   os.Getenv("TWILIO_FROM_NUMBER"),
			AdminNumbers: splitList(os.Getenv("TWILIO_ADMIN_NUMBERS")),
		},
		Sync: SyncConfig{
			Mode:          getEnv("USER_SELECTION_MODE", ModeRedcap),
			RemoteIDs:     splitList(os.Getenv("REMOTE_UIDS")),
			RiskThreshold: getEnvFloat("RISK_SCORE_THRESHOLD", 0.7),
			Interval:      getEnvDuration("SYNC_INTERVAL", 2*time.Minute),
			Timezone:      getEnv("TIMEZONE", "America/New_York"),
		},
		HTTPPort: getEnv("PORT", "8080"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Mode-dependent requirements the struct tags cannot express
	if cfg.Sync.Mode == ModeRedcap || cfg.Sync.Mode == ModeCombined {
		if cfg.REDCap.APIURL == "" || cfg.REDCap.APIToken == "" {
			return nil, fmt.Errorf("roster mode %q requires REDCAP_API_URL and REDCAP_API_TOKEN", cfg.Sync.Mode)
		}
	}
	if (cfg.Sync.Mode == ModeUIDs || cfg.Sync.Mode == ModeCombined) && len(cfg.Sync.RemoteIDs) == 0 {
		return nil, fmt.Errorf("roster mode %q requires a non-empty REMOTE_UIDS list", cfg.Sync.Mode)
	}

	return cfg, nil
}

// DSN returns the postgres connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// splitList parses a comma-separated env value, dropping empty entries
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
