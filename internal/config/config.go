// Package config manages application configuration.
//
// Configuration is read once at startup and passed explicitly to every
// component. Sources, highest priority first: command-line overrides,
// environment variables (a .env file is loaded into the environment without
// replacing variables that are already set), an optional ytplan.yaml or
// ytplan.json file, and defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ytplan/internal/apperr"
	"ytplan/internal/plan"
	"ytplan/internal/retry"
)

// Store backends.
const (
	StoreSheets = "sheets"
	StoreFile   = "file"
)

// Playlist sources.
const (
	SourceYtdlp = "ytdlp"
	SourceAPI   = "api"
)

// Config holds all application configuration.
type Config struct {
	// Schedule
	PlaylistURL   string
	PlaylistName  string
	StartDate     civil.Date
	Participants  []plan.Participant
	DailyCapacity int

	// Store
	Store           string
	StorePath       string
	SheetName       string
	SpreadsheetID   string
	ShareEmail      string
	CredentialsFile string
	SheetsRPS       float64

	// Playlist source
	Source        string
	YouTubeAPIKey string
	YtdlpPath     string
	YtdlpTimeout  time.Duration

	// Reminders
	DryRun       bool
	EmailEnabled bool
	GraceDays    int
	Timezone     string
	Location     *time.Location
	SMTP         SMTPConfig

	// Retry settings
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	LogLevel  string
	LogFormat string
}

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	RequireTLS bool
}

// Options locate the configuration sources.
type Options struct {
	// ConfigFile is an explicit config file. When empty, ytplan.{yaml,json}
	// is searched in the working directory and ~/.config/ytplan.
	ConfigFile string
	// EnvFile is loaded into the environment. Defaults to ".env"; a missing
	// file is ignored.
	EnvFile string
	// Overrides take precedence over every other source, keyed like the
	// config file.
	Overrides map[string]any
}

// envNames binds config keys to environment variables.
var envNames = map[string][]string{
	"playlist_url":       {"PLAYLIST_URL"},
	"playlist_name":      {"PLAYLIST_NAME"},
	"start_date":         {"START_DATE"},
	"participants":       {"PARTICIPANTS", "EMAIL_CONTACTS"},
	"daily_capacity":     {"DAILY_CAPACITY"},
	"store":              {"STORE"},
	"store_path":         {"STORE_PATH"},
	"sheet_name":         {"SHEET_NAME"},
	"spreadsheet_id":     {"SPREADSHEET_ID"},
	"share_email":        {"SHARE_EMAIL"},
	"credentials_file":   {"GOOGLE_APPLICATION_CREDENTIALS"},
	"sheets_rps":         {"SHEETS_RPS"},
	"source":             {"SOURCE"},
	"youtube_api_key":    {"YOUTUBE_API_KEY"},
	"ytdlp_path":         {"YTDLP_PATH"},
	"ytdlp_timeout":      {"YTDLP_TIMEOUT"},
	"dry_run":            {"DRY_RUN"},
	"email_enabled":      {"EMAIL_ENABLED"},
	"grace_days":         {"GRACE_DAYS"},
	"timezone":           {"TIMEZONE"},
	"smtp_host":          {"SMTP_HOST"},
	"smtp_port":          {"SMTP_PORT"},
	"smtp_username":      {"SMTP_EMAIL", "SMTP_USERNAME"},
	"smtp_password":      {"SMTP_PASSWORD"},
	"smtp_from":          {"SMTP_FROM"},
	"smtp_require_tls":   {"SMTP_REQUIRE_TLS"},
	"max_retries":        {"MAX_RETRIES"},
	"initial_backoff":    {"INITIAL_BACKOFF"},
	"max_backoff":        {"MAX_BACKOFF"},
	"backoff_multiplier": {"BACKOFF_MULTIPLIER"},
	"log_level":          {"LOG_LEVEL"},
	"log_format":         {"LOG_FORMAT"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("daily_capacity", 3)
	v.SetDefault("store", StoreSheets)
	v.SetDefault("store_path", "ytplan.json")
	v.SetDefault("credentials_file", "credentials.json")
	v.SetDefault("sheets_rps", 1.0)
	v.SetDefault("source", SourceYtdlp)
	v.SetDefault("ytdlp_path", "yt-dlp")
	v.SetDefault("ytdlp_timeout", "5m")
	v.SetDefault("dry_run", false)
	v.SetDefault("email_enabled", true)
	v.SetDefault("grace_days", 0)
	v.SetDefault("timezone", "Local")
	v.SetDefault("smtp_host", "smtp.gmail.com")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_require_tls", true)
	v.SetDefault("max_retries", 5)
	v.SetDefault("initial_backoff", "1s")
	v.SetDefault("max_backoff", "30s")
	v.SetDefault("backoff_multiplier", 2.0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads every source, parses values strictly and runs Validate.
// Entry points call ValidatePublish or ValidateRemind on the result.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.Configf("env_file", "load %s: %v", envFile, err)
	}

	v := viper.New()
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("ytplan")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/ytplan")
	}
	setDefaults(v)
	for key, names := range envNames {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, apperr.Configf(key, "bind environment: %v", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, apperr.Configf("config_file", "reading config: %v", err)
		}
		// Config file not found is OK, use defaults
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	cfg, err := parse(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parser accumulates the first strict parsing failure.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) str(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) integer(key string) int {
	s := p.str(key)
	n, err := strconv.Atoi(s)
	if err != nil && p.err == nil {
		p.err = apperr.Configf(key, "invalid integer %q", s)
	}
	return n
}

func (p *parser) float(key string) float64 {
	s := p.str(key)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && p.err == nil {
		p.err = apperr.Configf(key, "invalid number %q", s)
	}
	return f
}

func (p *parser) boolean(key string) bool {
	s := strings.ToLower(p.str(key))
	switch s {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	if p.err == nil {
		p.err = apperr.Configf(key, "invalid boolean %q (want true or false)", s)
	}
	return false
}

func (p *parser) duration(key string) time.Duration {
	s := p.str(key)
	d, err := time.ParseDuration(s)
	if err != nil && p.err == nil {
		p.err = apperr.Configf(key, "invalid duration %q", s)
	}
	return d
}

func (p *parser) date(key string) civil.Date {
	s := p.str(key)
	if s == "" {
		return civil.Date{}
	}
	d, err := civil.ParseDate(s)
	if err != nil && p.err == nil {
		p.err = apperr.Configf(key, "invalid date %q (want YYYY-MM-DD)", s)
	}
	return d
}

func parse(v *viper.Viper) (*Config, error) {
	p := &parser{v: v}
	cfg := &Config{
		PlaylistURL:   p.str("playlist_url"),
		PlaylistName:  p.str("playlist_name"),
		StartDate:     p.date("start_date"),
		DailyCapacity: p.integer("daily_capacity"),

		Store:           strings.ToLower(p.str("store")),
		StorePath:       p.str("store_path"),
		SheetName:       p.str("sheet_name"),
		SpreadsheetID:   p.str("spreadsheet_id"),
		ShareEmail:      p.str("share_email"),
		CredentialsFile: p.str("credentials_file"),
		SheetsRPS:       p.float("sheets_rps"),

		Source:        strings.ToLower(p.str("source")),
		YouTubeAPIKey: p.str("youtube_api_key"),
		YtdlpPath:     p.str("ytdlp_path"),
		YtdlpTimeout:  p.duration("ytdlp_timeout"),

		DryRun:       p.boolean("dry_run"),
		EmailEnabled: p.boolean("email_enabled"),
		GraceDays:    p.integer("grace_days"),
		Timezone:     p.str("timezone"),
		SMTP: SMTPConfig{
			Host:       p.str("smtp_host"),
			Port:       p.integer("smtp_port"),
			Username:   p.str("smtp_username"),
			Password:   v.GetString("smtp_password"),
			From:       p.str("smtp_from"),
			RequireTLS: p.boolean("smtp_require_tls"),
		},

		MaxRetries:        p.integer("max_retries"),
		InitialBackoff:    p.duration("initial_backoff"),
		MaxBackoff:        p.duration("max_backoff"),
		BackoffMultiplier: p.float("backoff_multiplier"),

		LogLevel:  strings.ToLower(p.str("log_level")),
		LogFormat: strings.ToLower(p.str("log_format")),
	}
	if p.err != nil {
		return nil, p.err
	}

	participants, err := ParseParticipants(v.Get("participants"))
	if err != nil {
		return nil, err
	}
	cfg.Participants = participants

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, apperr.Configf("timezone", "unknown time zone %q", cfg.Timezone)
	}
	cfg.Location = loc
	return cfg, nil
}

// Validate checks settings shared by all entry points.
func (c *Config) Validate() error {
	if c.DailyCapacity < 1 {
		return apperr.Configf("daily_capacity", "must be at least 1, got %d", c.DailyCapacity)
	}
	switch c.Store {
	case StoreSheets, StoreFile:
	default:
		return apperr.Configf("store", "unknown store %q (want %s or %s)", c.Store, StoreSheets, StoreFile)
	}
	switch c.Source {
	case SourceYtdlp, SourceAPI:
	default:
		return apperr.Configf("source", "unknown source %q (want %s or %s)", c.Source, SourceYtdlp, SourceAPI)
	}
	if c.SheetsRPS < 0 {
		return apperr.Configf("sheets_rps", "must be non-negative")
	}
	if c.YtdlpTimeout <= 0 {
		return apperr.Configf("ytdlp_timeout", "must be positive")
	}
	if c.GraceDays < 0 {
		return apperr.Configf("grace_days", "must be non-negative")
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		return apperr.Configf("smtp_port", "must be between 1 and 65535, got %d", c.SMTP.Port)
	}
	if c.MaxRetries < 0 {
		return apperr.Configf("max_retries", "must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return apperr.Configf("initial_backoff", "must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return apperr.Configf("max_backoff", "must be >= initial_backoff")
	}
	if c.BackoffMultiplier < 1 {
		return apperr.Configf("backoff_multiplier", "must be >= 1")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return apperr.Configf("log_level", "invalid level %q (must be debug, info, warn, or error)", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return apperr.Configf("log_format", "invalid format %q (must be text or json)", c.LogFormat)
	}

	seen := map[string]bool{}
	for _, p := range c.Participants {
		if seen[p.Name] {
			return apperr.Configf("participants", "duplicate participant %q", p.Name)
		}
		seen[p.Name] = true
		if p.Email != "" && !strings.Contains(p.Email, "@") {
			return apperr.Configf("participants", "invalid email %q for %s", p.Email, p.Name)
		}
	}
	if c.ShareEmail != "" && !strings.Contains(c.ShareEmail, "@") {
		return apperr.Configf("share_email", "invalid email %q", c.ShareEmail)
	}
	return nil
}

// ValidatePublish checks the settings the publish entry point needs.
func (c *Config) ValidatePublish() error {
	if c.PlaylistURL == "" {
		return apperr.Configf("playlist_url", "required")
	}
	if !c.StartDate.IsValid() {
		return apperr.Configf("start_date", "required (YYYY-MM-DD)")
	}
	if c.Source == SourceAPI && c.YouTubeAPIKey == "" {
		return apperr.Configf("youtube_api_key", "required when source is %s", SourceAPI)
	}
	if err := c.validateParticipants(); err != nil {
		return err
	}
	return c.validateStore()
}

// ValidateRemind checks the settings the remind entry point needs.
func (c *Config) ValidateRemind() error {
	if err := c.validateParticipants(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if !c.Sending() {
		return nil
	}
	if c.SMTP.Host == "" {
		return apperr.Configf("smtp_host", "required when email is enabled")
	}
	if c.SMTP.Username == "" || c.SMTP.Password == "" {
		return apperr.Configf("smtp_username", "SMTP_EMAIL and SMTP_PASSWORD are required when email is enabled")
	}
	return nil
}

// Sending reports whether reminders are actually delivered.
func (c *Config) Sending() bool {
	return c.EmailEnabled && !c.DryRun
}

func (c *Config) validateParticipants() error {
	if len(c.Participants) == 0 {
		return apperr.Configf("participants", "at least one participant is required")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store {
	case StoreFile:
		if c.StorePath == "" {
			return apperr.Configf("store_path", "required when store is %s", StoreFile)
		}
	case StoreSheets:
		if c.SheetName == "" && c.SpreadsheetID == "" {
			return apperr.Configf("sheet_name", "sheet_name or spreadsheet_id is required")
		}
		if c.CredentialsFile == "" {
			return apperr.Configf("credentials_file", "required when store is %s", StoreSheets)
		}
		if _, err := os.Stat(c.CredentialsFile); err != nil {
			return apperr.Configf("credentials_file", "%v", err)
		}
	}
	return nil
}

// Retry returns the retry policy for external calls.
func (c *Config) Retry() retry.Config {
	return retry.Config{
		MaxRetries:     c.MaxRetries,
		InitialBackoff: c.InitialBackoff,
		MaxBackoff:     c.MaxBackoff,
		Multiplier:     c.BackoffMultiplier,
		JitterFraction: 0.2,
	}
}

// Today returns the calendar date of now in the configured time zone.
func (c *Config) Today(now time.Time) civil.Date {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return civil.DateOf(now.In(loc))
}

// ParticipantNames returns the participant names in configured order.
func (c *Config) ParticipantNames() []string {
	names := make([]string, len(c.Participants))
	for i, p := range c.Participants {
		names[i] = p.Name
	}
	return names
}

// String renders the configuration with secrets masked.
func (c *Config) String() string {
	return fmt.Sprintf("store=%s source=%s playlist=%q start=%s capacity=%d participants=%d dry_run=%t email_enabled=%t",
		c.Store, c.Source, c.PlaylistURL, c.StartDate, c.DailyCapacity, len(c.Participants), c.DryRun, c.EmailEnabled)
}
