package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	S3       S3Config
	Auth     AuthConfig
	CORS     CORSConfig
	Email    EmailConfig
	Queue    QueueConfig
	OCR      OCRConfig
	Layout   LayoutConfig
	Resolver ResolverConfig
	Backend  BackendConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings for uploaded exams and archived reports.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	InputPrefix   string `mapstructure:"input_prefix"`
	ReportPrefix  string `mapstructure:"report_prefix"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// AuthConfig holds API token settings. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	Issuer      string        `mapstructure:"issuer"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// EmailConfig holds run summary delivery settings.
type EmailConfig struct {
	Provider    string   `mapstructure:"provider"`
	Region      string   `mapstructure:"region"`
	FromAddress string   `mapstructure:"from_address"`
	FromName    string   `mapstructure:"from_name"`
	Recipients  []string `mapstructure:"recipients"`
}

// QueueConfig holds run queue worker settings.
type QueueConfig struct {
	PollIntervalSecs int `mapstructure:"poll_interval_secs"`
	MaxAttempts      int `mapstructure:"max_attempts"`
	Concurrency      int `mapstructure:"concurrency"`
	RunTimeoutMins   int `mapstructure:"run_timeout_mins"`
}

// OCRConfig holds rasterization and OCR settings.
type OCRConfig struct {
	DPI           int      `mapstructure:"dpi"`
	Languages     []string `mapstructure:"languages"`
	MaxEdgePx     int      `mapstructure:"max_edge_px"`
	PageWorkers   int      `mapstructure:"page_workers"`
	MinConfidence float64  `mapstructure:"min_confidence"`
}

// LabelSetConfig is one closed set of choice labels in their expected order.
type LabelSetConfig struct {
	Name   string   `mapstructure:"name"`
	Glyphs []string `mapstructure:"glyphs"`
	Values []string `mapstructure:"values"`
}

// LayoutConfig holds segmentation and glyph settings.
type LayoutConfig struct {
	ColumnGapRatio    float64          `mapstructure:"column_gap_ratio"`
	MinGapHeightRatio float64          `mapstructure:"min_gap_height_ratio"`
	MaxColumns        int              `mapstructure:"max_columns"`
	LineTolerance     float64          `mapstructure:"line_tolerance"`
	MaxNumberSkip     int              `mapstructure:"max_number_skip"`
	NumberingPatterns []string         `mapstructure:"numbering_patterns"`
	LabelSets         []LabelSetConfig `mapstructure:"label_sets"`
	FigurePattern     string           `mapstructure:"figure_pattern"`
	Confusables       map[rune]rune    `mapstructure:"-"`
}

// ResolverConfig holds answer resolution settings.
type ResolverConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	Concurrency     int           `mapstructure:"concurrency"`
	PerCallTimeout  time.Duration `mapstructure:"per_call_timeout"`
	DocumentTimeout time.Duration `mapstructure:"document_timeout"`
	BaseDelay       time.Duration `mapstructure:"base_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
}

// BackendProviderConfig holds settings for a single reasoning backend provider.
type BackendProviderConfig struct {
	Provider    string `mapstructure:"provider"`
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	BaseURL     string `mapstructure:"base_url"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
	MaxTokens   int    `mapstructure:"max_tokens"`
}

// BackendConfig holds reasoning backend settings with fallback providers.
type BackendConfig struct {
	Primary    BackendProviderConfig `mapstructure:"primary"`
	Secondary  BackendProviderConfig `mapstructure:"secondary"`
	Tertiary   BackendProviderConfig `mapstructure:"tertiary"`
	RatePerSec float64               `mapstructure:"rate_per_sec"`
	Burst      int                   `mapstructure:"burst"`
}

// Providers returns the configured providers in fallback order.
func (b *BackendConfig) Providers() []*BackendProviderConfig {
	var out []*BackendProviderConfig
	for _, p := range []*BackendProviderConfig{&b.Primary, &b.Secondary, &b.Tertiary} {
		if p.Provider != "" {
			out = append(out, p)
		}
	}
	return out
}

const (
	defaultLabelSets = "circled=① ② ③ ④ ⑤|1 2 3 4 5;" +
		"paren_digit=(1) (2) (3) (4) (5)|1 2 3 4 5;" +
		"paren_letter=(A) (B) (C) (D) (E)|A B C D E;" +
		"paren_hangul=(가) (나) (다) (라) (마)|가 나 다 라 마"
	defaultNumberingPatterns = `^(\d{1,3})[.)];^\[(\d{1,3})\]`
	defaultFigurePattern     = `\[그림\s*\d*\]|<그림\s*\d*>|(?i)\bfig(?:ure|\.)\s*\d+`
	defaultConfusables       = "O=0,o=0,l=1,I=1,|=1,!=1,Z=2,S=5,G=6,B=8"
)

// Load reads configuration from environment variables with the EXAMSOLVER_
// prefix and, when EXAMSOLVER_CONFIG_FILE is set, from that file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EXAMSOLVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.max_upload_mb", 100)

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "examsolver")
	v.SetDefault("db.password", "examsolver_secret")
	v.SetDefault("db.name", "examsolver_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "examsolver")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.input_prefix", "inputs")
	v.SetDefault("s3.report_prefix", "reports")
	v.SetDefault("s3.presign_expiry", 3600)

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "examsolver")
	v.SetDefault("auth.token_expiry", "720h")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "us-east-1")
	v.SetDefault("email.from_address", "noreply@examsolver.local")
	v.SetDefault("email.from_name", "Exam Solver")
	v.SetDefault("email.recipients", "")

	// Queue defaults
	v.SetDefault("queue.poll_interval_secs", 5)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.concurrency", 2)
	v.SetDefault("queue.run_timeout_mins", 30)

	// OCR defaults
	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("ocr.languages", "kor+eng")
	v.SetDefault("ocr.max_edge_px", 6000)
	v.SetDefault("ocr.page_workers", 4)
	v.SetDefault("ocr.min_confidence", 0.2)

	// Layout defaults
	v.SetDefault("layout.column_gap_ratio", 0.03)
	v.SetDefault("layout.min_gap_height_ratio", 0.8)
	v.SetDefault("layout.max_columns", 3)
	v.SetDefault("layout.line_tolerance", 0.5)
	v.SetDefault("layout.max_number_skip", 2)
	v.SetDefault("layout.numbering_patterns", defaultNumberingPatterns)
	v.SetDefault("layout.label_sets", defaultLabelSets)
	v.SetDefault("layout.figure_pattern", defaultFigurePattern)
	v.SetDefault("layout.confusables", defaultConfusables)

	// Resolver defaults
	v.SetDefault("resolver.max_attempts", 3)
	v.SetDefault("resolver.concurrency", 4)
	v.SetDefault("resolver.per_call_timeout", "60s")
	v.SetDefault("resolver.document_timeout", "15m")
	v.SetDefault("resolver.base_delay", "1s")
	v.SetDefault("resolver.max_delay", "30s")

	// Backend defaults
	v.SetDefault("backend.primary.provider", "claude")
	v.SetDefault("backend.primary.api_key", "")
	v.SetDefault("backend.primary.model", "")
	v.SetDefault("backend.primary.base_url", "")
	v.SetDefault("backend.primary.timeout_secs", 60)
	v.SetDefault("backend.primary.max_tokens", 512)
	v.SetDefault("backend.secondary.provider", "")
	v.SetDefault("backend.secondary.api_key", "")
	v.SetDefault("backend.secondary.model", "")
	v.SetDefault("backend.secondary.base_url", "")
	v.SetDefault("backend.secondary.timeout_secs", 60)
	v.SetDefault("backend.secondary.max_tokens", 512)
	v.SetDefault("backend.tertiary.provider", "")
	v.SetDefault("backend.tertiary.api_key", "")
	v.SetDefault("backend.tertiary.model", "")
	v.SetDefault("backend.tertiary.base_url", "")
	v.SetDefault("backend.tertiary.timeout_secs", 60)
	v.SetDefault("backend.tertiary.max_tokens", 512)
	v.SetDefault("backend.rate_per_sec", 2.0)
	v.SetDefault("backend.burst", 4)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                    "EXAMSOLVER_SERVER_PORT",
		"server.read_timeout":            "EXAMSOLVER_SERVER_READ_TIMEOUT",
		"server.write_timeout":           "EXAMSOLVER_SERVER_WRITE_TIMEOUT",
		"server.environment":             "EXAMSOLVER_SERVER_ENVIRONMENT",
		"server.max_upload_mb":           "EXAMSOLVER_SERVER_MAX_UPLOAD_MB",
		"db.host":                        "EXAMSOLVER_DB_HOST",
		"db.port":                        "EXAMSOLVER_DB_PORT",
		"db.user":                        "EXAMSOLVER_DB_USER",
		"db.password":                    "EXAMSOLVER_DB_PASSWORD",
		"db.name":                        "EXAMSOLVER_DB_NAME",
		"db.sslmode":                     "EXAMSOLVER_DB_SSLMODE",
		"db.max_open":                    "EXAMSOLVER_DB_MAX_OPEN",
		"db.max_idle":                    "EXAMSOLVER_DB_MAX_IDLE",
		"s3.region":                      "EXAMSOLVER_S3_REGION",
		"s3.bucket":                      "EXAMSOLVER_S3_BUCKET",
		"s3.endpoint":                    "EXAMSOLVER_S3_ENDPOINT",
		"s3.access_key":                  "EXAMSOLVER_S3_ACCESS_KEY",
		"s3.secret_key":                  "EXAMSOLVER_S3_SECRET_KEY",
		"s3.input_prefix":                "EXAMSOLVER_S3_INPUT_PREFIX",
		"s3.report_prefix":               "EXAMSOLVER_S3_REPORT_PREFIX",
		"s3.presign_expiry":              "EXAMSOLVER_S3_PRESIGN_EXPIRY",
		"auth.jwt_secret":                "EXAMSOLVER_AUTH_JWT_SECRET",
		"auth.issuer":                    "EXAMSOLVER_AUTH_ISSUER",
		"auth.token_expiry":              "EXAMSOLVER_AUTH_TOKEN_EXPIRY",
		"cors.allowed_origins":           "EXAMSOLVER_CORS_ALLOWED_ORIGINS",
		"email.provider":                 "EXAMSOLVER_EMAIL_PROVIDER",
		"email.region":                   "EXAMSOLVER_EMAIL_REGION",
		"email.from_address":             "EXAMSOLVER_EMAIL_FROM_ADDRESS",
		"email.from_name":                "EXAMSOLVER_EMAIL_FROM_NAME",
		"email.recipients":               "EXAMSOLVER_EMAIL_RECIPIENTS",
		"queue.poll_interval_secs":       "EXAMSOLVER_QUEUE_POLL_INTERVAL_SECS",
		"queue.max_attempts":             "EXAMSOLVER_QUEUE_MAX_ATTEMPTS",
		"queue.concurrency":              "EXAMSOLVER_QUEUE_CONCURRENCY",
		"queue.run_timeout_mins":         "EXAMSOLVER_QUEUE_RUN_TIMEOUT_MINS",
		"ocr.dpi":                        "EXAMSOLVER_OCR_DPI",
		"ocr.languages":                  "EXAMSOLVER_OCR_LANGUAGES",
		"ocr.max_edge_px":                "EXAMSOLVER_OCR_MAX_EDGE_PX",
		"ocr.page_workers":               "EXAMSOLVER_OCR_PAGE_WORKERS",
		"ocr.min_confidence":             "EXAMSOLVER_OCR_MIN_CONFIDENCE",
		"layout.column_gap_ratio":        "EXAMSOLVER_LAYOUT_COLUMN_GAP_RATIO",
		"layout.min_gap_height_ratio":    "EXAMSOLVER_LAYOUT_MIN_GAP_HEIGHT_RATIO",
		"layout.max_columns":             "EXAMSOLVER_LAYOUT_MAX_COLUMNS",
		"layout.line_tolerance":          "EXAMSOLVER_LAYOUT_LINE_TOLERANCE",
		"layout.max_number_skip":         "EXAMSOLVER_LAYOUT_MAX_NUMBER_SKIP",
		"layout.numbering_patterns":      "EXAMSOLVER_LAYOUT_NUMBERING_PATTERNS",
		"layout.label_sets":              "EXAMSOLVER_LAYOUT_LABEL_SETS",
		"layout.figure_pattern":          "EXAMSOLVER_LAYOUT_FIGURE_PATTERN",
		"layout.confusables":             "EXAMSOLVER_LAYOUT_CONFUSABLES",
		"resolver.max_attempts":          "EXAMSOLVER_RESOLVER_MAX_ATTEMPTS",
		"resolver.concurrency":           "EXAMSOLVER_RESOLVER_CONCURRENCY",
		"resolver.per_call_timeout":      "EXAMSOLVER_RESOLVER_PER_CALL_TIMEOUT",
		"resolver.document_timeout":      "EXAMSOLVER_RESOLVER_DOCUMENT_TIMEOUT",
		"resolver.base_delay":            "EXAMSOLVER_RESOLVER_BASE_DELAY",
		"resolver.max_delay":             "EXAMSOLVER_RESOLVER_MAX_DELAY",
		"backend.primary.provider":       "EXAMSOLVER_BACKEND_PRIMARY_PROVIDER",
		"backend.primary.api_key":        "EXAMSOLVER_BACKEND_PRIMARY_API_KEY",
		"backend.primary.model":          "EXAMSOLVER_BACKEND_PRIMARY_MODEL",
		"backend.primary.base_url":       "EXAMSOLVER_BACKEND_PRIMARY_BASE_URL",
		"backend.primary.timeout_secs":   "EXAMSOLVER_BACKEND_PRIMARY_TIMEOUT_SECS",
		"backend.primary.max_tokens":     "EXAMSOLVER_BACKEND_PRIMARY_MAX_TOKENS",
		"backend.secondary.provider":     "EXAMSOLVER_BACKEND_SECONDARY_PROVIDER",
		"backend.secondary.api_key":      "EXAMSOLVER_BACKEND_SECONDARY_API_KEY",
		"backend.secondary.model":        "EXAMSOLVER_BACKEND_SECONDARY_MODEL",
		"backend.secondary.base_url":     "EXAMSOLVER_BACKEND_SECONDARY_BASE_URL",
		"backend.secondary.timeout_secs": "EXAMSOLVER_BACKEND_SECONDARY_TIMEOUT_SECS",
		"backend.secondary.max_tokens":   "EXAMSOLVER_BACKEND_SECONDARY_MAX_TOKENS",
		"backend.tertiary.provider":      "EXAMSOLVER_BACKEND_TERTIARY_PROVIDER",
		"backend.tertiary.api_key":       "EXAMSOLVER_BACKEND_TERTIARY_API_KEY",
		"backend.tertiary.model":         "EXAMSOLVER_BACKEND_TERTIARY_MODEL",
		"backend.tertiary.base_url":      "EXAMSOLVER_BACKEND_TERTIARY_BASE_URL",
		"backend.tertiary.timeout_secs":  "EXAMSOLVER_BACKEND_TERTIARY_TIMEOUT_SECS",
		"backend.tertiary.max_tokens":    "EXAMSOLVER_BACKEND_TERTIARY_MAX_TOKENS",
		"backend.rate_per_sec":           "EXAMSOLVER_BACKEND_RATE_PER_SEC",
		"backend.burst":                  "EXAMSOLVER_BACKEND_BURST",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if path := os.Getenv("EXAMSOLVER_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{}

	cfg.Server = ServerConfig{
		Port:         v.GetString("server.port"),
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
		MaxUploadMB:  v.GetInt64("server.max_upload_mb"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		InputPrefix:   v.GetString("s3.input_prefix"),
		ReportPrefix:  v.GetString("s3.report_prefix"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Auth = AuthConfig{
		JWTSecret:   v.GetString("auth.jwt_secret"),
		Issuer:      v.GetString("auth.issuer"),
		TokenExpiry: v.GetDuration("auth.token_expiry"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("cors.allowed_origins"), ","),
	}
	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
		Recipients:  splitList(v.GetString("email.recipients"), ","),
	}
	cfg.Queue = QueueConfig{
		PollIntervalSecs: v.GetInt("queue.poll_interval_secs"),
		MaxAttempts:      v.GetInt("queue.max_attempts"),
		Concurrency:      v.GetInt("queue.concurrency"),
		RunTimeoutMins:   v.GetInt("queue.run_timeout_mins"),
	}
	cfg.OCR = OCRConfig{
		DPI:           v.GetInt("ocr.dpi"),
		Languages:     splitList(v.GetString("ocr.languages"), "+"),
		MaxEdgePx:     v.GetInt("ocr.max_edge_px"),
		PageWorkers:   v.GetInt("ocr.page_workers"),
		MinConfidence: v.GetFloat64("ocr.min_confidence"),
	}

	labelSets, err := ParseLabelSets(v.GetString("layout.label_sets"))
	if err != nil {
		return nil, fmt.Errorf("parsing layout.label_sets: %w", err)
	}
	confusables, err := ParseConfusables(v.GetString("layout.confusables"))
	if err != nil {
		return nil, fmt.Errorf("parsing layout.confusables: %w", err)
	}
	cfg.Layout = LayoutConfig{
		ColumnGapRatio:    v.GetFloat64("layout.column_gap_ratio"),
		MinGapHeightRatio: v.GetFloat64("layout.min_gap_height_ratio"),
		MaxColumns:        v.GetInt("layout.max_columns"),
		LineTolerance:     v.GetFloat64("layout.line_tolerance"),
		MaxNumberSkip:     v.GetInt("layout.max_number_skip"),
		NumberingPatterns: splitList(v.GetString("layout.numbering_patterns"), ";"),
		LabelSets:         labelSets,
		FigurePattern:     v.GetString("layout.figure_pattern"),
		Confusables:       confusables,
	}

	cfg.Resolver = ResolverConfig{
		MaxAttempts:     v.GetInt("resolver.max_attempts"),
		Concurrency:     v.GetInt("resolver.concurrency"),
		PerCallTimeout:  v.GetDuration("resolver.per_call_timeout"),
		DocumentTimeout: v.GetDuration("resolver.document_timeout"),
		BaseDelay:       v.GetDuration("resolver.base_delay"),
		MaxDelay:        v.GetDuration("resolver.max_delay"),
	}

	cfg.Backend = BackendConfig{
		Primary:    providerConfig(v, "backend.primary"),
		Secondary:  providerConfig(v, "backend.secondary"),
		Tertiary:   providerConfig(v, "backend.tertiary"),
		RatePerSec: v.GetFloat64("backend.rate_per_sec"),
		Burst:      v.GetInt("backend.burst"),
	}

	return cfg, nil
}

// DefaultLayout returns the layout settings used when no configuration is loaded.
func DefaultLayout() LayoutConfig {
	labelSets, _ := ParseLabelSets(defaultLabelSets)
	confusables, _ := ParseConfusables(defaultConfusables)
	return LayoutConfig{
		ColumnGapRatio:    0.03,
		MinGapHeightRatio: 0.8,
		MaxColumns:        3,
		LineTolerance:     0.5,
		MaxNumberSkip:     2,
		NumberingPatterns: splitList(defaultNumberingPatterns, ";"),
		LabelSets:         labelSets,
		FigurePattern:     defaultFigurePattern,
		Confusables:       confusables,
	}
}

func providerConfig(v *viper.Viper, prefix string) BackendProviderConfig {
	return BackendProviderConfig{
		Provider:    v.GetString(prefix + ".provider"),
		APIKey:      v.GetString(prefix + ".api_key"),
		Model:       v.GetString(prefix + ".model"),
		BaseURL:     v.GetString(prefix + ".base_url"),
		TimeoutSecs: v.GetInt(prefix + ".timeout_secs"),
		MaxTokens:   v.GetInt(prefix + ".max_tokens"),
	}
}

// ParseLabelSets parses "name=g1 g2 g3|v1 v2 v3" entries separated by ';'.
// The values list may be omitted, in which case the glyphs double as values.
func ParseLabelSets(s string) ([]LabelSetConfig, error) {
	var sets []LabelSetConfig
	for _, entry := range splitList(s, ";") {
		name, body, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("label set %q: missing '='", entry)
		}
		glyphPart, valuePart, hasValues := strings.Cut(body, "|")
		glyphs := strings.Fields(glyphPart)
		values := glyphs
		if hasValues {
			values = strings.Fields(valuePart)
		}
		if len(glyphs) == 0 {
			return nil, fmt.Errorf("label set %q: no glyphs", name)
		}
		if len(values) != len(glyphs) {
			return nil, fmt.Errorf("label set %q: %d glyphs but %d values", name, len(glyphs), len(values))
		}
		sets = append(sets, LabelSetConfig{
			Name:   strings.TrimSpace(name),
			Glyphs: glyphs,
			Values: values,
		})
	}
	return sets, nil
}

// ParseConfusables parses "from=to" rune pairs separated by ','.
func ParseConfusables(s string) (map[rune]rune, error) {
	out := make(map[rune]rune)
	for _, pair := range splitList(s, ",") {
		from, to, ok := strings.Cut(pair, "=")
		fr, tr := []rune(from), []rune(to)
		if !ok || len(fr) != 1 || len(tr) != 1 {
			return nil, fmt.Errorf("confusable %q: want single rune pair like O=0", pair)
		}
		out[fr[0]] = tr[0]
	}
	return out, nil
}

func splitList(s, sep string) []string {
	var out []string
	for _, item := range strings.Split(s, sep) {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
