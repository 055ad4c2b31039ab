package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	AI       AIConfig
	Admin    AdminConfig
	Planner  PlannerConfig
	Backfill BackfillConfig
	Kafka    KafkaConfig
	Export   ExportConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	JWTSecret          string
	JWTIssuer          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
}

type AIConfig struct {
	Provider           string
	APIKey             string
	BaseURL            string
	Model              string
	Region             string
	Timeout            time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
	MaxOutputTokens    int
	Temperature        float64
}

type AdminConfig struct {
	Emails []string
}

type PlannerConfig struct {
	TolerancePct       float64
	RepairRounds       int
	RepairTolerancePct float64
	MaxExistingTitles  int
	SkeletonMinDays    int
	DayConcurrency     int
	HorizonDays        int
	MaxHorizonDays     int
	GenerationLease    time.Duration
	GenerationTimeout  time.Duration
	RecentPlans        int
}

type BackfillConfig struct {
	BatchSize   int
	Concurrency int
	Delay       time.Duration
	PlanLimit   int
}

// KafkaConfig пустой список брокеров отключает публикацию событий.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
	Timeout  time.Duration
}

// ExportConfig пустой бакет отключает выгрузку в S3.
type ExportConfig struct {
	Bucket string
	Prefix string
	Region string
}

// Load загружает конфигурацию приложения из окружения и .env.
func Load() (Config, error) {
	cfg := Config{}

	if err := loadEnv(); err != nil {
		return cfg, err
	}

	cfg.Env = getEnv("APP_ENV", "local")

	serverPort, err := parseIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return cfg, err
	}

	readTimeout, err := parseDurationEnv("SERVER_READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return cfg, err
	}

	writeTimeout, err := parseDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return cfg, err
	}

	idleTimeout, err := parseDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return cfg, err
	}

	cfg.Server = ServerConfig{
		Host:         getEnv("SERVER_HOST", "0.0.0.0"),
		Port:         serverPort,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	dbPort, err := parseIntEnv("DB_PORT", 5432)
	if err != nil {
		return cfg, err
	}

	maxOpenConns, err := parseIntEnv("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return cfg, err
	}

	maxIdleConns, err := parseIntEnv("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return cfg, err
	}

	connMaxIdleTime, err := parseDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute)
	if err != nil {
		return cfg, err
	}

	connMaxLifetime, err := parseDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	if err != nil {
		return cfg, err
	}

	cfg.Database = DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            dbPort,
		User:            getEnv("DB_USER", "planner"),
		Password:        getEnv("DB_PASSWORD", "planner"),
		Name:            getEnv("DB_NAME", "meal_planner"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxIdleTime: connMaxIdleTime,
		ConnMaxLifetime: connMaxLifetime,
	}

	accessTTL, err := parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return cfg, err
	}

	refreshTTL, err := parseDurationEnv("JWT_REFRESH_TTL", 7*24*time.Hour)
	if err != nil {
		return cfg, err
	}

	rateLimitPerMinute, err := parseIntEnv("AUTH_RATE_LIMIT_PER_MINUTE", 60)
	if err != nil {
		return cfg, err
	}

	rateLimitBurst, err := parseIntEnv("AUTH_RATE_LIMIT_BURST", 10)
	if err != nil {
		return cfg, err
	}

	cfg.Auth = AuthConfig{
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTIssuer:          getEnv("JWT_ISSUER", "meal-planner"),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
		RateLimitPerMinute: rateLimitPerMinute,
		RateLimitBurst:     rateLimitBurst,
	}

	aiTimeout, err := parseDurationEnv("AI_TIMEOUT", 90*time.Second)
	if err != nil {
		return cfg, err
	}

	aiRateLimitPerMinute, err := parseIntEnv("AI_RATE_LIMIT_PER_MINUTE", 30)
	if err != nil {
		return cfg, err
	}

	aiRateLimitBurst, err := parseIntEnv("AI_RATE_LIMIT_BURST", 10)
	if err != nil {
		return cfg, err
	}

	aiMaxOutputTokens, err := parseIntEnv("AI_MAX_OUTPUT_TOKENS", 8192)
	if err != nil {
		return cfg, err
	}

	aiTemperature, err := parseFloatEnv("AI_TEMPERATURE", 0.2)
	if err != nil {
		return cfg, err
	}

	aiProvider := strings.ToLower(getEnv("AI_PROVIDER", "gemini"))
	defaultBaseURL, defaultModel := providerDefaults(aiProvider)

	aiAPIKey := getEnv("AI_API_KEY", "")
	if aiAPIKey == "" && (aiProvider == "gemini" || aiProvider == "genai") {
		aiAPIKey = getEnv("GEMINI_API_KEY", "")
	}

	cfg.AI = AIConfig{
		Provider:           aiProvider,
		APIKey:             aiAPIKey,
		BaseURL:            getEnv("AI_BASE_URL", defaultBaseURL),
		Model:              getEnv("AI_MODEL", defaultModel),
		Region:             getEnv("AWS_REGION", "us-east-1"),
		Timeout:            aiTimeout,
		RateLimitPerMinute: aiRateLimitPerMinute,
		RateLimitBurst:     aiRateLimitBurst,
		MaxOutputTokens:    aiMaxOutputTokens,
		Temperature:        aiTemperature,
	}

	cfg.Admin = AdminConfig{
		Emails: parseCSVEnv("ADMIN_EMAILS"),
	}

	if cfg.Planner, err = loadPlanner(); err != nil {
		return cfg, err
	}

	if cfg.Backfill, err = loadBackfill(); err != nil {
		return cfg, err
	}

	kafkaTimeout, err := parseDurationEnv("KAFKA_TIMEOUT", 10*time.Second)
	if err != nil {
		return cfg, err
	}

	cfg.Kafka = KafkaConfig{
		Brokers:  parseListEnv("KAFKA_BROKERS"),
		Topic:    getEnv("KAFKA_TOPIC", "meal-plan-events"),
		ClientID: getEnv("KAFKA_CLIENT_ID", "ai-meal-planner"),
		Timeout:  kafkaTimeout,
	}

	cfg.Export = ExportConfig{
		Bucket: getEnv("EXPORT_S3_BUCKET", ""),
		Prefix: getEnv("EXPORT_S3_PREFIX", "shopping-lists"),
		Region: getEnv("EXPORT_S3_REGION", cfg.AI.Region),
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func loadPlanner() (PlannerConfig, error) {
	var (
		cfg PlannerConfig
		err error
	)

	if cfg.TolerancePct, err = parseFloatEnv("PLANNER_TOLERANCE_PCT", 15); err != nil {
		return cfg, err
	}
	if cfg.RepairRounds, err = parseNonNegativeIntEnv("PLANNER_REPAIR_ROUNDS", 1); err != nil {
		return cfg, err
	}
	if cfg.RepairTolerancePct, err = parseFloatEnv("PLANNER_REPAIR_TOLERANCE_PCT", cfg.TolerancePct); err != nil {
		return cfg, err
	}
	if cfg.MaxExistingTitles, err = parseIntEnv("PLANNER_MAX_EXISTING_TITLES", 60); err != nil {
		return cfg, err
	}
	if cfg.SkeletonMinDays, err = parseNonNegativeIntEnv("PLANNER_SKELETON_MIN_DAYS", 5); err != nil {
		return cfg, err
	}
	if cfg.DayConcurrency, err = parseIntEnv("PLANNER_DAY_CONCURRENCY", 4); err != nil {
		return cfg, err
	}
	if cfg.HorizonDays, err = parseIntEnv("PLANNER_HORIZON_DAYS", 7); err != nil {
		return cfg, err
	}
	if cfg.MaxHorizonDays, err = parseIntEnv("PLANNER_MAX_HORIZON_DAYS", 14); err != nil {
		return cfg, err
	}
	if cfg.GenerationLease, err = parseDurationEnv("PLANNER_GENERATION_LEASE", 10*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.GenerationTimeout, err = parseDurationEnv("PLANNER_GENERATION_TIMEOUT", 5*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.RecentPlans, err = parseIntEnv("PLANNER_RECENT_PLANS", 3); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func loadBackfill() (BackfillConfig, error) {
	var (
		cfg BackfillConfig
		err error
	)

	if cfg.BatchSize, err = parseIntEnv("BACKFILL_BATCH_SIZE", 5); err != nil {
		return cfg, err
	}
	if cfg.Concurrency, err = parseIntEnv("BACKFILL_CONCURRENCY", 2); err != nil {
		return cfg, err
	}
	if cfg.Delay, err = parseDurationEnv("BACKFILL_DELAY", 2*time.Second); err != nil {
		return cfg, err
	}
	if cfg.PlanLimit, err = parseIntEnv("BACKFILL_PLAN_LIMIT", 20); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func providerDefaults(provider string) (baseURL, model string) {
	switch provider {
	case "gemini":
		return "https://generativelanguage.googleapis.com/v1beta", "gemini-1.5-flash"
	case "genai":
		return "", "gemini-1.5-flash"
	case "bedrock":
		return "", "anthropic.claude-3-haiku-20240307-v1:0"
	default:
		return "https://api.groq.com/openai/v1", "llama-3.1-8b-instant"
	}
}

// DSN возвращает строку подключения к базе данных.
func (c DatabaseConfig) DSN() string {
	user := url.UserPassword(c.User, c.Password)
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}

	query := url.Values{}
	query.Set("sslmode", c.SSLMode)
	return dsn.String() + "?" + query.Encode()
}

func (c Config) validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("SERVER_PORT must be greater than 0")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}

	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be greater than 0")
	}

	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("JWT_REFRESH_TTL must be greater than 0")
	}

	if c.Auth.RateLimitPerMinute <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT_PER_MINUTE must be greater than 0")
	}

	if c.Auth.RateLimitBurst <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT_BURST must be greater than 0")
	}

	if c.AI.RateLimitPerMinute <= 0 {
		return fmt.Errorf("AI_RATE_LIMIT_PER_MINUTE must be greater than 0")
	}

	if c.AI.RateLimitBurst <= 0 {
		return fmt.Errorf("AI_RATE_LIMIT_BURST must be greater than 0")
	}

	if c.AI.MaxOutputTokens <= 0 {
		return fmt.Errorf("AI_MAX_OUTPUT_TOKENS must be greater than 0")
	}

	switch c.AI.Provider {
	case "gemini", "groq", "genai":
		if c.AI.APIKey == "" {
			return fmt.Errorf("AI_API_KEY is required for provider %s", c.AI.Provider)
		}
	case "bedrock":
		if c.AI.Region == "" {
			return fmt.Errorf("AWS_REGION is required for provider bedrock")
		}
	default:
		return fmt.Errorf("AI_PROVIDER must be one of gemini, groq, genai, bedrock")
	}

	if c.Planner.MaxHorizonDays < c.Planner.HorizonDays {
		return fmt.Errorf("PLANNER_MAX_HORIZON_DAYS cannot be less than PLANNER_HORIZON_DAYS")
	}

	if c.Planner.GenerationTimeout > c.Planner.GenerationLease {
		return fmt.Errorf("PLANNER_GENERATION_TIMEOUT cannot exceed PLANNER_GENERATION_LEASE")
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseNonNegativeIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}

	if parsed < 0 {
		return 0, fmt.Errorf("%s cannot be negative", key)
	}

	return parsed, nil
}

func parseFloatEnv(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

// parseCSVEnv разбирает список email: без пустых элементов, в нижнем регистре.
func parseCSVEnv(key string) []string {
	values := parseListEnv(key)
	for i, value := range values {
		values[i] = strings.ToLower(value)
	}
	return values
}

// parseListEnv разбирает список через запятую без изменения регистра.
func parseListEnv(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func loadEnv() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}
