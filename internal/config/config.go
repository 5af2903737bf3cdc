package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Notification NotificationConfig
	Engine       EngineConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom      string
	WebhookURL     string
	TimeoutSeconds int
}

// Timeout returns the per-call collaborator timeout.
func (n NotificationConfig) Timeout() time.Duration {
	if n.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// EngineConfig gathers every threshold and weight used by the assignment
// and escalation engine in one place, so the two scoring policies and the
// sweep thresholds stay explicit instead of being scattered as magic
// numbers across services.
type EngineConfig struct {
	Classifier ClassifierConfig
	Assignment AssignmentConfig
	Escalation EscalationConfig
	Workflow   WorkflowConfig
	Balancer   BalancerConfig
	Sweep      SweepConfig
}

// ClassifierConfig controls priority classification thresholds.
type ClassifierConfig struct {
	// ConfidenceFloor gates automated priority upgrades (strictly greater).
	ConfidenceFloor float64
	// AutoEscalationConfidence gates the urgent-detection escalation flag.
	AutoEscalationConfidence float64
	// SafetyEscalationScore triggers auto escalation from the safety
	// context component alone.
	SafetyEscalationScore float64
}

// AssignmentConfig controls staff-matching scores and thresholds.
type AssignmentConfig struct {
	MaxWorkload              int
	InDepartmentThreshold    float64
	CrossDepartmentThreshold float64
}

// EscalationConfig controls the time-threshold sweep.
type EscalationConfig struct {
	UrgentHours        int
	HighHours          int
	MediumHours        int
	LowHours           int
	OverdueUrgentHours int
	OverdueHighHours   int
	OverdueMediumHours int
	OverdueLowHours    int
	// UnassignedHighHours triggers escalation of high-priority concerns
	// that stayed unassigned past this age.
	UnassignedHighHours int
	// ReassignMaxActive caps the active count of same-department
	// reassignment targets.
	ReassignMaxActive int
	// OverdueMaxActive caps the active count of cross-department rescue
	// targets for overdue concerns.
	OverdueMaxActive int
}

// WorkflowConfig controls orchestrator gates and delays.
type WorkflowConfig struct {
	AutoApprovalConfidence float64
	AutoCloseDays          int
	BusinessStartHour      int
	BusinessEndHour        int
	MediumDelayMinutes     int
	LowDelayMinutes        int
}

// BalancerConfig controls department utilization analysis.
type BalancerConfig struct {
	OverloadUtilization float64
	RebalanceThreshold  float64
	MaxMovesPerSweep    int
	SnapshotTTLSeconds  int
}

// SnapshotTTL returns the utilization cache TTL.
func (b BalancerConfig) SnapshotTTL() time.Duration {
	if b.SnapshotTTLSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(b.SnapshotTTLSeconds) * time.Second
}

// SweepConfig controls the periodic worker.
type SweepConfig struct {
	IntervalSeconds int
}

// Interval returns the sweep period.
func (s SweepConfig) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "concern-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Notification: NotificationConfig{
			EmailFrom:      getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			TimeoutSeconds: getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 5),
		},
		Engine: DefaultEngineConfig(),
	}

	cfg.Engine.Sweep.IntervalSeconds = getEnvAsInt("ENGINE_SWEEP_INTERVAL_SECONDS", cfg.Engine.Sweep.IntervalSeconds)
	cfg.Engine.Balancer.SnapshotTTLSeconds = getEnvAsInt("ENGINE_UTILIZATION_TTL_SECONDS", cfg.Engine.Balancer.SnapshotTTLSeconds)
	cfg.Engine.Assignment.MaxWorkload = getEnvAsInt("ENGINE_MAX_WORKLOAD", cfg.Engine.Assignment.MaxWorkload)

	return cfg, nil
}

// DefaultEngineConfig returns the standard thresholds and weights.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Classifier: ClassifierConfig{
			ConfidenceFloor:          0.6,
			AutoEscalationConfidence: 0.7,
			SafetyEscalationScore:    0.3,
		},
		Assignment: AssignmentConfig{
			MaxWorkload:              5,
			InDepartmentThreshold:    0.5,
			CrossDepartmentThreshold: 0.4,
		},
		Escalation: EscalationConfig{
			UrgentHours:         2,
			HighHours:           8,
			MediumHours:         24,
			LowHours:            48,
			OverdueUrgentHours:  4,
			OverdueHighHours:    12,
			OverdueMediumHours:  48,
			OverdueLowHours:     72,
			UnassignedHighHours: 4,
			ReassignMaxActive:   3,
			OverdueMaxActive:    2,
		},
		Workflow: WorkflowConfig{
			AutoApprovalConfidence: 0.8,
			AutoCloseDays:          7,
			BusinessStartHour:      8,
			BusinessEndHour:        17,
			MediumDelayMinutes:     30,
			LowDelayMinutes:        60,
		},
		Balancer: BalancerConfig{
			OverloadUtilization: 0.8,
			RebalanceThreshold:  0.5,
			MaxMovesPerSweep:    3,
			SnapshotTTLSeconds:  60,
		},
		Sweep: SweepConfig{
			IntervalSeconds: 300,
		},
	}
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
