package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Monthly recurrence step modes.
const (
	MonthlyStepCalendar = "calendar"
	MonthlyStepFixed30  = "fixed30"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Engine     EngineConfig
	Evaluation EvaluationConfig
	Jobs       JobsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SequencingDelays holds the minimum inter-session-type gaps in days.
type SequencingDelays struct {
	CMToTD  int
	CMToTP  int
	TDToTP  int
	CMToTPE int
}

// PlacementWeights tunes the generator's composite placement score.
type PlacementWeights struct {
	Pedagogical  float64
	Coverage     float64
	Distribution float64
}

// EngineConfig carries the deployment-level tunables of the generation engine.
type EngineConfig struct {
	Delays                   SequencingDelays
	Weights                  PlacementWeights
	AllowSaturday            bool
	MonthlyStep              string // calendar | fixed30
	TransitionBuffer         time.Duration
	WeeklyLoadToleranceHours float64
	HourTolerancePct         float64
	GenerationTimeout        time.Duration
	LockTTL                  time.Duration
	MaxSessionsPerDay        int
}

// EvaluationConfig tunes the evaluator weights and report caching.
type EvaluationConfig struct {
	WeightPedagogical            float64
	WeightInstructorSatisfaction float64
	WeightRoomUtilisation        float64
	WeightStudentLoadBalance     float64
	WeightInstructorLoadBalance  float64
	CacheTTL                     time.Duration
}

// JobsConfig tunes the asynchronous generation queue.
type JobsConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	monthlyStep := v.GetString("ENGINE_MONTHLY_STEP")
	if monthlyStep != MonthlyStepCalendar && monthlyStep != MonthlyStepFixed30 {
		monthlyStep = MonthlyStepCalendar
	}

	cfg.Engine = EngineConfig{
		Delays: SequencingDelays{
			CMToTD:  v.GetInt("ENGINE_MIN_CM_TD_DAYS"),
			CMToTP:  v.GetInt("ENGINE_MIN_CM_TP_DAYS"),
			TDToTP:  v.GetInt("ENGINE_MIN_TD_TP_DAYS"),
			CMToTPE: v.GetInt("ENGINE_MIN_CM_TPE_DAYS"),
		},
		Weights: PlacementWeights{
			Pedagogical:  v.GetFloat64("ENGINE_WEIGHT_PEDAGOGICAL"),
			Coverage:     v.GetFloat64("ENGINE_WEIGHT_COVERAGE"),
			Distribution: v.GetFloat64("ENGINE_WEIGHT_DISTRIBUTION"),
		},
		AllowSaturday:            v.GetBool("ENGINE_ALLOW_SATURDAY"),
		MonthlyStep:              monthlyStep,
		TransitionBuffer:         parseDuration(v.GetString("ENGINE_TRANSITION_BUFFER"), 5*time.Minute),
		WeeklyLoadToleranceHours: v.GetFloat64("ENGINE_WEEKLY_LOAD_TOLERANCE_HOURS"),
		HourTolerancePct:         v.GetFloat64("ENGINE_HOUR_TOLERANCE_PCT"),
		GenerationTimeout:        parseDuration(v.GetString("ENGINE_GENERATION_TIMEOUT"), 60*time.Second),
		LockTTL:                  parseDuration(v.GetString("ENGINE_LOCK_TTL"), 5*time.Minute),
		MaxSessionsPerDay:        v.GetInt("ENGINE_MAX_SESSIONS_PER_DAY"),
	}

	cfg.Evaluation = EvaluationConfig{
		WeightPedagogical:            v.GetFloat64("EVAL_WEIGHT_PEDAGOGICAL"),
		WeightInstructorSatisfaction: v.GetFloat64("EVAL_WEIGHT_INSTRUCTOR_SATISFACTION"),
		WeightRoomUtilisation:        v.GetFloat64("EVAL_WEIGHT_ROOM_UTILISATION"),
		WeightStudentLoadBalance:     v.GetFloat64("EVAL_WEIGHT_STUDENT_LOAD_BALANCE"),
		WeightInstructorLoadBalance:  v.GetFloat64("EVAL_WEIGHT_INSTRUCTOR_LOAD_BALANCE"),
		CacheTTL:                     parseDuration(v.GetString("EVAL_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		BufferSize: v.GetInt("JOBS_BUFFER_SIZE"),
		MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "oapet_schedule")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENGINE_MIN_CM_TD_DAYS", 1)
	v.SetDefault("ENGINE_MIN_CM_TP_DAYS", 2)
	v.SetDefault("ENGINE_MIN_TD_TP_DAYS", 1)
	v.SetDefault("ENGINE_MIN_CM_TPE_DAYS", 3)
	v.SetDefault("ENGINE_WEIGHT_PEDAGOGICAL", 1.0)
	v.SetDefault("ENGINE_WEIGHT_COVERAGE", 0.3)
	v.SetDefault("ENGINE_WEIGHT_DISTRIBUTION", 0.5)
	v.SetDefault("ENGINE_ALLOW_SATURDAY", false)
	v.SetDefault("ENGINE_MONTHLY_STEP", MonthlyStepCalendar)
	v.SetDefault("ENGINE_TRANSITION_BUFFER", "5m")
	v.SetDefault("ENGINE_WEEKLY_LOAD_TOLERANCE_HOURS", 0.0)
	v.SetDefault("ENGINE_HOUR_TOLERANCE_PCT", 0.10)
	v.SetDefault("ENGINE_GENERATION_TIMEOUT", "60s")
	v.SetDefault("ENGINE_LOCK_TTL", "5m")
	v.SetDefault("ENGINE_MAX_SESSIONS_PER_DAY", 8)

	v.SetDefault("EVAL_WEIGHT_PEDAGOGICAL", 100.0)
	v.SetDefault("EVAL_WEIGHT_INSTRUCTOR_SATISFACTION", 50.0)
	v.SetDefault("EVAL_WEIGHT_ROOM_UTILISATION", 30.0)
	v.SetDefault("EVAL_WEIGHT_STUDENT_LOAD_BALANCE", 40.0)
	v.SetDefault("EVAL_WEIGHT_INSTRUCTOR_LOAD_BALANCE", 45.0)
	v.SetDefault("EVAL_CACHE_TTL", "10m")

	v.SetDefault("JOBS_WORKERS", 1)
	v.SetDefault("JOBS_BUFFER_SIZE", 8)
	v.SetDefault("JOBS_MAX_RETRIES", 1)
	v.SetDefault("JOBS_RETRY_DELAY", "1s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
