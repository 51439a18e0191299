package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultPath is where Load looks for the JSON configuration file.
var DefaultPath = filepath.Join("config", "config.json")

// AccountConfig is one entry of the credential table. Secrets are stored as bcrypt hashes only.
type AccountConfig struct {
	Username     string
	PasswordHash string
	Role         string
}

// AppConfig holds environment driven configuration values.
// Credentials have no defaults inside code and must come from the config file or the environment.
type AppConfig struct {
	AppPort        string
	AllowedOrigins []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Storage
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis for list caching
	RedisHost       string
	RedisPort       int
	RedisDB         int
	RedisPassword   string
	CacheEnabled    bool
	CacheTTLSeconds int
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Attachments
	UploadDir      string
	MaxUploadMB    int
	ThumbnailWidth int
	// Boards
	BoardsFile       string
	SeedOnStart      bool
	MirrorRepairCron string
	// Credential table
	Accounts []AccountConfig
}

var cfg AppConfig
var loaded bool

// Load loads the configuration from DefaultPath. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}
	return LoadFrom(DefaultPath)
}

// LoadFrom loads the configuration from the given JSON file and caches it for Get.
func LoadFrom(path string) AppConfig {
	var c AppConfig

	// Precedence: JSON file -> defaults -> .env -> environment variable overrides
	if err := loadJSONConfig(path, &c); err != nil {
		log.Printf("ignoring invalid config file %s: %v", path, err)
	}
	applyDefaults(&c)
	_ = godotenv.Load()
	applyEnvOverrides(&c)

	if len(c.Accounts) == 0 {
		log.Println("no accounts configured; every mutating endpoint will answer 401")
	}

	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads grouped sections from a JSON file. A missing file is not an error.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if s, ok := m[key].(string); ok {
			return s
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key].(float64); ok {
			return int(v)
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		b, _ := m[key].(bool)
		return b
	}
	getStringSlice := func(m map[string]any, key string) []string {
		arr, ok := m[key].([]any)
		if !ok {
			return nil
		}
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
		out.BoardsFile = getString(app, "BoardsFile")
		out.SeedOnStart = getBool(app, "SeedOnStart")
		out.MirrorRepairCron = getString(app, "MirrorRepairCron")
	}

	if g, ok := raw["gin"].(map[string]any); ok {
		out.GinMode = getString(g, "Mode")
		out.GinPath = getString(g, "LogPath")
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DBDriver = getString(dbs, "Driver")
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		out.RedisPort = getInt(rds, "RedisPort")
		out.RedisDB = getInt(rds, "RedisDB")
		out.RedisPassword = getString(rds, "RedisPassword")
		out.CacheEnabled = getBool(rds, "CacheEnabled")
		out.CacheTTLSeconds = getInt(rds, "CacheTTLSeconds")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	}

	if up, ok := raw["uploads"].(map[string]any); ok {
		out.UploadDir = getString(up, "Dir")
		out.MaxUploadMB = getInt(up, "MaxSizeMB")
		out.ThumbnailWidth = getInt(up, "ThumbnailWidth")
	}

	if accs, ok := raw["accounts"].([]any); ok {
		for _, it := range accs {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			out.Accounts = append(out.Accounts, AccountConfig{
				Username:     getString(m, "Username"),
				PasswordHash: getString(m, "PasswordHash"),
				Role:         getString(m, "Role"),
			})
		}
	}

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8000"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "board"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.CacheTTLSeconds == 0 {
		c.CacheTTLSeconds = 60
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join("static", "uploads")
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 50
	}
	if c.ThumbnailWidth == 0 {
		c.ThumbnailWidth = 480
	}
	if c.BoardsFile == "" {
		c.BoardsFile = filepath.Join("config", "boards.yaml")
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("DB_DRIVER", ""); v != "" {
		c.DBDriver = v
	}
	// MONGODB_URI was the variable of the first deployment; keep honouring it as a DSN.
	if v := getEnv("DATABASE_URI", getEnv("MONGODB_URI", "")); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("CACHE_ENABLED", ""); v != "" {
		c.CacheEnabled = v == "true"
	}
	if v := getEnv("CACHE_TTL_SECONDS", ""); v != "" {
		c.CacheTTLSeconds = mustParseInt(v)
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	if v := getEnv("UPLOAD_DIR", ""); v != "" {
		c.UploadDir = v
	}
	if v := getEnv("MAX_UPLOAD_MB", ""); v != "" {
		c.MaxUploadMB = mustParseInt(v)
	}
	if v := getEnv("THUMBNAIL_WIDTH", ""); v != "" {
		c.ThumbnailWidth = mustParseInt(v)
	}
	if v := getEnv("BOARDS_FILE", ""); v != "" {
		c.BoardsFile = v
	}
	if v := getEnv("SEED_ON_START", ""); v != "" {
		c.SeedOnStart = v == "true"
	}
	if v := getEnv("MIRROR_REPAIR_CRON", ""); v != "" {
		c.MirrorRepairCron = v
	}
	if v := getEnv("ACCOUNTS", ""); v != "" {
		c.Accounts = parseAccounts(v)
	}
}

// parseAccounts reads "username:role:bcrypthash" entries separated by commas.
func parseAccounts(raw string) []AccountConfig {
	var out []AccountConfig
	for _, item := range splitAndTrim(raw) {
		parts := strings.SplitN(item, ":", 3)
		if len(parts) != 3 {
			log.Printf("ignoring malformed ACCOUNTS entry %q", item)
			continue
		}
		out = append(out, AccountConfig{Username: parts[0], Role: parts[1], PasswordHash: parts[2]})
	}
	return out
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
