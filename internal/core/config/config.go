package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type EventsCfg struct {
	Enabled bool
	Brokers []string
	// Topic receives a message per registered place group.
	Topic string
	// ChangesTopic carries geoDB collection change notices that trigger a reload.
	ChangesTopic string
	GroupID      string
}

// H3Disabled turns off H3 cell annotation. Resolutions 0 through 15 enable it.
const H3Disabled = -1

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	LogSampleN     int
	PlacesConfig   string
	BaseURL        string
	RedisAddr      string
	CacheSize      int
	CacheTTL       time.Duration
	HostPlacesURL  string
	ReloadInterval time.Duration
	GeoDBTimeout   time.Duration
	StopOnError    bool
	H3Res          int
	Events         EventsCfg
}

// FromEnv reads the service settings. A .env file in the working directory is
// loaded first; variables already present in the environment win.
func FromEnv() Config {
	_ = godotenv.Load()

	addr := getenv("ADDR", ":8090")
	h3res := getint("H3_RES", H3Disabled)
	if h3res < 0 || h3res > 15 {
		h3res = H3Disabled
	}
	brokers := splitList(getenv("KAFKA_BROKERS", ""))

	return Config{
		Addr:           addr,
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		LogSampleN:     getint("LOG_SAMPLE_N", 0),
		PlacesConfig:   getenv("PLACES_CONFIG", "places.yaml"),
		BaseURL:        getenv("PLACES_BASE_URL", defaultBaseURL(addr)),
		RedisAddr:      getenv("REDIS_ADDR", ""),
		CacheSize:      getint("CACHE_SIZE", 256),
		CacheTTL:       getduration("CACHE_TTL", time.Hour),
		HostPlacesURL:  getenv("HOST_PLACES_URL", ""),
		ReloadInterval: getduration("RELOAD_INTERVAL", 0),
		GeoDBTimeout:   getduration("GEODB_TIMEOUT", 30*time.Second),
		StopOnError:    getbool("STOP_ON_ERROR", false),
		H3Res:          h3res,
		Events: EventsCfg{
			Enabled:      len(brokers) > 0,
			Brokers:      brokers,
			Topic:        getenv("KAFKA_TOPIC", "places-registered"),
			ChangesTopic: getenv("KAFKA_CHANGES_TOPIC", ""),
			GroupID:      getenv("KAFKA_GROUP_ID", "geodb-places"),
		},
	}
}

func defaultBaseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://127.0.0.1" + addr
	}
	return "http://" + addr
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "a:9092, b:9092" into a trimmed list
func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
