package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	GroupID string
}

type Config struct {
	Addr     string
	LogLevel string

	// Map provider (script credential + geocoding endpoint).
	MapAPIKey      string
	GeocodeBaseURL string

	// Initial viewport for every new surface.
	CenterLat float64
	CenterLng float64
	Zoom      int

	// Boundary dataset: URL or file path of the region GeoJSON, and the
	// feature property carrying the region name.
	BoundarySource string
	RegionNameProp string

	ContentAPIURL string

	RedisAddr       string
	CacheOpTimeout  time.Duration
	GeocodeCacheRes int
	GeocodeCacheTTL time.Duration
	GeocodeLRUSize  int
	ContentCacheTTL time.Duration

	TrendingHalfLife time.Duration

	MaxSessions int

	Invalidation InvalidationCfg
}

func FromEnv() Config {
	res := getint("GEOCODE_CACHE_RES", 9)
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}

	return Config{
		Addr:     getenv("ADDR", ":8070"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		MapAPIKey:      getenv("MAP_API_KEY", ""),
		GeocodeBaseURL: getenv("GEOCODE_BASE_URL", "https://dapi.kakao.com"),

		CenterLat: getfloat("MAP_CENTER_LAT", 35.1795543),
		CenterLng: getfloat("MAP_CENTER_LNG", 129.0756416),
		Zoom:      getint("MAP_ZOOM", 11),

		BoundarySource: getenv("BOUNDARY_SOURCE", "korea.geojson"),
		RegionNameProp: getenv("REGION_NAME_PROP", "sggnm"),

		ContentAPIURL: getenv("CONTENT_API_URL", "http://127.0.0.1:8000"),

		RedisAddr:       getenv("REDIS_ADDR", ""),
		CacheOpTimeout:  getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		GeocodeCacheRes: res,
		GeocodeCacheTTL: getduration("GEOCODE_CACHE_TTL", time.Hour),
		GeocodeLRUSize:  getint("GEOCODE_LRU_SIZE", 4096),
		ContentCacheTTL: getduration("CONTENT_CACHE_TTL", time.Minute),

		TrendingHalfLife: getduration("TRENDING_HALF_LIFE", 30*time.Minute),

		MaxSessions: getint("MAX_SESSIONS", 256),

		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "content-changes"),
			GroupID: getenv("KAFKA_GROUP_ID", "map-explorer"),
		},
	}
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

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
