package shared

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	StoreDriver string // mongo | mysql | sqlite
	MongoURI    string
	MongoDB     string
	MySQLDSN    string
	SQLitePath  string

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	DataRoot string
	Locales  []string
	Workers  int

	AdminAuth       bool
	AdminRate       int
	CORSOrigins     []string
	RefreshInterval time.Duration
}

// Load reads configuration from the environment and an optional
// config.yaml. Keys map to env vars by upper-casing and replacing dots,
// so "mysql.dsn" is MYSQL_DSN.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "prod")
	v.SetDefault("log.level", "info")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("store.driver", "mongo")
	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.db", "realty")
	v.SetDefault("mysql.dsn", "root:root@tcp(localhost:3306)/realty?parseTime=true&charset=utf8mb4&loc=UTC")
	v.SetDefault("sqlite.path", "realty.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("data.root", "data")
	v.SetDefault("content.locales", "en,es,fr,de,ar,zh")
	v.SetDefault("mirror.workers", 4)
	v.SetDefault("admin.auth", true)
	v.SetDefault("admin.rate_per_minute", 120)
	v.SetDefault("cors.origins", "*")
	v.SetDefault("mirror.refresh_interval_seconds", 30)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, eris.Wrap(err, "config: read file")
		}
	}

	c := Config{
		AppEnv:          v.GetString("app.env"),
		LogLevel:        v.GetString("log.level"),
		HTTPAddr:        v.GetString("http.addr"),
		MetricsAddr:     v.GetString("metrics.addr"),
		StoreDriver:     strings.ToLower(v.GetString("store.driver")),
		MongoURI:        v.GetString("mongodb.uri"),
		MongoDB:         v.GetString("mongodb.db"),
		MySQLDSN:        v.GetString("mysql.dsn"),
		SQLitePath:      v.GetString("sqlite.path"),
		RedisAddr:       v.GetString("redis.addr"),
		RedisDB:         v.GetInt("redis.db"),
		RedisPass:       v.GetString("redis.password"),
		CacheTTL:        time.Duration(v.GetInt("cache.ttl_seconds")) * time.Second,
		DataRoot:        v.GetString("data.root"),
		Locales:         splitList(v.GetString("content.locales")),
		Workers:         v.GetInt("mirror.workers"),
		AdminAuth:       v.GetBool("admin.auth"),
		AdminRate:       v.GetInt("admin.rate_per_minute"),
		CORSOrigins:     splitList(v.GetString("cors.origins")),
		RefreshInterval: time.Duration(v.GetInt("mirror.refresh_interval_seconds")) * time.Second,
	}
	switch c.StoreDriver {
	case "mongo", "mysql", "sqlite":
	default:
		return Config{}, eris.Errorf("config: unknown store driver %q", c.StoreDriver)
	}
	if !c.AdminAuth {
		log.Warn().Msg("ADMIN_AUTH is disabled; admin API is unauthenticated")
	}
	return c, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
