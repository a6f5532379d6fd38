package config

import "github.com/spf13/viper"

// setDefaults sets all default values
func setDefaults(v *viper.Viper) {
	// 1. Server defaults
	v.SetDefault("server.bind", "127.0.0.1")
	v.SetDefault("server.port", 5005)
	v.SetDefault("server.admin", []string{"127.0.0.1", "::1"})
	v.SetDefault("server.timeout", "30s")
	v.SetDefault("server.requests_per_second", 20.0)
	v.SetDefault("server.burst", 40)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.websocket", true)

	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.bind", "127.0.0.1")
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.max_recv_msg_size", 4*1024*1024)
	v.SetDefault("grpc.max_send_msg_size", 4*1024*1024)
	v.SetDefault("grpc.check_interval", "10s")

	// 2. Storage defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "/var/lib/presaled/presale.db")
	v.SetDefault("database.busy_timeout", "5s")
	v.SetDefault("eligibility.backend", "pebble")
	v.SetDefault("eligibility.path", "/var/lib/presaled/kyc")

	// 3. Sale defaults
	v.SetDefault("authority", "")
	v.SetDefault("sale.token", "")
	v.SetDefault("sale.referral_bonus_bps", 500)
	v.SetDefault("sale.round_cache_size", 128)

	v.SetDefault("oracle.default", "static:3000")
	v.SetDefault("oracle.max_age", "1h")
	v.SetDefault("oracle.timeout", "5s")
	v.SetDefault("oracle.cache_size", 64)

	// ten purchases a day, 30s apart, $500 a day
	v.SetDefault("rate_limit.min_time_between_tx", "30s")
	v.SetDefault("rate_limit.max_tx_per_period", 10)
	v.SetDefault("rate_limit.period", "24h")
	v.SetDefault("rate_limit.max_daily_spend_usd", "500")

	// 4. Lock defaults
	v.SetDefault("lock.backend", "local")
	v.SetDefault("lock.redis_addr", "")
	v.SetDefault("lock.ttl", "30s")
	v.SetDefault("lock.retry", "50ms")

	// 5. Diagnostics defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// GetDefaultDriverConfig returns driver specific database defaults
func GetDefaultDriverConfig(driver interface{}) map[string]interface{} {
	defaults := make(map[string]interface{})

	switch driver {
	case "postgres", "postgresql":
		defaults["database.host"] = "localhost"
		defaults["database.port"] = 5432
		defaults["database.name"] = "presale"
		defaults["database.user"] = "presale"
		defaults["database.ssl_mode"] = "prefer"
		defaults["database.max_open_conns"] = 25
		defaults["database.max_idle_conns"] = 5
		defaults["database.conn_max_lifetime"] = "1h"
	}

	return defaults
}

// ApplyDriverDefaults applies driver specific defaults to the viper instance
func ApplyDriverDefaults(v *viper.Viper, driver interface{}) {
	for key, value := range GetDefaultDriverConfig(driver) {
		v.SetDefault(key, value)
	}
}
