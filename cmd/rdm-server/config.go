package main

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rdm-project/rdm-server/internal/api/http"
	"github.com/rdm-project/rdm-server/internal/audit"
	"github.com/rdm-project/rdm-server/internal/auth"
	"github.com/rdm-project/rdm-server/internal/db"
	"github.com/rdm-project/rdm-server/internal/gateway"
	"github.com/rdm-project/rdm-server/internal/secrets"
	"github.com/spf13/viper"
)

type Config struct {
	Log      LogConfig
	Http     http.Config
	Database db.Config
	Auth     auth.JWTConfig
	Gateway  gateway.Config
	Secrets  secrets.Config
	Audit    audit.Config
}

var config Config

func InitConfig() {
	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/rdm-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("database.url", "DATABASE_URL")
	_ = viper.BindEnv("auth.secret", "JWT_SECRET")
	_ = viper.BindEnv("secrets.key", "SECRETS_KEY")

	viper.SetDefault("log.level", "INFO")
	viper.SetDefault("http.port", 8080)
	viper.SetDefault("database.schema", "app")
	viper.SetDefault("gateway.base_url", "http://localhost/guacamole")
	viper.SetDefault("gateway.service_account", "rdm-service")
	viper.SetDefault("gateway.sync_interval", "@every 10m")
	viper.SetDefault("audit.queue_size", 256)

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	if err := viper.Unmarshal(&config); err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)
}
