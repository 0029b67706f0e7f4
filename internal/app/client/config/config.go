package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"recipesync/internal/domain/backup"
	"recipesync/internal/domain/device"
	"recipesync/internal/domain/oplog"
	syncdomain "recipesync/internal/domain/sync"
	"recipesync/internal/infrastructure/vault"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultListen        = "127.0.0.1:7420"
	defaultLogLevel      = "info"
	defaultEnv           = "local"
	defaultConfigDir     = ".recipesync"

	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env             string
	LogLevel        string
	ServerAddress   string
	EnableTLS       bool
	RequestTimeout  time.Duration
	Listen          string
	ShutdownTimeout time.Duration

	ConfigDir    string
	TokenPath    string
	DBPath       string
	DeviceIDPath string
	// KeyPath файл с age-ключом для шифрования резервных копий
	KeyPath string

	Device device.TouchRequest
	Sync   syncdomain.Config
	Oplog  oplog.Config
	Backup Backup
	Vault  vault.Config
}

type Backup struct {
	Encrypt       bool
	AutomaticTTL  time.Duration
	URLTTL        time.Duration
	SweepInterval time.Duration
}

// MustLoad загружает конфигурацию агента и завершает процесс при ошибке
func MustLoad(cfgFile string) *Config {
	cfg, err := Load(cfgFile)
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

// Load читает .env, затем необязательный YAML-файл, затем переменные окружения
func Load(cfgFile string) (*Config, error) {
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Fprintf(os.Stderr, "Ошибка загрузки .env файла: %v\n", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, defaultConfigDir))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	configDir := v.GetString("config_dir")
	if configDir == defaultConfigDir {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}
		configDir = filepath.Join(homeDir, configDir)
	}
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	inDir := func(key string) string {
		p := v.GetString(key)
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(configDir, p)
	}

	hostname, _ := os.Hostname()
	deviceName := v.GetString("device_name")
	if deviceName == "" {
		deviceName = hostname
	}

	cfg := &Config{
		Env:             v.GetString("app_env"),
		LogLevel:        v.GetString("log_level"),
		ServerAddress:   v.GetString("server_address"),
		EnableTLS:       v.GetBool("enable_tls"),
		RequestTimeout:  v.GetDuration("request_timeout"),
		Listen:          v.GetString("agent_listen"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),

		ConfigDir:    configDir,
		TokenPath:    inDir("token_path"),
		DBPath:       inDir("db_path"),
		DeviceIDPath: inDir("device_id_path"),
		KeyPath:      inDir("backup_key_path"),

		Device: device.TouchRequest{
			Name:     deviceName,
			Type:     v.GetString("device_type"),
			Platform: v.GetString("device_platform"),
			Version:  v.GetString("app_version"),
		},
		Sync: syncdomain.Config{
			BatchSize:        v.GetInt("sync_batch_size"),
			PullLimit:        v.GetInt("sync_pull_limit"),
			BreakerThreshold: v.GetUint32("sync_breaker_threshold"),
			ServerBackoff:    v.GetDuration("sync_server_backoff"),
		},
		Oplog: oplog.Config{
			MaxRetryCount:   v.GetInt("oplog_max_retries"),
			BaseDelay:       v.GetDuration("oplog_base_delay"),
			MaxDelay:        v.GetDuration("oplog_max_delay"),
			RetainCompleted: v.GetInt("oplog_retain_completed"),
		},
		Backup: Backup{
			Encrypt:       v.GetBool("backup_encrypt"),
			AutomaticTTL:  v.GetDuration("backup_automatic_ttl"),
			URLTTL:        v.GetDuration("backup_url_ttl"),
			SweepInterval: v.GetDuration("backup_sweep_interval"),
		},
		Vault: vault.Config{
			Kind: v.GetString("vault_kind"),
			Dir:  inDir("vault_dir"),
			S3: vault.S3Config{
				Bucket:          v.GetString("s3_bucket"),
				Region:          v.GetString("s3_region"),
				Endpoint:        v.GetString("s3_endpoint"),
				AccessKeyID:     v.GetString("s3_access_key_id"),
				SecretAccessKey: v.GetString("s3_secret_access_key"),
				Prefix:          v.GetString("s3_prefix"),
				UsePathStyle:    v.GetBool("s3_use_path_style"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	syncDef := syncdomain.DefaultConfig()
	opDef := oplog.DefaultConfig()
	backupDef := backup.DefaultConfig()

	v.SetDefault("app_env", defaultEnv)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("server_address", defaultServerAddress)
	v.SetDefault("enable_tls", false)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("agent_listen", defaultListen)
	v.SetDefault("shutdown_timeout", 10*time.Second)

	v.SetDefault("config_dir", defaultConfigDir)
	v.SetDefault("token_path", "token")
	v.SetDefault("db_path", "agent.db")
	v.SetDefault("device_id_path", "device_id")
	v.SetDefault("backup_key_path", "backup.key")

	v.SetDefault("device_type", "desktop")
	v.SetDefault("device_platform", runtime.GOOS)
	v.SetDefault("app_version", "1.0.0")

	v.SetDefault("sync_batch_size", syncDef.BatchSize)
	v.SetDefault("sync_pull_limit", syncDef.PullLimit)
	v.SetDefault("sync_breaker_threshold", syncDef.BreakerThreshold)
	v.SetDefault("sync_server_backoff", syncDef.ServerBackoff)

	v.SetDefault("oplog_max_retries", opDef.MaxRetryCount)
	v.SetDefault("oplog_base_delay", opDef.BaseDelay)
	v.SetDefault("oplog_max_delay", opDef.MaxDelay)
	v.SetDefault("oplog_retain_completed", opDef.RetainCompleted)

	v.SetDefault("backup_encrypt", true)
	v.SetDefault("backup_automatic_ttl", backupDef.AutomaticTTL)
	v.SetDefault("backup_url_ttl", backupDef.URLTTL)
	v.SetDefault("backup_sweep_interval", backupDef.SweepInterval)

	v.SetDefault("vault_kind", vault.KindFile)
	v.SetDefault("vault_dir", "backups")
	v.SetDefault("s3_use_path_style", false)
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.Listen == "" {
		return fmt.Errorf("agent_listen не может быть пустым")
	}
	switch c.Vault.Kind {
	case vault.KindFile, vault.KindMemory:
	case vault.KindS3:
		if c.Vault.S3.Bucket == "" {
			return fmt.Errorf("s3_bucket обязателен для vault_kind=s3")
		}
	default:
		return fmt.Errorf("неизвестный vault_kind %q", c.Vault.Kind)
	}
	return nil
}

// ServerURL базовый адрес сервера аккаунта
func (c *Config) ServerURL() string {
	scheme := "http://"
	if c.EnableTLS {
		scheme = "https://"
	}
	return scheme + c.ServerAddress
}

// AgentURL адрес локального API агента для командной строки
func (c *Config) AgentURL() string {
	addr := c.Listen
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

func (c *Config) IsProd() bool {
	return c.Env == EnvProd
}

func (c *Config) IsLocal() bool {
	return c.Env == EnvLocal || c.Env == ""
}
