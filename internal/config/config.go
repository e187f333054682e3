package config

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Mail     MailConfig     `yaml:"mail"`
	Import   ImportConfig   `yaml:"import"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type ServerConfig struct {
	Port         int      `yaml:"port"`
	AllowOrigins []string `yaml:"allow_origins"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql, postgres or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"` // database name, or file path for sqlite
}

type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	TokenHours int    `yaml:"token_hours"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	ReplyTo  string `yaml:"reply_to"`
	Subject  string `yaml:"subject"`
}

// ImportConfig lists external contact ids that belong to administrative or
// system accounts and are never reconciled.
type ImportConfig struct {
	ExcludedContacts        []string `yaml:"excluded_contacts"`
	BalanceExcludedContacts []string `yaml:"balance_excluded_contacts"`
}

func Load(configFile string) *Config {
	c := &Config{
		Server:   ServerConfig{Port: 9871, AllowOrigins: []string{"*"}},
		Log:      LogConfig{Level: "info", Console: true, MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 30},
		Database: DatabaseConfig{Driver: "mysql", Host: "127.0.0.1", Port: 3306, Name: "club_treasury"},
		Auth:     AuthConfig{TokenHours: 7 * 24},
		Mail: MailConfig{
			Port:    587,
			From:    "tresorerie@club.example",
			ReplyTo: "tresorerie@club.example",
			Subject: "Outstanding balance reminder",
		},
	}

	paths := []string{"etc/config-dev.yaml", "/etc/club-treasury/config.yaml"}
	if configFile != "" {
		paths = []string{configFile}
	}
	for _, path := range paths {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, c); err != nil {
				slog.Warn("config file ignored, invalid yaml", "path", path, "err", err)
			}
			break
		}
	}

	envOverride(&c.Database.Driver, "DB_DRIVER")
	envOverride(&c.Database.Host, "DB_HOST")
	envOverride(&c.Database.User, "DB_USER")
	envOverride(&c.Database.Password, "DB_PASS")
	envOverride(&c.Database.Name, "DB_NAME")
	envOverride(&c.Auth.JWTSecret, "JWT_SECRET")
	envOverride(&c.Mail.Host, "SMTP_HOST")
	envOverride(&c.Mail.Username, "SMTP_USER")
	envOverride(&c.Mail.Password, "SMTP_PASS")
	envOverride(&c.Log.Level, "LOG_LEVEL")
	envOverride(&c.Log.File, "LOG_FILE")
	envOverrideInt(&c.Server.Port, "PORT")
	envOverrideInt(&c.Database.Port, "DB_PORT")
	envOverrideInt(&c.Mail.Port, "SMTP_PORT")
	envOverrideList(&c.Import.ExcludedContacts, "IMPORT_EXCLUDED_CONTACTS")

	return c
}

// LoadDotenv loads .env style files (".env" when none is given) into the
// process environment. A missing file is not an error.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func (c *AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenHours) * time.Hour
}

func (c *Config) OpenGormDB() (*gorm.DB, error) {
	dialector, err := c.Database.dialector()
	if err != nil {
		return nil, err
	}
	return gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
}

func (d DatabaseConfig) dialector() (gorm.Dialector, error) {
	switch d.Driver {
	case "", "mysql":
		cfg := gomysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = fmt.Sprintf("%s:%d", d.Host, d.Port)
		cfg.DBName = d.Name
		cfg.ParseTime = true

		connector, err := gomysql.NewConnector(cfg)
		if err != nil {
			return nil, fmt.Errorf("create connector: %w", err)
		}
		sqlDB := sql.OpenDB(connector)
		if err := sqlDB.Ping(); err != nil {
			return nil, fmt.Errorf("ping db: %w", err)
		}
		return mysql.New(mysql.Config{Conn: sqlDB}), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			d.Host, d.Port, d.User, d.Password, d.Name)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(d.Name), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", d.Driver)
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// envOverrideList reads a comma-separated list.
func envOverrideList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}
