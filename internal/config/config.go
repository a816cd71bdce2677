package config

import (
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	Addr          string        `yaml:"addr"`
	LogLevel      string        `yaml:"log_level"`
	LogJSON       bool          `yaml:"log_json"`
	JwtTTL        time.Duration `yaml:"jwt_ttl"`
	RecentWindow  int           `yaml:"recent_window"`   // size of the live-subscribed window of newest messages
	OlderPageSize int           `yaml:"older_page_size"` // messages fetched per "load older" call
	MaxMsgLen     int           `yaml:"max_msg_len"`
	MediaRoot     string        `yaml:"media_root"`
	SecureCookies bool          `yaml:"secure_cookies"`
}

type Private struct {
	Pg     Pg     `yaml:"pg"`
	JwtKey string `yaml:"jwt_key"`
	Users  []User `yaml:"users"`
}

type User struct {
	Name         string `yaml:"name"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
	AvatarURL    string `yaml:"avatar_url"`
	Admin        bool   `yaml:"admin"`
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
}

func (c *Config) JwtKey() string {
	return c.Private.JwtKey
}

func (c *Config) JwtTTL() time.Duration {
	return c.Public.JwtTTL
}

func mustLoadPath(configPath string, output interface{}) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file")
	}

	if err := yaml.Unmarshal(configFile, output); err != nil {
		panic("can't unmarshal config file")
	}
}

func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	cfg := &Config{public, private}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Public.RecentWindow == 0 {
		c.Public.RecentWindow = 12
	}
	if c.Public.OlderPageSize == 0 {
		c.Public.OlderPageSize = 5
	}
	if c.Public.MaxMsgLen == 0 {
		c.Public.MaxMsgLen = 4000
	}
	if c.Public.Addr == "" {
		c.Public.Addr = ":8080"
	}
	if c.Public.MediaRoot == "" {
		c.Public.MediaRoot = "media"
	}
}
