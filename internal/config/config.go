package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env   string      `yaml:"env" env:"ENV" env-default:"local"`
	HTTP  HTTPConfig  `yaml:"http"`
	Relay RelayConfig `yaml:"relay"`
	Chat  ChatConfig  `yaml:"chat"`
}

type HTTPConfig struct {
	Port            string        `yaml:"port" env:"PORT" env-default:"3001"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:","`
	Transports      []string      `yaml:"transports" env:"TRANSPORTS" env-separator:","`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
}

type RelayConfig struct {
	QueueSize       int           `yaml:"queue_size" env-default:"64"`
	PollWait        time.Duration `yaml:"poll_wait" env-default:"25s"`
	PollIdleTimeout time.Duration `yaml:"poll_idle_timeout" env-default:"60s"`
}

type ChatConfig struct {
	IncludeSender bool `yaml:"include_sender" env:"CHAT_INCLUDE_SENDER" env-default:"true"`
}

const (
	TransportWebSocket = "websocket"
	TransportPolling   = "polling"
)

func MustLoad() *Config {
	return MustLoadPath(fetchConfigPath())
}

// MustLoadPath reads the yaml file when it exists and falls back to the
// environment alone otherwise.
func MustLoadPath(configPath string) *Config {
	var cfg Config

	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			panic("cannot read config: " + err.Error())
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic("cannot read env: " + err.Error())
	}

	cfg.setDefaults()

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Port == "" {
		c.HTTP.Port = "3001"
	}
	if len(c.HTTP.CORSOrigins) == 0 {
		c.HTTP.CORSOrigins = []string{"*"}
	}
	if len(c.HTTP.Transports) == 0 {
		c.HTTP.Transports = []string{TransportWebSocket, TransportPolling}
	}
	if c.Relay.QueueSize <= 0 {
		c.Relay.QueueSize = 64
	}
	if c.Relay.PollWait <= 0 {
		c.Relay.PollWait = 25 * time.Second
	}
	if c.Relay.PollIdleTimeout <= 0 {
		c.Relay.PollIdleTimeout = 60 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
}

func (c *Config) Address() string {
	return ":" + c.HTTP.Port
}

func (c *Config) TransportEnabled(name string) bool {
	for _, t := range c.HTTP.Transports {
		if t == name {
			return true
		}
	}
	return false
}
