package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type PeerConfig struct {
	Env            string         `yaml:"env" env:"ENV" env-default:"local"`
	RelayURL       string         `yaml:"relay_url" env:"RELAY_URL" env-default:"http://localhost:3001"`
	STUNServers    []string       `yaml:"stun_servers" env:"STUN_SERVERS" env-separator:","`
	ConnectTimeout time.Duration  `yaml:"connect_timeout" env-default:"20s"`
	Transports     []string       `yaml:"transports" env:"TRANSPORTS" env-separator:","`
	Transfer       TransferConfig `yaml:"transfer"`
}

type TransferConfig struct {
	ChunkSize   int   `yaml:"chunk_size" env-default:"16384"`
	HighWater   int   `yaml:"high_water" env-default:"1048576"`
	LowWater    int   `yaml:"low_water" env-default:"262144"`
	MaxFileSize int64 `yaml:"max_file_size" env-default:"1073741824"`
}

func MustLoadPeerPath(configPath string) *PeerConfig {
	var cfg PeerConfig

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
				panic("cannot read config: " + err.Error())
			}
			cfg.setDefaults()
			return &cfg
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic("cannot read env: " + err.Error())
	}
	cfg.setDefaults()

	return &cfg
}

func (c *PeerConfig) setDefaults() {
	if c.RelayURL == "" {
		c.RelayURL = "http://localhost:3001"
	}
	if len(c.STUNServers) == 0 {
		c.STUNServers = []string{"stun:stun.l.google.com:19302"}
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 20 * time.Second
	}
	if len(c.Transports) == 0 {
		c.Transports = []string{TransportWebSocket, TransportPolling}
	}
	c.Transfer.setDefaults()
}

func (c *TransferConfig) setDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 16 * 1024
	}
	if c.HighWater <= 0 {
		c.HighWater = 1 << 20
	}
	if c.LowWater <= 0 || c.LowWater >= c.HighWater {
		c.LowWater = c.HighWater / 4
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 1 << 30
	}
}
