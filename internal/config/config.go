package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL string `yaml:"database_url"`
	RPCURL      string `yaml:"rpc_url"`
	LCDURL      string `yaml:"lcd_url"`
	APIPort     int    `yaml:"api_port"`
	StartHeight int64  `yaml:"start_height"`
	CoingeckoID string `yaml:"coingecko_id"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
