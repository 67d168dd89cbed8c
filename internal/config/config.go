package config

import (
	"os"

	"github.com/go-yaml/yaml"

	"github.com/unioncms/unioncms/internal/domain"
)

type Config struct {
	Site   Site   `yaml:"site"`
	Server Server `yaml:"server"`
	Sync   Sync   `yaml:"sync"`
}

type Site struct {
	FQDN    string `yaml:"fqdn"`
	Name    string `yaml:"name"`
	SiteKey string `yaml:"sitekey"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	RedisPassword string `yaml:"redisPassword"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
	BlobPath      string `yaml:"blobPath"`
	BlobBaseURL   string `yaml:"blobBaseURL"`
}

type Sync struct {
	LockTTLMinutes int    `yaml:"lockTTLMinutes"`
	Strategy       string `yaml:"strategy"` // last-write-wins, merge, manual
	RetryLimit     int    `yaml:"retryLimit"`
}

func Load(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Server.Listen == "" {
		config.Server.Listen = ":8000"
	}
	if config.Sync.LockTTLMinutes <= 0 {
		config.Sync.LockTTLMinutes = int(domain.DefaultLockTTL.Minutes())
	}

	if _, err := domain.ParseStrategy(config.Sync.Strategy); err != nil {
		return Config{}, err
	}

	return config, nil
}
