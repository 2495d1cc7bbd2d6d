package config

import (
	"os"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"

	web5 "github.com/totegamma/web5-playground"
)

type Config struct {
	NodeInfo NodeInfo `yaml:"nodeInfo"`
	Server   Server   `yaml:"server"`
}

type NodeInfo struct {
	FQDN       string `yaml:"fqdn"`
	PrivateKey string `yaml:"privatekey"`

	// ---
	ServerKey string
}

type Server struct {
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	ExplorerAddr  string `yaml:"explorerAddr"`
	ListenAddr    string `yaml:"listenAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	serverKey, err := web5.PrivKeyToPub(config.NodeInfo.PrivateKey)
	if err != nil {
		return Config{}, errors.Wrap(err, "server private key is unusable")
	}

	config.NodeInfo.ServerKey = serverKey

	return config, nil
}
