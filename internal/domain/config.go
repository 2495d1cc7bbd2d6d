package domain

// Config is the node-level identity configuration threaded through
// services and handlers.
type Config struct {
	FQDN       string `yaml:"fqdn"`
	PrivateKey string `yaml:"privatekey"`
	ServerKey  string `yaml:"serverkey"`
}
