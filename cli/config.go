package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServerConfig is one saved server entry. Token is the plaintext API token
// printed by `segbridge --init-token`; the server itself stores only a hash.
type ServerConfig struct {
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
	Token       string `yaml:"token,omitempty"`
}

// Config is the local CLI configuration
type Config struct {
	DefaultServer string                  `yaml:"default_server"`
	Servers       map[string]ServerConfig `yaml:"servers"`
	configPath    string
}

// getConfigPath gets the configuration file path
func getConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	configDir := filepath.Join(homeDir, ".segbridge")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}

	return filepath.Join(configDir, "config.yaml"), nil
}

// LoadConfig loads the configuration, creating a default file on first use
func LoadConfig() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	config := &Config{
		configPath: configPath,
		Servers:    make(map[string]ServerConfig),
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config.DefaultServer = "local"
		config.Servers["local"] = ServerConfig{
			URL:         "http://localhost:7790",
			Description: "Local SegBridge service",
		}
		if err := config.Save(); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	config.configPath = configPath
	return config, nil
}

// Save saves the configuration. The file may hold tokens, so it stays 0600.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(c.configPath, data, 0600)
}

// TokenFor returns the stored token for a server URL, or empty.
func (c *Config) TokenFor(url string) string {
	for _, server := range c.Servers {
		if server.URL == url {
			return server.Token
		}
	}
	return ""
}

// AddServer adds or replaces a server entry
func (c *Config) AddServer(name, url, description, token string) error {
	if name == "" {
		return fmt.Errorf("server name cannot be empty")
	}
	if url == "" {
		return fmt.Errorf("server URL cannot be empty")
	}

	c.Servers[name] = ServerConfig{
		URL:         url,
		Description: description,
		Token:       token,
	}

	// If this is the first server, set it as default
	if c.DefaultServer == "" {
		c.DefaultServer = name
	}

	return c.Save()
}

// RemoveServer removes a server entry
func (c *Config) RemoveServer(name string) error {
	if _, exists := c.Servers[name]; !exists {
		return fmt.Errorf("server '%s' not found", name)
	}

	delete(c.Servers, name)

	// If the deleted server was the default, select another as default
	if c.DefaultServer == name {
		c.DefaultServer = ""
		for serverName := range c.Servers {
			c.DefaultServer = serverName
			break
		}
	}

	return c.Save()
}

// GetServer gets a server entry; empty name means the default.
func (c *Config) GetServer(name string) (*ServerConfig, error) {
	if name == "" {
		name = c.DefaultServer
	}

	server, exists := c.Servers[name]
	if !exists {
		return nil, fmt.Errorf("server '%s' not found", name)
	}

	return &server, nil
}
