package config

import "time"

// APIConfig represents the configuration for the classification API client
type APIConfig struct {
	DevURL         string
	ProdURL        string
	RequestTimeout time.Duration
}

// CacheConfig represents the configuration for the result cache
type CacheConfig struct {
	TTL            time.Duration
	SweepFrequency time.Duration
	MaxEntries     int
}

// GateConfig represents the configuration for the navigation gate
type GateConfig struct {
	WarnDelay time.Duration
	BlockPage string
}

// StorageConfig represents the configuration for persisted state
type StorageConfig struct {
	Type         string
	SQLitePath   string
	MySQLDSN     string
	HistoryLimit int
}

// ServerConfig represents the configuration for the control-plane server
type ServerConfig struct {
	ListenAddress string
}

// GetAPI returns the classification API configuration
func (c *Config) GetAPI() (APIConfig, error) {
	timeout, err := c.GetDuration("api.request_timeout")
	if err != nil {
		return APIConfig{}, err
	}
	return APIConfig{
		DevURL:         c.GetString("api.dev_url"),
		ProdURL:        c.GetString("api.prod_url"),
		RequestTimeout: timeout,
	}, nil
}

// GetCache returns the result cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, err
	}
	sweep, err := c.GetDuration("cache.sweep_frequency")
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{
		TTL:            ttl,
		SweepFrequency: sweep,
		MaxEntries:     c.GetInt("cache.max_entries"),
	}, nil
}

// GetGate returns the navigation gate configuration
func (c *Config) GetGate() (GateConfig, error) {
	delay, err := c.GetDuration("gate.warn_delay")
	if err != nil {
		return GateConfig{}, err
	}
	return GateConfig{
		WarnDelay: delay,
		BlockPage: c.GetString("server.block_page"),
	}, nil
}

// GetStorage returns the persisted state configuration
func (c *Config) GetStorage() StorageConfig {
	return StorageConfig{
		Type:         c.GetString("storage.type"),
		SQLitePath:   c.GetString("storage.sqlite_path"),
		MySQLDSN:     c.GetString("storage.mysql_dsn"),
		HistoryLimit: c.GetInt("storage.history_limit"),
	}
}

// GetServer returns the control-plane server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress: c.GetString("server.listen_address"),
	}
}
