package config

// Watcher publishes configuration reloads to interested components.
type Watcher interface {
	GetCurrentConfig() *Config
	Subscribe() <-chan *Config
	Close() error
}
