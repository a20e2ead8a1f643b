package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Chat      ChatConfig
	Log       LogConfig
}

type ServerConfig struct {
	Address        string
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
	MaxConnsPerIP  int      `mapstructure:"maxConnsPerIP"`
	Auth           AuthConfig
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
	// Required rejects upgrades without a valid token. When false the relay
	// accepts anonymous connections and trusts event-carried identity.
	Required bool `mapstructure:"required"`
}

type TransportConfig struct {
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

type ChatConfig struct {
	// MongoURI enables chat-history persistence; empty means relay-only.
	MongoURI    string        `mapstructure:"mongoUri"`
	Database    string        `mapstructure:"database"`
	SaveTimeout time.Duration `mapstructure:"saveTimeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}
