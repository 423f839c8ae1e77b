package config

import (
	"github.com/voxguild/permengine/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode   bool       `mapstructure:"devMode"` // enable dev mode for development
	DB        DB         `mapstructure:"db"`
	Log       logger.Log `mapstructure:"log"`
	Webserver Webserver  `mapstructure:"webserver"`
	Auth      Auth       `mapstructure:"auth"`
	Audit     Audit      `mapstructure:"audit"`
}

// Webserver implement webserver settings.
type Webserver struct {
	Port           int  `mapstructure:"port"`           // listening port for the webserver
	ShutDownTime   int  `mapstructure:"shutDownTime"`   // seconds /checkalive fails before the listener stops
	FastShutdown   bool `mapstructure:"fastShutdown"`   // skip the shutdown wait
	DisableRecover bool `mapstructure:"disableRecover"` // disable recover middleware
	BodyLimit      int  `mapstructure:"bodyLimit"`      // max request body in bytes
}

// Auth holds the API credentials.
type Auth struct {
	// JWTSecret signs the HS256 user tokens.
	JWTSecret string `mapstructure:"jwtSecret"`
	// Issuer is checked against the iss claim when set.
	Issuer string `mapstructure:"issuer"`
	// Leeway in seconds for exp and nbf.
	Leeway int `mapstructure:"leeway"`
	// ServiceToken guards the lifecycle routes. Empty disables them.
	ServiceToken string `mapstructure:"serviceToken"`
}

// Audit configures where audit events go.
type Audit struct {
	BufferSize int   `mapstructure:"bufferSize"`
	DropIfFull bool  `mapstructure:"dropIfFull"`
	LogEvents  bool  `mapstructure:"logEvents"`
	Redis      Redis `mapstructure:"redis"`
}

// Redis stream sink settings.
type Redis struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Stream  string `mapstructure:"stream"`
	MaxLen  int64  `mapstructure:"maxLen"`
}
