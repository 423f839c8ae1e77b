package config

// Supported DB engines.
const (
	EngineMySQL    = "mysql"
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
)

// DB holds the database configuration settings.
type DB struct {
	Engine   string `mapstructure:"engine"`
	Extras   string `mapstructure:"extras"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Path     string `mapstructure:"path"` // sqlite file, ":memory:" for a throwaway db

	MaxOpenConns    int `mapstructure:"maxOpenConns"`
	MaxIdleConns    int `mapstructure:"maxIdleConns"`
	ConnMaxLifetime int `mapstructure:"connMaxLifetime"` // seconds
}
