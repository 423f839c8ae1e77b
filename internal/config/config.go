// Package config handles input from etc/main.toml and the environment.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes single value overrides, e.g. PERMENGINE_WEBSERVER_PORT.
	EnvPrefix = "PERMENGINE"

	// EnvJSON holds a JSON document merged over main.toml.
	EnvJSON = EnvPrefix + "_CONFIG_JSON"

	redacted = "***"
)

// ReadConfig from <path>/main.toml, then env overrides.
func ReadConfig(path string) (Config, error) {
	var c Config

	if path == "" {
		path = "./etc/"
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(filepath.Join(path, "main.toml"))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	if configAsJSON := os.Getenv(EnvJSON); configAsJSON != "" {
		v.SetConfigType("json")

		if err := v.MergeConfig(strings.NewReader(configAsJSON)); err != nil {
			return Config{}, errors.Wrap(err, "failed to merge "+EnvJSON)
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}

	return c, validate(&c)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.engine", EngineSQLite)
	v.SetDefault("db.path", "permengine.db")
	v.SetDefault("webserver.port", 8080) //nolint:mnd
	v.SetDefault("webserver.shutDownTime", 5)
	v.SetDefault("webserver.bodyLimit", 1<<20) //nolint:mnd
	v.SetDefault("log.logLevel", "info")
	v.SetDefault("log.appName", "permengine")
	v.SetDefault("log.serviceName", "permengine")
	v.SetDefault("auth.leeway", 30)        //nolint:mnd
	v.SetDefault("audit.bufferSize", 1024) //nolint:mnd
	v.SetDefault("audit.logEvents", true)
	v.SetDefault("audit.redis.stream", "permengine:audit")
}

// toMap converts c to a map keyed like main.toml.
func toMap(c Config) (map[string]any, error) {
	var out map[string]any

	if err := mapstructure.Decode(c, &out); err != nil {
		return nil, errors.Wrap(err, "failed to encode config")
	}

	return out, nil
}

// DumpConfig config as TOML String.
func DumpConfig(c Config) (string, error) {
	m, err := toMap(c)
	if err != nil {
		return "", err
	}

	b, err := toml.Marshal(m)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode config as toml")
	}

	return string(b), nil
}

// DumpConfigJSON config as JSON String. The output is accepted by EnvJSON.
func DumpConfigJSON(c Config) (string, error) {
	m, err := toMap(c)
	if err != nil {
		return "", err
	}

	var buffer bytes.Buffer

	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err = j.Encode(m); err != nil {
		return "", errors.Wrap(err, "failed to encode config as json")
	}

	return buffer.String(), nil
}

// Redact returns c with secrets masked, for printing.
func Redact(c Config) Config {
	for _, s := range []*string{&c.DB.Password, &c.Auth.JWTSecret, &c.Auth.ServiceToken} {
		if *s != "" {
			*s = redacted
		}
	}

	return c
}

// validate minimal config settings.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Auth.JWTSecret == "" {
		return errors.Wrap(ErrEmptyJWTSecret, invalidErrMessage)
	}

	switch c.DB.Engine {
	case EngineMySQL, EnginePostgres, EngineSQLite:
	default:
		return errors.Wrap(ErrUnknownDBEngine, invalidErrMessage)
	}

	if c.Audit.Redis.Enabled && c.Audit.Redis.URL == "" {
		return errors.Wrap(ErrEmptyRedisURL, invalidErrMessage)
	}

	if c.Webserver.ShutDownTime < 0 {
		c.Webserver.ShutDownTime = 0
	}

	return nil
}
