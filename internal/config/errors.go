package config

import (
	"errors"
)

var (
	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("config webserver.port listening port can not be 0")

	// ErrEmptyJWTSecret error if config auth.jwtSecret is empty.
	ErrEmptyJWTSecret = errors.New("config auth.jwtSecret can not be empty")

	// ErrUnknownDBEngine error if config db.engine is not supported.
	ErrUnknownDBEngine = errors.New("config db.engine must be mysql, postgres or sqlite")

	// ErrEmptyRedisURL error if the redis audit sink is enabled without url.
	ErrEmptyRedisURL = errors.New("config audit.redis.url can not be empty when enabled")
)
