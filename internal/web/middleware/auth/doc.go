// Package auth provides authentication middleware for the JSON API.
//
// User routes carry an HS256 bearer token whose subject is the caller's user id:
//
//	app.Use(auth.New(cfg.Auth))
//	userID := auth.UserID(c)
//
// Lifecycle routes are called by the guild service with a shared token:
//
//	internal.Use(auth.ServiceToken(cfg.Auth.ServiceToken))
package auth
