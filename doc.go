// Package main runs permengine, a permission service for guilds. It stores roles, member
// role assignments and per channel permission overwrites in a SQL database through gorm,
// resolves the effective permissions of a member in a channel, and rejects every change the
// requesting member is not allowed to make. The HTTP API is served with Fiber.
package main
