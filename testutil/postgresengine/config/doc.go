// Package config provides the PostgreSQL connection configuration for integration tests and the seed command.
// The DSN is read from CIRCULATION_POSTGRES_DSN, optionally loaded from a .env file.
package config
