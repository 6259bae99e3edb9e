// Package fixtures seeds the circulation catalog and resets the tables for integration tests.
package fixtures
