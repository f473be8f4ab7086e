// Package postgres provides the durable job registry implementation
// backed by PostgreSQL via the pgx stdlib driver.
package postgres
