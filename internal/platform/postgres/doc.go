// Package postgres provides PostgreSQL-backed snapshot sources. Each source
// aggregates the rows of one query into a JSON array on the server side,
// so a section arrives as a single value in one round trip.
package postgres
