// Package pg manages the PostgreSQL connection pool and schema
// migrations backing the durable delivery record store.
package pg
