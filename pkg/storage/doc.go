// Package storage provides the pluggable backends behind the auth core: SQL
// credential stores (postgres for production, sqlite for local use), a
// redis-backed session registry, and a read-through cache decorator for
// credential lookups. The in-memory implementations live next to the
// interfaces in pkg/auth.
package storage
