// Package storage provides durable string key/value backends for the
// persistence plugin.
//
// SQLite is the default durable backend: WAL mode, a single writer
// connection and user_version migrations. TOMLFile keeps every item in one
// human-editable file. Memory is a process-local map for tests and
// ephemeral sessions.
//
// All backends satisfy persist.Storage.
package storage
