// Package store holds CredentialStore implementations.
//
// Subpackages:
//
//   - memory: mutex-guarded maps, for tests and single-process deployments
//   - redisstore: records as JSON values with Lua-enforced unique indexes
//   - postgres: database/sql over pgx with goose-managed schema; also
//     provides TaskStore, the durable tasks.Store
//
// Every implementation enforces username and email uniqueness atomically and
// applies optimistic version checks on Update.
package store
