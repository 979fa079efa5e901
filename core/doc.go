// Package core defines the connection domain model and the repository
// contracts for linking external provider accounts to local users.
//
// A ConnectionRepository holds one user's connections, ordered by per-provider
// rank. A UsersConnectionRepository owns the user-to-repository mapping and
// answers cross-user ownership queries, optionally provisioning a local user
// through a ConnectionSignUp callback when a connection matches nobody.
//
// The in-memory backend in this package serves tests and small deployments;
// the durable backend lives in store/sql. Both satisfy the same contracts and
// the shared conformance checks in package devkit.
package core
