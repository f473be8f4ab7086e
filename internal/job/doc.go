// Package job defines the job registry: the single source of truth for
// job records and the sole arbiter of valid state transitions.
//
// Two implementations exist. The in-memory registry in this package is
// the default; a PostgreSQL-backed registry lives in
// internal/platform/postgres for deployments that need jobs to survive
// restarts. Both serialize transitions per job ID and hand out defensive
// copies, so readers never block on, or observe, an in-flight mutation.
package job
