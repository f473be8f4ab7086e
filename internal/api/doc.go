// Package api contains the HTTP handlers of the generation gateway.
// Handlers translate between HTTP and the job, dispatch, and artifact
// packages; they hold no orchestration logic of their own.
package api
