// Package dispatch implements the generation dispatcher: it validates
// submissions, creates job records, and runs each job's generation work
// in its own goroutine under a hard execution ceiling.
//
// Submission returns as soon as the job record exists; every outcome of
// the background run (success, service failure, timeout, artifact-write
// failure) lands in the job registry as a terminal transition, so a job
// is never left processing forever.
package dispatch
