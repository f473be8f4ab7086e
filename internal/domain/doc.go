// Package domain contains the core entities of the generation service:
// jobs, their state machine, generation requests and results, and the
// exam catalog that drives validation and fan-out.
//
// Domain types carry no infrastructure dependencies. Persistence,
// transport, and external-service concerns live in other packages that
// depend on this one, never the other way around.
package domain
