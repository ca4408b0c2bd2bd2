// Package queue runs simulation jobs one at a time in submission order.
//
// A Worker owns the pending list and the single executing job. Enqueue never
// blocks; it appends the job and wakes the dispatch loop. For each job the
// loop renders the profile from a registry snapshot, persists it, runs the
// simulation executable and delivers either the report or an error text to
// the submitter before moving on. A failure in one job never affects the
// next.
//
// Progress of individual jobs can be followed through Subscribe, which
// streams Events until the job reaches a terminal state.
package queue
