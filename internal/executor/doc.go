// Package executor runs the simulation executable for one profile, enforcing
// a wall-clock timeout and capturing its combined output.
package executor
