// Package params holds the typed, bounds-checked simulation settings shared
// by every job. Values keep their kind for the lifetime of the process and
// integer values never leave their configured bounds.
package params
