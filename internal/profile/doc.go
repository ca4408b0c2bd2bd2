// Package profile turns a simulation request into the input file consumed by
// the simulation executable. Rendering is pure; writing the result to disk is
// a separate step (Persist).
package profile
