package model

import "github.com/oklog/ulid/v2"

// NewID generates a new ULID string for use as a job identifier. ULIDs sort
// by creation time, so history listings ordered by id follow submission order.
func NewID() string {
	return ulid.Make().String()
}
