// Package oid provides the opaque, creation-time sortable identifiers used as
// the `_id` of every persisted document.
//
// Identifiers are BSON ObjectIDs: the first four bytes hold the creation time
// in seconds, so the 24-character hex form sorts by creation time and can be
// used directly as a time-range bound.
package oid

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ID is the identifier type shared by all documents.
type ID = primitive.ObjectID

// Nil is the empty identifier.
var Nil = primitive.NilObjectID

// New returns a fresh identifier stamped with the current time.
func New() ID { return primitive.NewObjectID() }

// NewAt returns a fresh identifier whose embedded creation time is t.
// The remaining bytes are random so ids generated for the same second stay
// distinct.
func NewAt(t time.Time) ID {
	var id ID
	binary.BigEndian.PutUint32(id[0:4], uint32(t.Unix()))
	if _, err := rand.Read(id[4:]); err != nil {
		fresh := primitive.NewObjectID()
		copy(id[4:], fresh[4:])
	}
	return id
}

// Lower returns the smallest identifier of t's second: the timestamp followed
// by a zero tail. It is the inclusive lower bound of a creation-time range.
func Lower(t time.Time) ID {
	var id ID
	binary.BigEndian.PutUint32(id[0:4], uint32(t.Unix()))
	return id
}

// Time returns the UTC creation time embedded in id.
func Time(id ID) time.Time { return id.Timestamp().UTC() }

// Parse decodes a 24-character hex identifier.
func Parse(s string) (ID, error) { return primitive.ObjectIDFromHex(s) }

// MustParse is like Parse but panics on malformed input. Intended for tests
// and constants.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseList decodes a list of hex identifiers, skipping malformed entries.
func ParseList(ss []string) []ID {
	out := make([]ID, 0, len(ss))
	for _, s := range ss {
		if id, err := Parse(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// Age reports how long ago id was generated relative to now.
func Age(id ID, now time.Time) time.Duration { return now.Sub(Time(id)) }
