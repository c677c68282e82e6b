// Package entities holds the gateway's persisted data model: EventAccess,
// Connection, the catalog definitions, Metric, Event, Task and the shared
// Ownership/RecordMetadata envelopes every document carries.
package entities

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// IdPrefix tags an Id with the entity it identifies, so a raw string never
// has to be traced back to its collection by context alone.
type IdPrefix string

const (
	IdPrefixEventAccess      IdPrefix = "ea"
	IdPrefixConnection       IdPrefix = "conn"
	IdPrefixConnectionDef    IdPrefix = "cd"
	IdPrefixConnectionModel  IdPrefix = "cmd"
	IdPrefixConnectionOAuth  IdPrefix = "cod"
	IdPrefixSecret           IdPrefix = "sec"
	IdPrefixEvent            IdPrefix = "evt"
	IdPrefixMetric           IdPrefix = "met"
	IdPrefixTask             IdPrefix = "task"
	IdPrefixTransaction      IdPrefix = "txn"
	IdPrefixSettings         IdPrefix = "set"
	IdPrefixClient           IdPrefix = "cl"
	IdPrefixKnowledge        IdPrefix = "know"
	IdPrefixSchema           IdPrefix = "schema"
)

// Id is an opaque, time-ordered identifier of the form "{prefix}::{suffix}".
// Equality is byte equality; ordering of two Ids minted for the same prefix
// in different milliseconds is consistent with mint order because the
// suffix starts with the millisecond timestamp. Within one millisecond the
// random tail decides the order.
type Id string

// Now mints an Id for prefix using the current time.
func Now(prefix IdPrefix) Id {
	return New(prefix, time.Now().UTC())
}

// New mints an Id for prefix carrying the given timestamp. The suffix is
// <13 hex chars of millis><10 hex chars of random> so two Ids minted in the
// same millisecond still sort and compare distinctly.
func New(prefix IdPrefix, at time.Time) Id {
	millis := at.UnixMilli()
	var tail [5]byte
	_, _ = rand.Read(tail[:])
	return Id(fmt.Sprintf("%s::%013x%s", prefix, millis, hex.EncodeToString(tail[:])))
}

// Prefix returns the IdPrefix portion of id, or "" if id is malformed.
func (id Id) Prefix() IdPrefix {
	parts := strings.SplitN(string(id), "::", 2)
	if len(parts) != 2 {
		return ""
	}
	return IdPrefix(parts[0])
}

func (id Id) String() string { return string(id) }

// Empty reports whether id carries no value.
func (id Id) Empty() bool { return id == "" }
