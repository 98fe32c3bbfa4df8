package valueobjects

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// 100ns intervals between the Gregorian epoch (1582-10-15) and the Unix epoch.
const gregorianOffset = 0x01B21DD213814000

// NewTimeUUID returns a version 1 UUID for the current instant.
func NewTimeUUID() uuid.UUID {
	return TimeUUIDAt(time.Now())
}

// TimeUUIDAt returns a version 1 UUID whose timestamp is t. Clock sequence
// and node come from the process generator, so two ids minted for the same
// instant still differ.
func TimeUUIDAt(t time.Time) uuid.UUID {
	u, err := uuid.NewUUID()
	if err != nil {
		u = uuid.New()
	}

	ticks := uint64(t.UnixNano()/100) + gregorianOffset
	binary.BigEndian.PutUint32(u[0:4], uint32(ticks))
	binary.BigEndian.PutUint16(u[4:6], uint16(ticks>>32))
	binary.BigEndian.PutUint16(u[6:8], uint16(ticks>>48)&0x0fff|0x1000)
	u[8] = u[8]&0x3f | 0x80
	return u
}

// IsTimeUUID reports whether u carries an embedded timestamp.
func IsTimeUUID(u uuid.UUID) bool {
	return u.Version() == 1
}

// TimeOf extracts the instant embedded in a time-based UUID.
func TimeOf(u uuid.UUID) time.Time {
	if !IsTimeUUID(u) {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec).UTC()
}

// CompareTimeUUID orders time-based UUIDs by timestamp, breaking ties on the
// raw bytes so the order is total.
func CompareTimeUUID(a, b uuid.UUID) int {
	ta, tb := a.Time(), b.Time()
	switch {
	case ta < tb:
		return -1
	case ta > tb:
		return 1
	}
	return bytes.Compare(a[:], b[:])
}

// Timestamp normalizes an instant to the millisecond UTC precision the store keeps.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
