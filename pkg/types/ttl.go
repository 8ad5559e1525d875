package types

import "time"

// TTL is a record's time-to-live, encoded either as seconds-from-now or
// one of the special sentinel values below.
type TTL uint32

const (
	// TTLServerDefault tells the server to apply the namespace default.
	TTLServerDefault TTL = 0
	// TTLNeverExpire marks a record as not expiring.
	TTLNeverExpire TTL = 0xFFFFFFFF
	// TTLDontUpdate leaves the record's existing TTL untouched on write.
	TTLDontUpdate TTL = 0xFFFFFFFE
	// TTLClientDefault defers to the client policy's configured default.
	TTLClientDefault TTL = 0xFFFFFFFD
)

// FromDuration converts a duration to a wire TTL in whole seconds,
// truncating toward zero.
func FromDuration(d time.Duration) TTL {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return TTLServerDefault
	}
	return TTL(secs)
}

func (t TTL) Duration() time.Duration {
	switch t {
	case TTLNeverExpire, TTLDontUpdate, TTLClientDefault, TTLServerDefault:
		return 0
	default:
		return time.Duration(t) * time.Second
	}
}
