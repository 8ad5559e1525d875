package codec

import "sync"

// SmallBufSize is the pooled work-buffer size. Commands whose compiled
// size fits are served from the pool; larger commands (batch, big blobs)
// fall back to a one-off heap allocation, mirroring the C client's
// stack/heap split (spec §9).
const SmallBufSize = 16 * 1024

var bufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, SmallBufSize)
		return &b
	},
}

// GetBuffer returns a buffer of at least size bytes. Buffers at or below
// SmallBufSize come from the pool (small path); larger ones are freshly
// allocated (large path) and must not be returned via PutBuffer.
func GetBuffer(size int) []byte {
	if size <= SmallBufSize {
		bp := bufPool.Get().(*[]byte)
		return (*bp)[:size]
	}
	return make([]byte, size)
}

// PutBuffer returns a small-path buffer to the pool. Calling it with a
// large-path buffer is a harmless no-op guarded by capacity.
func PutBuffer(b []byte) {
	if cap(b) != SmallBufSize {
		return
	}
	full := b[:SmallBufSize]
	bufPool.Put(&full)
}
