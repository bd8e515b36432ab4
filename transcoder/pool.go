package transcoder

import "sync"

const (
	// Pool limits to prevent memory bloat
	poolMaxCapBytes  = 64 << 10
	poolInitCapBytes = 256
)

// staging buffer pool for encoded text and slices before they are copied
// into module memory in one write
var bytesPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, poolInitCapBytes)
		return &buf
	},
}

func getBytes() *[]byte {
	return bytesPool.Get().(*[]byte)
}

func putBytes(buf *[]byte) {
	if buf == nil || cap(*buf) > poolMaxCapBytes {
		return // reject oversized
	}
	*buf = (*buf)[:0]
	bytesPool.Put(buf)
}
