package internal

import "sync"

var bufPool = sync.Pool{New: func() interface{} {
	return make([]byte, 0, 1024)
}}

// ReserveByteBuffer fetches a byte slice of length 0 from a pool.
// The capacity may be larger than 0 when the slice is reused.
// Return it with ReleaseByteBuffer.
func ReserveByteBuffer() []byte {
	return bufPool.Get().([]byte)[:0]
}

// ReleaseByteBuffer returns a slice obtained from ReserveByteBuffer
// to the pool.
func ReleaseByteBuffer(buf []byte) {
	bufPool.Put(buf)
}
