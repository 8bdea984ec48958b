package util

import "sync"

var readBufs = sync.Pool{
	New: func() any {
		b := make([]byte, DefaultBufSize)
		return &b
	},
}

// ReadBuffer borrows a DefaultBufSize scratch buffer for socket reads.
// A peer's reader holds one for as long as its connection is open.
func ReadBuffer() *[]byte {
	return readBufs.Get().(*[]byte)
}

// ReleaseReadBuffer returns buf for reuse.  Buffers that were resliced
// to a different length are dropped.
func ReleaseReadBuffer(buf *[]byte) {
	if buf == nil || len(*buf) != DefaultBufSize {
		return
	}
	readBufs.Put(buf)
}
