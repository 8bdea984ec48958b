package util

import (
	"net"
	"time"
)

// DefaultBufSize is the scratch buffer size for a single socket read.
const DefaultBufSize = 8 * 1024

// WriteAll writes p to conn in full.  A non-zero timeout bounds the
// whole write with a deadline so a stalled peer cannot hold the writer
// forever.
func WriteAll(conn net.Conn, p []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(timeout)) //nolint:errcheck
		defer conn.SetWriteDeadline(time.Time{})       //nolint:errcheck
	}
	total := 0
	for total < len(p) {
		n, err := conn.Write(p[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
