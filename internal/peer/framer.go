package peer

import "bytes"

// lineBuffer accumulates raw peer input and hands out newline-terminated
// commands.  Carriage returns are dropped on the way in, so they never
// appear in a command.
type lineBuffer struct {
	data []byte
}

func (b *lineBuffer) append(p []byte) {
	for _, c := range p {
		if c != '\r' {
			b.data = append(b.data, c)
		}
	}
}

// next removes the first complete command from the front of the buffer
// and returns it without its newline.  A trailing partial command stays
// buffered.
func (b *lineBuffer) next() ([]byte, bool) {
	i := bytes.IndexByte(b.data, '\n')
	if i < 0 {
		return nil, false
	}
	line := make([]byte, i)
	copy(line, b.data[:i])
	n := copy(b.data, b.data[i+1:])
	b.data = b.data[:n]
	if n == 0 {
		b.data = nil
	}
	return line, true
}

// len returns the number of buffered bytes.
func (b *lineBuffer) len() int { return len(b.data) }

func (b *lineBuffer) reset() { b.data = nil }
