package micheline

// DEFAULT_WINDOW_SIZE is the output window capacity used when the
// caller does not pick one.
const DEFAULT_WINDOW_SIZE = 256

// Stream carries the registers shared by the streaming decoders: the
// input chunk being consumed, the absolute offset reached so far and
// the output window holding text produced since the last flush.
//
// Input arrives in transport sized chunks. When a chunk runs out mid
// value the decoders report ErrNeedMoreInput and resume from the same
// byte after Refill. Output accumulates in a bounded window; once it
// fills the decoders report ErrWindowFull and resume after Flush.
type Stream struct {
	in   []byte
	ofs  int
	win  []byte
	size int
}

// NewStream returns a stream with a window of the given capacity.
// Sizes below one fall back to DEFAULT_WINDOW_SIZE.
func NewStream(window int) *Stream {
	if window < 1 {
		window = DEFAULT_WINDOW_SIZE
	}
	return &Stream{win: make([]byte, 0, window), size: window}
}

// Refill hands the next input chunk to the stream. The previous chunk
// must have been consumed entirely.
func (s *Stream) Refill(chunk []byte) {
	s.in = chunk
}

// Offset returns the absolute offset of the next unread byte.
func (s *Stream) Offset() int { return s.ofs }

// ReadByte consumes one byte.
func (s *Stream) ReadByte() (byte, error) {
	if len(s.in) == 0 {
		return 0, ErrNeedMoreInput
	}
	b := s.in[0]
	s.in = s.in[1:]
	s.ofs++
	return b, nil
}

// PeekByte returns the next byte without consuming it.
func (s *Stream) PeekByte() (byte, error) {
	if len(s.in) == 0 {
		return 0, ErrNeedMoreInput
	}
	return s.in[0], nil
}

// Skip consumes the byte a successful PeekByte returned.
func (s *Stream) Skip() {
	if len(s.in) == 0 {
		return
	}
	s.in = s.in[1:]
	s.ofs++
}

// Put appends one character to the output window.
func (s *Stream) Put(c byte) error {
	if len(s.win) >= s.size {
		return ErrWindowFull
	}
	s.win = append(s.win, c)
	return nil
}

// Pending returns the number of characters waiting in the window.
func (s *Stream) Pending() int { return len(s.win) }

// Flush empties the window and returns what it held.
func (s *Stream) Flush() string {
	out := string(s.win)
	s.win = s.win[:0]
	return out
}

// FlushUpTo returns the first n window characters and keeps the rest
// as the start of the next window. Oversized n behaves like Flush.
func (s *Stream) FlushUpTo(n int) string {
	if n < 0 {
		n = 0
	}
	if n >= len(s.win) {
		return s.Flush()
	}
	out := string(s.win[:n])
	k := copy(s.win, s.win[n:])
	s.win = s.win[:k]
	return out
}
