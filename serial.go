package portprobe

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// bufferFullThreshold is how many undecided bytes a SerialPort will buffer
// before raising its buffer-full event. The original ties this to its
// GByteArray growth; here it's a fixed ceiling, generous enough that no
// real AT/QCDM reply trips it, but small enough that a junk-emitting modem
// is caught quickly.
const bufferFullThreshold = 2048

// devicePath is where character devices for the named port live. Overridable
// in tests.
var devicePath = func(name string) string {
	return "/dev/" + name
}

// ResponseParser consumes byte chunks read from a SerialPort and decides
// when a complete response (or a parse failure) has arrived. Grounded in
// §4.6's "configurable response parser" contract; V1Parser (atprobe.go) and
// QCDMParser (qcdmprobe.go) are its two concrete implementations.
type ResponseParser interface {
	// Feed appends a newly read chunk. It returns a complete response
	// (with done=true) once one is recognized, or a non-nil parseErr if the
	// accumulated bytes can never form a valid response.
	Feed(chunk []byte) (response []byte, done bool, parseErr error)
	// Reset discards any partially accumulated state, for reuse across
	// commands on the same port.
	Reset()
}

// SerialPort is a line/frame-aware transport abstraction over a character
// device. Grounded in the teacher's port.go (which runs paired Send/Recv
// goroutines over a *net.UDPConn) and in Daedaluz-goserial's termios/ioctl
// vocabulary (GetAttr/SetAttr, SendBreak, SetModemLines) for the raw-mode
// and line-toggling operations it needs — reimplemented here directly
// against golang.org/x/sys/unix, the teacher's own ioctl dependency, rather
// than goserial's unavailable goioctl/fdev packages.
type SerialPort struct {
	name string

	mu         sync.Mutex
	file       *os.File
	closed     bool
	bufferFull chan struct{}

	sendDelay  time.Duration // per-send delay (§4.3: zero on USB bus)
	removeEcho bool
	appendLF   bool
}

// NewSerialPort constructs a SerialPort for the given device name. It does
// not open the underlying device; call Open for that.
func NewSerialPort(name string, sendDelay time.Duration, removeEcho, appendLF bool) *SerialPort {
	return &SerialPort{
		name:       name,
		bufferFull: make(chan struct{}, 1),
		sendDelay:  sendDelay,
		removeEcho: removeEcho,
		appendLF:   appendLF,
	}
}

// BufferFull returns the channel that receives a signal when the read
// buffer accumulates bytes with no parser decision. The AT probe listens on
// this to cancel its sub-probe without closing the port mid-callback.
func (s *SerialPort) BufferFull() <-chan struct{} {
	return s.bufferFull
}

// Open opens the character device in raw mode. Failures are classified so
// the caller can distinguish "no device" (ENOENT/ENODEV — retryable) from
// any other open failure (terminal).
func (s *SerialPort) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		return nil // idempotent-safe per §4.6
	}
	f, err := os.OpenFile(devicePath(s.name), os.O_RDWR|os.O_NOCTTY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return NewProbeError(OpenFailedNoDevice, err.Error())
		}
		if perr, ok := err.(*os.PathError); ok && perr.Err == unix.ENODEV {
			return NewProbeError(OpenFailedNoDevice, err.Error())
		}
		return NewProbeError(OpenFailed, err.Error())
	}
	if err := makeRaw(f); err != nil {
		f.Close()
		return NewProbeError(OpenFailed, err.Error())
	}
	s.file = f
	s.closed = false
	return nil
}

// makeRaw puts the tty into a non-canonical, no-echo raw mode, mirroring
// Daedaluz-goserial's MakeRaw/SetAttr pattern via x/sys/unix termios ioctls.
func makeRaw(f *os.File) error {
	fd := int(f.Fd())
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}

// Close closes the underlying device. Idempotent-safe per §4.6.
func (s *SerialPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil || s.closed {
		return nil
	}
	err := s.file.Close()
	s.closed = true
	s.file = nil
	return err
}

// IsOpen reports whether the port currently holds an open file descriptor.
func (s *SerialPort) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file != nil && !s.closed
}

// Flash drains any pending input and briefly toggles the DTR line, resetting
// device framing before the first command is sent. Mirrors the 100ms flash
// window from §4.3.
func (s *SerialPort) Flash(ctx context.Context) error {
	s.mu.Lock()
	f := s.file
	s.mu.Unlock()
	if f == nil {
		return NewProbeError(Generic, "flash on closed port")
	}
	fd := int(f.Fd())
	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH); err != nil {
		log.Println("flash: drain failed on", s.name, ":", err)
	}
	if _, err := unix.IoctlGetInt(fd, unix.TIOCMGET); err == nil {
		unix.IoctlSetInt(fd, unix.TIOCMBIC, unix.TIOCM_DTR)
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return NewProbeError(Cancelled, "")
		}
		unix.IoctlSetInt(fd, unix.TIOCMBIS, unix.TIOCM_DTR)
	}
	return nil
}

// Send writes cmd to the port, honoring the configured per-send delay and
// optional trailing line-feed.
func (s *SerialPort) Send(ctx context.Context, cmd string) error {
	s.mu.Lock()
	f := s.file
	s.mu.Unlock()
	if f == nil {
		return NewProbeError(Generic, "send on closed port")
	}
	if s.sendDelay > 0 {
		select {
		case <-time.After(s.sendDelay):
		case <-ctx.Done():
			return NewProbeError(Cancelled, "")
		}
	}
	payload := cmd + "\r"
	if s.appendLF {
		payload += "\n"
	}
	_, err := f.Write([]byte(payload))
	if err != nil {
		return NewProbeError(Generic, err.Error())
	}
	return nil
}

// ReadResponse reads from the port, feeding chunks to parser, until parser
// decides a response, a parse error, timeout elapses, or ctx is cancelled.
// If bufferFullThreshold bytes accumulate with no decision, it signals
// BufferFull and returns a ParseFailed error (the caller is expected to
// treat this identically to an explicit junk decision).
func (s *SerialPort) ReadResponse(ctx context.Context, parser ResponseParser, timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	f := s.file
	s.mu.Unlock()
	if f == nil {
		return nil, NewProbeError(Generic, "read on closed port")
	}
	deadline := time.Now().Add(timeout)
	if err := f.SetReadDeadline(deadline); err != nil {
		// Not every platform/fd combination supports deadlines; proceed
		// best-effort, relying on ctx for cancellation instead.
	}
	parser.Reset()
	buf := make([]byte, 512)
	var total int
	for {
		select {
		case <-ctx.Done():
			return nil, NewProbeError(Cancelled, "")
		default:
		}
		if time.Now().After(deadline) {
			return nil, NewProbeError(Timeout, "")
		}
		n, err := f.Read(buf)
		if n > 0 {
			total += n
			resp, done, parseErr := parser.Feed(buf[:n])
			if parseErr != nil {
				return nil, NewProbeError(ParseFailed, parseErr.Error())
			}
			if done {
				return resp, nil
			}
			if total >= bufferFullThreshold {
				select {
				case s.bufferFull <- struct{}{}:
				default:
				}
				return nil, NewProbeError(ParseFailed, "buffer full of undecoded bytes")
			}
		}
		if err != nil {
			if isTimeoutErr(err) {
				continue
			}
			return nil, NewProbeError(Generic, err.Error())
		}
	}
}

// SendQCDM writes a framed request and waits for a framed reply, returning
// the raw bytes for qcdmprobe.go to parse.
func (s *SerialPort) SendQCDM(ctx context.Context, req []byte, timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	f := s.file
	s.mu.Unlock()
	if f == nil {
		return nil, NewProbeError(Generic, "qcdm send on closed port")
	}
	if _, err := f.Write(req); err != nil {
		return nil, NewProbeError(Generic, err.Error())
	}
	return s.ReadResponse(ctx, &QCDMParser{}, timeout)
}

func isTimeoutErr(err error) bool {
	type timeout interface{ Timeout() bool }
	t, ok := err.(timeout)
	return ok && t.Timeout()
}
