package driver

import (
	"io"
	"sync"

	"github.com/songgao/water"
)

// TAP drives a host TAP device through github.com/songgao/water. A TAP
// device's Read blocks at the OS level, so Recv is backed by a background
// goroutine draining reads into a single-slot channel; Recv itself never
// blocks, polling that channel instead. This keeps Stack.Poll
// non-blocking and single-threaded even though the kernel-facing read is
// not.
type TAP struct {
	name string

	mu      sync.Mutex
	iface   *water.Interface
	frames  chan []byte
	readErr chan error
	closeCh chan struct{}
}

// NewTAP returns a TAP driver for the named device (empty for an
// OS-assigned name).
func NewTAP(name string) *TAP {
	return &TAP{name: name}
}

// Open creates the TAP device and starts the background reader.
func (t *TAP) Open() error {
	iface, err := water.New(water.Config{
		DeviceType: water.TAP,
		PlatformSpecificParams: water.PlatformSpecificParams{
			Name: t.name,
		},
	})
	if err != nil {
		return err
	}
	t.iface = iface
	t.frames = make(chan []byte, 1)
	t.readErr = make(chan error, 1)
	t.closeCh = make(chan struct{})
	go t.readLoop()
	return nil
}

func (t *TAP) readLoop() {
	buf := make([]byte, 65536)
	for {
		n, err := t.iface.Read(buf)
		if err != nil {
			if err != io.EOF {
				select {
				case t.readErr <- err:
				default:
				}
			}
			return
		}
		frame := append([]byte(nil), buf[:n]...)
		select {
		case t.frames <- frame:
		case <-t.closeCh:
			return
		}
	}
}

// Close tears down the background reader and the TAP device.
func (t *TAP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closeCh != nil {
		close(t.closeCh)
	}
	if t.iface == nil {
		return nil
	}
	return t.iface.Close()
}

// Send writes frame to the TAP device.
func (t *TAP) Send(frame []byte) (int, error) {
	return t.iface.Write(frame)
}

// Recv returns the next buffered frame, if one has arrived, copying it
// into buf. It never blocks: (0, nil) means no frame is available yet.
func (t *TAP) Recv(buf []byte) (int, error) {
	select {
	case err := <-t.readErr:
		return 0, err
	case frame := <-t.frames:
		return copy(buf, frame), nil
	default:
		return 0, nil
	}
}
