package driver

// PipeDriver is an in-memory Driver used by tests to inject and capture
// frames deterministically, without a real TAP device. Sent frames are
// appended to Sent; Inject makes a frame available to the next Recv.
type PipeDriver struct {
	Sent  [][]byte
	inbox [][]byte
}

// NewPipeDriver returns an empty PipeDriver.
func NewPipeDriver() *PipeDriver { return &PipeDriver{} }

func (p *PipeDriver) Open() error  { return nil }
func (p *PipeDriver) Close() error { return nil }

// Send records frame in Sent.
func (p *PipeDriver) Send(frame []byte) (int, error) {
	p.Sent = append(p.Sent, append([]byte(nil), frame...))
	return len(frame), nil
}

// Recv returns the oldest injected frame not yet delivered, or (0, nil)
// if none is queued.
func (p *PipeDriver) Recv(buf []byte) (int, error) {
	if len(p.inbox) == 0 {
		return 0, nil
	}
	frame := p.inbox[0]
	p.inbox = p.inbox[1:]
	return copy(buf, frame), nil
}

// Inject queues frame to be returned by a future Recv call.
func (p *PipeDriver) Inject(frame []byte) {
	p.inbox = append(p.inbox, append([]byte(nil), frame...))
}
