package irc

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
)

const chanCapacity = 64

// Outbox is the queue of lines waiting to be written to the connection.  It
// is safe for concurrent use.
type Outbox struct {
	l       sync.Mutex
	queue   []string
	pending map[string]int // number of queued copies of each line.
	wake    chan struct{}
	closed  bool

	// OnSend, if set, is called with every line written.
	OnSend func(line string)
}

func NewOutbox() *Outbox {
	return &Outbox{
		pending: map[string]int{},
		wake:    make(chan struct{}, 1),
	}
}

func (o *Outbox) push(line string, unique bool) {
	o.l.Lock()
	defer o.l.Unlock()
	if o.closed {
		return
	}
	if unique && o.pending[line] != 0 {
		return
	}
	o.queue = append(o.queue, line)
	o.pending[line]++
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Send queues a message.
func (o *Outbox) Send(msg Message) {
	o.push(msg.String(), false)
}

// SendUnique queues a raw line, unless the same line is already queued.  It
// never blocks.
func (o *Outbox) SendUnique(line string) {
	o.push(line, true)
}

// Pending returns the lines not written yet.
func (o *Outbox) Pending() []string {
	o.l.Lock()
	defer o.l.Unlock()
	return append([]string(nil), o.queue...)
}

// Close drops queued lines and makes Run return.
func (o *Outbox) Close() {
	o.l.Lock()
	defer o.l.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.queue = nil
	close(o.wake)
}

func (o *Outbox) next() (line string, ok bool) {
	o.l.Lock()
	defer o.l.Unlock()
	if len(o.queue) == 0 {
		return "", false
	}
	line = o.queue[0]
	o.queue = o.queue[1:]
	if o.pending[line]--; o.pending[line] == 0 {
		delete(o.pending, line)
	}
	return line, true
}

// Run writes queued lines to w until the outbox is closed or a write fails.
func (o *Outbox) Run(w io.Writer) error {
	for range o.wake {
		for {
			line, ok := o.next()
			if !ok {
				break
			}
			if _, err := fmt.Fprintf(w, "%s\r\n", line); err != nil {
				return err
			}
			if o.OnSend != nil {
				o.OnSend(line)
			}
		}
	}
	return nil
}

// ChanInOut reads messages from conn into in, and writes the lines queued in
// out to conn.  in is closed when the connection is; closing out closes the
// connection.  logger may be nil.
func ChanInOut(conn net.Conn, logger *slog.Logger) (in <-chan Message, out *Outbox) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	in_ := make(chan Message, chanCapacity)
	out = NewOutbox()

	go func() {
		r := bufio.NewScanner(conn)
		for r.Scan() {
			line := r.Text()
			msg, err := ParseMessage(line)
			if err != nil {
				logger.Debug("ignoring malformed line", "line", line, "err", err)
				continue
			}
			in_ <- msg
		}
		if err := r.Err(); err != nil {
			logger.Debug("connection read failed", "err", err)
		}
		close(in_)
		out.Close()
	}()

	go func() {
		if err := out.Run(conn); err != nil {
			logger.Debug("connection write failed", "err", err)
		}
		_ = conn.Close()
	}()

	return in_, out
}
