// Package terminal puts the controlling terminal into raw mode and exposes it as a non-blocking
// character source.
package terminal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Keyboard reads single bytes from a terminal without waiting for Enter.
type Keyboard struct {
	keys   chan byte
	file   *os.File
	state  *term.State
	closed chan struct{}
	once   sync.Once
}

// Open switches f to raw mode and starts reading from it. Close restores the previous mode.
func Open(f *os.File) (*Keyboard, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%s is not a terminal", f.Name())
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to enable raw mode: %w", err)
	}

	k := newKeyboard(f)
	k.file = f
	k.state = state
	return k, nil
}

// NewReader builds a Keyboard over any reader, leaving terminal modes alone.
func NewReader(r io.Reader) *Keyboard {
	return newKeyboard(r)
}

func newKeyboard(r io.Reader) *Keyboard {
	k := &Keyboard{
		keys:   make(chan byte, 64),
		closed: make(chan struct{}),
	}
	go k.pump(r)
	return k
}

func (k *Keyboard) pump(r io.Reader) {
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 1 {
			select {
			case k.keys <- buf[0]:
			case <-k.closed:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// HasInput reports whether a key is waiting.
func (k *Keyboard) HasInput() bool {
	return len(k.keys) > 0
}

// ReadChar returns the next key, blocking until one arrives or the keyboard is closed.
// It returns 0 once closed.
func (k *Keyboard) ReadChar() byte {
	select {
	case b := <-k.keys:
		return b
	case <-k.closed:
		return 0
	}
}

// Close restores the terminal mode. The reader goroutine exits on the next key or at
// process exit.
func (k *Keyboard) Close() error {
	var err error
	k.once.Do(func() {
		close(k.closed)
		if k.state != nil {
			err = term.Restore(int(k.file.Fd()), k.state)
		}
	})
	return err
}
