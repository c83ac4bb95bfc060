package dashboard

import (
	"io"
	"os"
	"time"

	"codeberg.org/mutker/nvfanmon/internal/errors"
	"golang.org/x/term"
)

const ctrlC = 3

// Keyboard watches stdin for the quit key. When stdin is a terminal it is put
// in raw mode so single key presses arrive without Enter; Ctrl-C then arrives
// as a byte rather than a signal and also quits.
type Keyboard struct {
	fd    int
	state *term.State
	keys  chan byte
}

func NewKeyboard(in *os.File) (*Keyboard, error) {
	fd := int(in.Fd())

	var state *term.State
	if term.IsTerminal(fd) {
		var err error
		if state, err = term.MakeRaw(fd); err != nil {
			return nil, errors.New().Wrap(errors.ErrInitFailed, err)
		}
	}

	k := newKeyboard(in)
	k.fd = fd
	k.state = state

	return k, nil
}

func newKeyboard(in io.Reader) *Keyboard {
	keys := make(chan byte, 16)
	k := &Keyboard{keys: keys}

	go func() {
		defer close(keys)

		var b [1]byte
		for {
			n, err := in.Read(b[:])
			if n > 0 {
				keys <- b[0]
			}
			if err != nil {
				return
			}
		}
	}()

	return k
}

// Raw reports whether the terminal is in raw mode.
func (k *Keyboard) Raw() bool {
	return k.state != nil
}

// Poll waits up to wait for a quit key. Other keys are ignored.
func (k *Keyboard) Poll(wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case b, ok := <-k.keys:
			if !ok {
				// stdin closed; only the timer is left.
				k.keys = nil
				continue
			}
			if isQuit(b) {
				return true
			}
		case <-timer.C:
			return false
		}
	}
}

func isQuit(b byte) bool {
	return b == 'q' || b == 'Q' || b == ctrlC
}

// Close restores the terminal state.
func (k *Keyboard) Close() error {
	if k.state == nil {
		return nil
	}

	if err := term.Restore(k.fd, k.state); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}
