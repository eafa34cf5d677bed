// Package secret holds values the backend hands out exactly once: a freshly
// generated mnemonic and a new API key secret. The bytes live in locked memory
// and are zeroed as soon as they have been shown.
package secret

import (
	"runtime"
	"strings"
	"sync"

	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// ErrConsumed is returned when a one-shot value is read a second time.
var ErrConsumed = qwerr.New("SECRET_CONSUMED", "secret already revealed")

const redacted = "[REDACTED]"

// buffer is a locked, zero-on-destroy byte slice.
type buffer struct {
	data   []byte
	locked bool
}

func newBuffer(src []byte) *buffer {
	b := &buffer{data: make([]byte, len(src))}
	b.locked = mlock(b.data)
	copy(b.data, src)
	return b
}

func (b *buffer) destroy() {
	if b == nil || b.data == nil {
		return
	}
	for i := range b.data {
		b.data[i] = 0
	}
	if b.locked {
		munlock(b.data)
		b.locked = false
	}
	b.data = nil
}

// Value is a one-shot secret. Reveal returns it once and destroys the backing memory.
type Value struct {
	mu       sync.Mutex
	buf      *buffer
	words    int
	revealed bool
}

// New copies s into locked memory.
func New(s string) *Value {
	v := &Value{
		buf:   newBuffer([]byte(s)),
		words: len(strings.Fields(s)),
	}

	// Zero the memory even if the caller never reveals or destroys it
	runtime.SetFinalizer(v, func(v *Value) { v.Destroy() })
	return v
}

// Reveal returns the secret and destroys it. Later calls return ErrConsumed.
func (v *Value) Reveal() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.revealed || v.buf == nil || v.buf.data == nil {
		return "", ErrConsumed
	}

	s := string(v.buf.data)
	v.revealed = true
	v.buf.destroy()
	v.buf = nil
	runtime.SetFinalizer(v, nil)
	return s, nil
}

// Use passes the secret bytes to fn without revealing it; the value stays available.
// The slice must not be retained after fn returns.
func (v *Value) Use(fn func([]byte)) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.revealed || v.buf == nil || v.buf.data == nil {
		return ErrConsumed
	}
	fn(v.buf.data)
	return nil
}

// Revealed reports whether the secret has already been shown.
func (v *Value) Revealed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.revealed
}

// Words returns the number of whitespace-separated words in the secret.
func (v *Value) Words() int {
	return v.words
}

// Locked reports whether the backing memory is pinned.
func (v *Value) Locked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.buf != nil && v.buf.locked
}

// Destroy zeros the secret without revealing it. Safe to call multiple times.
func (v *Value) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.buf.destroy()
	v.buf = nil
	v.revealed = true
}

// String never prints the secret.
func (v *Value) String() string {
	return redacted
}

// MarshalJSON never encodes the secret.
func (v *Value) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}
