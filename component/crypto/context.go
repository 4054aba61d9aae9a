package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// ErrShortIV occurs when the first ciphertext of a direction is shorter than
// the IV that must lead it.
var ErrShortIV = errors.New("ciphertext shorter than iv")

type Direction int

const (
	DirEncrypt Direction = iota
	DirDecrypt
)

func (d Direction) String() string {
	if d == DirDecrypt {
		return "decrypt"
	}
	return "encrypt"
}

type ContextOption func(c *Context)

// WithRand replaces the source of fresh IVs.
func WithRand(r io.Reader) ContextOption {
	return func(c *Context) {
		c.rand = r
	}
}

// Context holds the keystream state of both directions of one connection.
// Encrypt and Decrypt use disjoint state; each must be driven by a single
// goroutine.
type Context struct {
	cipher *Cipher
	rand   io.Reader

	encIV []byte
	enc   cipher.Stream
	decIV []byte
	dec   cipher.Stream
}

// NewContext picks the cipher and returns a fresh context for it.
func NewContext(method, password string, ivLen int, opts ...ContextOption) (*Context, error) {
	c, err := Pick(method, password, ivLen)
	if err != nil {
		return nil, err
	}
	return c.NewContext(opts...), nil
}

func (c *Cipher) NewContext(opts ...ContextOption) *Context {
	ctx := &Context{cipher: c, rand: rand.Reader}
	for _, opt := range opts {
		opt(ctx)
	}
	return ctx
}

// Encrypt returns the ciphertext of p. The first call also generates the
// encrypt IV and prepends it to the output.
func (c *Context) Encrypt(p []byte) ([]byte, error) {
	if c.enc != nil {
		out := make([]byte, len(p))
		c.enc.XORKeyStream(out, p)
		return out, nil
	}

	ivLen := c.cipher.ivLen
	out := make([]byte, ivLen+len(p))
	if _, err := io.ReadFull(c.rand, out[:ivLen]); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}
	stream, err := c.cipher.creator(c.cipher.key, out[:ivLen], false)
	if err != nil {
		return nil, fmt.Errorf("init %v encrypter: %w", c.cipher.name, err)
	}
	c.encIV = append([]byte(nil), out[:ivLen]...)
	c.enc = stream
	c.enc.XORKeyStream(out[ivLen:], p)
	return out, nil
}

// Decrypt returns the plaintext of b. The first call consumes the peer's IV
// from the head of b.
func (c *Context) Decrypt(b []byte) ([]byte, error) {
	if c.dec == nil {
		ivLen := c.cipher.ivLen
		if len(b) < ivLen {
			return nil, ErrShortIV
		}
		stream, err := c.cipher.creator(c.cipher.key, b[:ivLen], true)
		if err != nil {
			return nil, fmt.Errorf("init %v decrypter: %w", c.cipher.name, err)
		}
		c.decIV = append([]byte(nil), b[:ivLen]...)
		c.dec = stream
		b = b[ivLen:]
	}
	out := make([]byte, len(b))
	c.dec.XORKeyStream(out, b)
	return out, nil
}

// IV returns the IV of direction d, nil until that direction has started.
func (c *Context) IV(d Direction) []byte {
	if d == DirDecrypt {
		return c.decIV
	}
	return c.encIV
}
