package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rc4"
	"crypto/sha1"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"io"
	"sort"
	"strings"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
)

// MinIVLen is the exclusive lower bound of a configured IV length.
const MinIVLen = 16

var (
	// ErrCipherNotSupported occurs when the method name is not in the registry.
	ErrCipherNotSupported = errors.New("cipher not supported")
	// ErrIVLength occurs when the configured IV is not longer than MinIVLen.
	ErrIVLength = fmt.Errorf("iv length must be greater than %d", MinIVLen)
)

const (
	rc4Md5       = "RC4-MD5"
	rc4Sha512    = "RC4-SHA512"
	aes128Cfb    = "AES-128-CFB"
	aes192Cfb    = "AES-192-CFB"
	aes256Cfb    = "AES-256-CFB"
	aes128Ctr    = "AES-128-CTR"
	aes192Ctr    = "AES-192-CTR"
	aes256Ctr    = "AES-256-CTR"
	chacha20IETF = "CHACHA20-IETF"
)

// streamCreateFunc builds one direction's keystream from the master key and
// that direction's IV.
type streamCreateFunc func(key, iv []byte, decrypt bool) (cipher.Stream, error)

// List of stream ciphers: master key size in bytes and constructor
var streamList = map[string]struct {
	KeySize int
	New     streamCreateFunc
}{
	rc4Md5:       {16, rc4Digest(md5.New)},
	rc4Sha512:    {16, rc4Digest(sha512.New)},
	aes128Cfb:    {16, aesCFB},
	aes192Cfb:    {24, aesCFB},
	aes256Cfb:    {32, aesCFB},
	aes128Ctr:    {16, aesCTR},
	aes192Ctr:    {24, aesCTR},
	aes256Ctr:    {32, aesCTR},
	chacha20IETF: {chacha20.KeySize, chacha20Stream},
}

// Methods lists the supported method names in lower case.
func Methods() []string {
	r := make([]string, 0, len(streamList))
	for k := range streamList {
		r = append(r, strings.ToLower(k))
	}
	sort.Strings(r)
	return r
}

// Cipher is a validated method/password/IV-length triple. It is immutable and
// shared by every session of a listener.
type Cipher struct {
	name    string
	key     []byte
	ivLen   int
	creator streamCreateFunc
}

// Pick returns the Cipher named by method with its master key derived from
// password. Unknown names and short IVs fail here, never at use.
func Pick(method, password string, ivLen int) (*Cipher, error) {
	if ivLen <= MinIVLen {
		return nil, ErrIVLength
	}
	name := strings.ToUpper(method)
	choice, ok := streamList[name]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrCipherNotSupported, method)
	}
	return &Cipher{
		name:    strings.ToLower(name),
		key:     kdf([]byte(password), choice.KeySize),
		ivLen:   ivLen,
		creator: choice.New,
	}, nil
}

func (c *Cipher) Name() string {
	return c.name
}

func (c *Cipher) IVLen() int {
	return c.ivLen
}

// key-derivation function from original Shadowsocks
func kdf(password []byte, keyLen int) []byte {
	var b, prev []byte
	h := md5.New()
	for len(b) < keyLen {
		h.Write(prev)
		h.Write(password)
		b = h.Sum(b)
		prev = b[len(b)-h.Size():]
		h.Reset()
	}
	return b[:keyLen]
}

func hkdfSHA1(secret, salt, info, outkey []byte) {
	r := hkdf.New(sha1.New, secret, salt, info)
	if _, err := io.ReadFull(r, outkey); err != nil {
		panic(err) // should never happen
	}
}

// subkey expands the master key and the IV into a cipher key followed by a
// cipher nonce of nonceSize bytes.
func subkey(key, iv []byte, nonceSize int) (k, nonce []byte) {
	out := make([]byte, len(key)+nonceSize)
	hkdfSHA1(key, iv, []byte("ss-subkey"), out)
	return out[:len(key)], out[len(key):]
}

func rc4Digest(h func() hash.Hash) streamCreateFunc {
	return func(key, iv []byte, _ bool) (cipher.Stream, error) {
		d := h()
		d.Write(key)
		d.Write(iv)
		return rc4.NewCipher(d.Sum(nil))
	}
}

func aesCFB(key, iv []byte, decrypt bool) (cipher.Stream, error) {
	k, nonce := subkey(key, iv, aes.BlockSize)
	blk, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	if decrypt {
		return cipher.NewCFBDecrypter(blk, nonce), nil
	}
	return cipher.NewCFBEncrypter(blk, nonce), nil
}

func aesCTR(key, iv []byte, _ bool) (cipher.Stream, error) {
	k, nonce := subkey(key, iv, aes.BlockSize)
	blk, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	return cipher.NewCTR(blk, nonce), nil
}

func chacha20Stream(key, iv []byte, _ bool) (cipher.Stream, error) {
	k, nonce := subkey(key, iv, chacha20.NonceSize)
	return chacha20.NewUnauthenticatedCipher(k, nonce)
}
