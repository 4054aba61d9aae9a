package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestRoundTripAllMethods(t *testing.T) {
	messages := [][]byte{
		[]byte("hello"),
		{},
		bytes.Repeat([]byte{0x5a}, 4096),
		[]byte("the end"),
	}

	for _, m := range Methods() {
		t.Run(m, func(t *testing.T) {
			sender, err := NewContext(m, "secret", 32)
			if err != nil {
				t.Fatalf("NewContext: %v", err)
			}
			receiver, err := NewContext(m, "secret", 32)
			if err != nil {
				t.Fatalf("NewContext: %v", err)
			}

			for i, msg := range messages {
				ct, err := sender.Encrypt(msg)
				if err != nil {
					t.Fatalf("Encrypt: %v", err)
				}
				if i == 0 && !bytes.Equal(ct[:32], sender.IV(DirEncrypt)) {
					t.Fatalf("stream does not start with the encrypt iv")
				}
				pt, err := receiver.Decrypt(ct)
				if err != nil {
					t.Fatalf("Decrypt: %v", err)
				}
				if !bytes.Equal(pt, msg) {
					t.Fatalf("message %d mismatch", i)
				}
			}
			if !bytes.Equal(sender.IV(DirEncrypt), receiver.IV(DirDecrypt)) {
				t.Fatalf("receiver did not adopt the sender iv")
			}
		})
	}
}

func TestEncryptPrependsIVOnce(t *testing.T) {
	iv := bytes.Repeat([]byte{7}, 20)
	c, err := NewContext("rc4-md5", "pw", 20, WithRand(bytes.NewReader(iv)))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	first, err := c.Encrypt([]byte("abc"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(first) != 23 || !bytes.Equal(first[:20], iv) {
		t.Fatalf("first output should be iv followed by 3 bytes, got %d bytes", len(first))
	}
	second, err := c.Encrypt([]byte("abc"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(second) != 3 {
		t.Fatalf("second output carries %d bytes, want 3", len(second))
	}
	if bytes.Equal(first[20:], second) {
		t.Fatalf("keystream restarted between calls")
	}
}

func TestSplitStreamDecrypt(t *testing.T) {
	sender, _ := NewContext("aes-256-cfb", "pw", 24)
	receiver, _ := NewContext("aes-256-cfb", "pw", 24)

	msg := []byte("a message split across several chunks")
	ct, err := sender.Encrypt(msg)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	var got []byte
	chunks := [][]byte{ct[:24], ct[24:30], ct[30:31], ct[31:]}
	for _, c := range chunks {
		pt, err := receiver.Decrypt(c)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		got = append(got, pt...)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("got %q, want %q", got, msg)
	}
}

func TestDecryptShortIV(t *testing.T) {
	c, _ := NewContext("rc4-md5", "pw", 32)
	if _, err := c.Decrypt(make([]byte, 31)); !errors.Is(err, ErrShortIV) {
		t.Fatalf("expected ErrShortIV, got %v", err)
	}
	if c.IV(DirDecrypt) != nil {
		t.Fatalf("failed decrypt must not set the iv")
	}
}

func TestPickValidation(t *testing.T) {
	if _, err := Pick("rc4-md5", "pw", 16); !errors.Is(err, ErrIVLength) {
		t.Fatalf("expected ErrIVLength, got %v", err)
	}
	if _, err := Pick("rot13", "pw", 32); !errors.Is(err, ErrCipherNotSupported) {
		t.Fatalf("expected ErrCipherNotSupported, got %v", err)
	}
	c, err := Pick("AES-128-CTR", "pw", 17)
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if c.Name() != "aes-128-ctr" || c.IVLen() != 17 {
		t.Fatalf("unexpected cipher %v/%v", c.Name(), c.IVLen())
	}
}

func TestWrongPasswordGarbles(t *testing.T) {
	sender, _ := NewContext("chacha20-ietf", "right", 32)
	receiver, _ := NewContext("chacha20-ietf", "wrong", 32)

	msg := []byte("attack at dawn")
	ct, _ := sender.Encrypt(msg)
	pt, err := receiver.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if bytes.Equal(pt, msg) {
		t.Fatalf("different passwords produced the same plaintext")
	}
}

func TestKdfLength(t *testing.T) {
	for _, n := range []int{16, 24, 32} {
		if k := kdf([]byte("pw"), n); len(k) != n {
			t.Fatalf("kdf returned %d bytes, want %d", len(k), n)
		}
	}
	if !bytes.Equal(kdf([]byte("pw"), 32)[:16], kdf([]byte("pw"), 16)) {
		t.Fatalf("kdf prefix is not stable")
	}
}
