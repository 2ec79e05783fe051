// Package vectors reads, writes and generates AES-128 reference vectors.
//
// File format, one vector per line, hex without prefixes:
//
//	<key: 32 hex> <plaintext: 32 hex> <ciphertext: 32 hex>
//
// Blank lines and lines starting with '#' are skipped. The first vector of a generated
// file is always the FIPS-197 Appendix C.1 known answer.
package vectors

import (
	"bufio"
	"crypto/aes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/maemowong/suprax-aes/proto/aescore"
	hex "github.com/tmthrgd/go-hex"
)

var (
	// ErrBadHex is returned for a field that is not exactly 32 hex digits.
	ErrBadHex = errors.New("field is not a 128-bit hex value")

	// ErrFieldCount is returned for a line without exactly three fields.
	ErrFieldCount = errors.New("expected key, plaintext and ciphertext")
)

// Vector is one known-answer triple.
type Vector struct {
	Key       aescore.Block
	Plaintext aescore.Block
	Expected  aescore.Block
}

// KnownAnswer is FIPS-197 Appendix C.1.
var KnownAnswer = Vector{
	Key:       aescore.Block{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f},
	Plaintext: aescore.Block{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
	Expected:  aescore.Block{0x69, 0xc4, 0xe0, 0xd8, 0x6a, 0x7b, 0x04, 0x30, 0xd8, 0xcd, 0xb7, 0x80, 0x70, 0xb4, 0xc5, 0x5a},
}

// String formats the vector as one file line.
func (v Vector) String() string {
	var buf [3*2*aes.BlockSize + 2]byte
	hex.Encode(buf[0:32], v.Key[:])
	buf[32] = ' '
	hex.Encode(buf[33:65], v.Plaintext[:])
	buf[65] = ' '
	hex.Encode(buf[66:98], v.Expected[:])
	return string(buf[:])
}

// ParseBlock decodes a 32-digit hex string.
func ParseBlock(s string) (aescore.Block, error) {
	var b aescore.Block
	if len(s) != 2*len(b) {
		return b, fmt.Errorf("%q: %w", s, ErrBadHex)
	}
	if _, err := hex.Decode(b[:], []byte(s)); err != nil {
		return b, fmt.Errorf("%q: %w", s, ErrBadHex)
	}
	return b, nil
}

// ParseLine decodes one vector line.
func ParseLine(line string) (Vector, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Vector{}, fmt.Errorf("%d fields: %w", len(fields), ErrFieldCount)
	}

	var (
		v   Vector
		err error
	)
	if v.Key, err = ParseBlock(fields[0]); err != nil {
		return Vector{}, fmt.Errorf("key: %w", err)
	}
	if v.Plaintext, err = ParseBlock(fields[1]); err != nil {
		return Vector{}, fmt.Errorf("plaintext: %w", err)
	}
	if v.Expected, err = ParseBlock(fields[2]); err != nil {
		return Vector{}, fmt.Errorf("ciphertext: %w", err)
	}
	return v, nil
}

// Parse reads every vector from r.
func Parse(r io.Reader) ([]Vector, error) {
	var out []Vector

	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("unable to read vectors: %w", err)
	}
	return out, nil
}

// Write emits vectors in the file format, one per line.
func Write(w io.Writer, vs []Vector) error {
	bw := bufio.NewWriter(w)
	for _, v := range vs {
		if _, err := bw.WriteString(v.String()); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Reference computes the expected ciphertext with the standard library, which is the
// trusted software implementation the engine is checked against.
func Reference(key, plaintext aescore.Block) aescore.Block {
	c, err := aes.NewCipher(key[:])
	if err != nil {
		// 16-byte keys are always valid
		panic(err)
	}
	var out aescore.Block
	c.Encrypt(out[:], plaintext[:])
	return out
}

// Generate returns n vectors: the known answer first, then n-1 random key/plaintext
// pairs drawn from rand with their reference ciphertexts.
func Generate(n int, rand io.Reader) ([]Vector, error) {
	if n <= 0 {
		return nil, nil
	}

	out := make([]Vector, 0, n)
	out = append(out, Vector{
		Key:       KnownAnswer.Key,
		Plaintext: KnownAnswer.Plaintext,
		Expected:  Reference(KnownAnswer.Key, KnownAnswer.Plaintext),
	})

	for len(out) < n {
		var v Vector
		if _, err := io.ReadFull(rand, v.Key[:]); err != nil {
			return nil, fmt.Errorf("unable to draw key: %w", err)
		}
		if _, err := io.ReadFull(rand, v.Plaintext[:]); err != nil {
			return nil, fmt.Errorf("unable to draw plaintext: %w", err)
		}
		v.Expected = Reference(v.Key, v.Plaintext)
		out = append(out, v)
	}
	return out, nil
}
