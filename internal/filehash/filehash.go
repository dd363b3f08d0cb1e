// Package filehash computes and encodes the content-based file identity
// used to name sidecars and detect duplicate content.
package filehash

import (
	"encoding/base32"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// prefixSize is the number of leading bytes hashed to derive a FileHash.
// Hashing a fixed prefix instead of the whole file keeps scanning large
// video libraries fast; the core accepts the resulting (remote) collision
// risk per its design notes.
const prefixSize = 65536

// crockford is the Crockford base32 alphabet: no I, L, O, U, to avoid
// visual confusion with 1, 1, 0, and V.
const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var encoding = base32.NewEncoding(crockford).WithPadding(base32.NoPadding)

// Hash is a 64-bit content identity derived from the first prefixSize bytes
// of a file (or all of its bytes, if shorter).
type Hash uint64

// Of reads up to prefixSize bytes from r and returns their hash.
func Of(r io.Reader) (Hash, error) {
	h := xxhash.New()
	if _, err := io.CopyN(h, r, prefixSize); err != nil && err != io.EOF {
		return 0, fmt.Errorf("filehash: read: %w", err)
	}
	return Hash(h.Sum64()), nil
}

// OfFile opens path and hashes its leading prefixSize bytes.
func OfFile(path string) (Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("filehash: open %s: %w", path, err)
	}
	defer f.Close()
	return Of(f)
}

// String encodes h as an uppercase, unpadded Crockford base32 string.
func (h Hash) String() string {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(h >> (56 - 8*i))
	}
	return encoding.EncodeToString(buf[:])
}

// Parse decodes a Crockford base32 string (case-insensitive) back into a
// Hash.
func Parse(s string) (Hash, error) {
	buf, err := encoding.DecodeString(strings.ToUpper(s))
	if err != nil {
		return 0, fmt.Errorf("filehash: decode %q: %w", s, err)
	}
	if len(buf) != 8 {
		return 0, fmt.Errorf("filehash: decoded %q to %d bytes, want 8", s, len(buf))
	}
	var h uint64
	for _, b := range buf {
		h = h<<8 | uint64(b)
	}
	return Hash(h), nil
}
