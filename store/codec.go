package store

import (
	"encoding/binary"
	"fmt"

	"github.com/knowgraph/qdb/quad"
)

// Permutation names one of the four orderings of a quad's four dictionary
// IDs that the store keeps a sorted index over.
type Permutation byte

const (
	SPOC Permutation = iota
	POCS
	OCSP
	CSPO
)

func (p Permutation) String() string {
	switch p {
	case SPOC:
		return "SPOC"
	case POCS:
		return "POCS"
	case OCSP:
		return "OCSP"
	case CSPO:
		return "CSPO"
	default:
		return fmt.Sprintf("Permutation(%d)", byte(p))
	}
}

// tag is the single-byte permutation prefix prepended to every index key so
// that the four indexes can share one flat keyspace. Every backend in this
// module (memstore, sqlstore, badgerstore, and boltstore's single bucket)
// stores the tagged keys as they are.
func (p Permutation) tag() byte { return byte(p) + 1 }

// Dirs returns the four quad directions in the order this permutation
// stores them.
func (p Permutation) Dirs() [4]quad.Direction {
	switch p {
	case SPOC:
		return [4]quad.Direction{quad.Subject, quad.Predicate, quad.Object, quad.Graph}
	case POCS:
		return [4]quad.Direction{quad.Predicate, quad.Object, quad.Graph, quad.Subject}
	case OCSP:
		return [4]quad.Direction{quad.Object, quad.Graph, quad.Subject, quad.Predicate}
	case CSPO:
		return [4]quad.Direction{quad.Graph, quad.Subject, quad.Predicate, quad.Object}
	default:
		panic(p.String())
	}
}

// Permutations lists all four index orderings.
var Permutations = [4]Permutation{SPOC, POCS, OCSP, CSPO}

// Order rearranges a quad's four dictionary IDs, given in S,P,O,G order,
// into this permutation's order.
func (p Permutation) Order(ids [4]uint64 /* S,P,O,G */) [4]uint64 {
	switch p {
	case SPOC:
		return [4]uint64{ids[0], ids[1], ids[2], ids[3]}
	case POCS:
		return [4]uint64{ids[1], ids[2], ids[3], ids[0]}
	case OCSP:
		return [4]uint64{ids[2], ids[3], ids[0], ids[1]}
	case CSPO:
		return [4]uint64{ids[3], ids[0], ids[1], ids[2]}
	default:
		panic(p.String())
	}
}

// encodeUint64 writes v as an order-preserving variable-length encoding:
// one header byte holding the number of significant big-endian bytes that
// follow (0 for v == 0), then those bytes themselves with no leading zero
// byte. Two encodings compare byte-lexicographically in the same order as
// the values they encode, because a shorter minimal representation only
// ever arises from a smaller value, and among equal lengths big-endian
// byte order already matches numeric order.
func encodeUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	n := 0
	for n < 8 && tmp[n] == 0 {
		n++
	}
	size := 8 - n
	buf = append(buf, byte(size))
	return append(buf, tmp[n:]...)
}

// decodeUint64 reads a value written by encodeUint64, returning the value
// and the number of bytes consumed.
func decodeUint64(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("store: truncated key: missing length header")
	}
	size := int(b[0])
	if size > 8 || len(b) < 1+size {
		return 0, 0, fmt.Errorf("store: truncated key: need %d bytes, have %d", size, len(b)-1)
	}
	var tmp [8]byte
	copy(tmp[8-size:], b[1:1+size])
	return binary.BigEndian.Uint64(tmp[:]), 1 + size, nil
}

// Encode builds a full, existence-only index key for a complete 4-tuple of
// dictionary IDs under permutation p.
func Encode(p Permutation, ids [4]uint64) []byte {
	key := make([]byte, 0, 1+4*9)
	key = append(key, p.tag())
	for _, id := range ids {
		key = encodeUint64(key, id)
	}
	return key
}

// EncodePrefix builds a scan prefix over the leading len(bound) positions
// of permutation p. len(bound) must be 0..4; 0 yields the bare permutation
// tag (a full-index scan), 4 is equivalent to Encode.
func EncodePrefix(p Permutation, bound []uint64) []byte {
	if len(bound) > 4 {
		panic("store: EncodePrefix: too many bound positions")
	}
	key := make([]byte, 0, 1+len(bound)*9)
	key = append(key, p.tag())
	for _, id := range bound {
		key = encodeUint64(key, id)
	}
	return key
}

// Decode parses a full index key back into its 4-tuple of dictionary IDs.
func Decode(p Permutation, key []byte) ([4]uint64, error) {
	var out [4]uint64
	if len(key) < 1 || key[0] != p.tag() {
		return out, fmt.Errorf("store: decode: key does not belong to permutation %s", p)
	}
	rest := key[1:]
	for i := 0; i < 4; i++ {
		v, n, err := decodeUint64(rest)
		if err != nil {
			return out, fmt.Errorf("store: decode: position %d: %w", i, err)
		}
		out[i] = v
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return out, fmt.Errorf("store: decode: %d trailing bytes", len(rest))
	}
	return out, nil
}
