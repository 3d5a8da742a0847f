package store

import (
	"bytes"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ids := [4]uint64{0, 1, 255, 1 << 40}
	for _, p := range Permutations {
		key := Encode(p, ids)
		got, err := Decode(p, key)
		require.NoError(t, err)
		require.Equal(t, ids, got)
	}
}

func TestEncodePreservesOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var tuples [][4]uint64
	for i := 0; i < 500; i++ {
		tuples = append(tuples, [4]uint64{
			rng.Uint64() >> rng.Intn(64),
			rng.Uint64() >> rng.Intn(64),
			rng.Uint64() >> rng.Intn(64),
			rng.Uint64() >> rng.Intn(64),
		})
	}

	byTuple := append([][4]uint64{}, tuples...)
	sort.Slice(byTuple, func(i, j int) bool { return tupleLess(byTuple[i], byTuple[j]) })

	byKey := append([][4]uint64{}, tuples...)
	sort.Slice(byKey, func(i, j int) bool {
		return bytes.Compare(Encode(SPOC, byKey[i]), Encode(SPOC, byKey[j])) < 0
	})

	require.Equal(t, byTuple, byKey)
}

func tupleLess(a, b [4]uint64) bool {
	for i := 0; i < 4; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func TestEncodePrefixIsPrefixOfFullKey(t *testing.T) {
	ids := [4]uint64{7, 12345, 0, 99}
	full := Encode(SPOC, ids)
	prefix := EncodePrefix(SPOC, []uint64{7, 12345})
	require.True(t, bytes.HasPrefix(full, prefix))
}

func TestDecodeRejectsWrongPermutation(t *testing.T) {
	key := Encode(SPOC, [4]uint64{1, 2, 3, 4})
	_, err := Decode(POCS, key)
	require.Error(t, err)
}

func TestOrderRoundTripsAcrossPermutations(t *testing.T) {
	spo := [4]uint64{1, 2, 3, 4}
	for _, p := range Permutations {
		ordered := p.Order(spo)
		dirs := p.Dirs()
		// reconstruct original [S,P,O,G] via the direction labels
		var back [4]uint64
		for i, d := range dirs {
			switch d {
			case 1: // quad.Subject
				back[0] = ordered[i]
			case 2: // quad.Predicate
				back[1] = ordered[i]
			case 3: // quad.Object
				back[2] = ordered[i]
			case 4: // quad.Graph
				back[3] = ordered[i]
			}
		}
		require.Equal(t, spo, back)
	}
}
