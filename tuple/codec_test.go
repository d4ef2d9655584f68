package tuple

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRoundTripScalars(t *testing.T) {
	cases := []Element{
		Null(),
		Bool(true),
		Bool(false),
		Int(0),
		Int(1),
		Int(-1),
		Int(math.MaxInt64),
		Int(math.MinInt64),
		Float(0),
		Float(-0.0),
		Float(3.14159),
		Float(-3.14159),
		Bytes([]byte{0x00, 0x01, 0xFF, 0x00}),
		String("hello\x00world"),
		String(""),
		UUID(uuid.New()),
		VS(Versionstamp{TransactionVersion: [10]byte{1, 2, 3}, UserVersion: 7}),
		Nested(Tuple{Int(1), String("x"), Nested(Tuple{Bool(true)})}),
	}
	for _, e := range cases {
		encoded := Encode(Tuple{e})
		decoded, err := Decode(encoded)
		require.NoError(t, err)
		require.Len(t, decoded, 1)
		require.Equal(t, e, decoded[0])
	}
}

func TestIntOrderPreserving(t *testing.T) {
	values := []int64{math.MinInt64, -1 << 40, -1000, -1, 0, 1, 1000, 1 << 40, math.MaxInt64}
	rand.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })
	sorted := append([]int64{}, values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	encoded := make([][]byte, len(values))
	for i, v := range values {
		encoded[i] = Encode(Tuple{Int(v)})
	}
	sort.Slice(encoded, func(i, j int) bool { return string(encoded[i]) < string(encoded[j]) })

	for i, enc := range encoded {
		decoded, err := Decode(enc)
		require.NoError(t, err)
		require.Equal(t, sorted[i], decoded[0].Int)
	}
}

func TestFloatOrderPreserving(t *testing.T) {
	values := []float64{math.Inf(-1), -1e300, -1.5, -0.0001, 0, 0.0001, 1.5, 1e300, math.Inf(1)}
	encoded := make([][]byte, len(values))
	for i, v := range values {
		encoded[i] = Encode(Tuple{Float(v)})
	}
	for i := 0; i < len(encoded)-1; i++ {
		require.True(t, string(encoded[i]) < string(encoded[i+1]), "expected %v < %v", values[i], values[i+1])
	}
}

func TestNegativeZeroBelowPositiveZero(t *testing.T) {
	neg := Encode(Tuple{Float(math.Copysign(0, -1))})
	pos := Encode(Tuple{Float(0)})
	require.True(t, string(neg) < string(pos))
}

func TestStringOrderPreserving(t *testing.T) {
	values := []string{"", "a", "aa", "ab", "b", "ba"}
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			a := Encode(Tuple{String(values[i])})
			b := Encode(Tuple{String(values[j])})
			require.True(t, string(a) < string(b), "%q should sort before %q", values[i], values[j])
		}
	}
}

func TestDecodeForeignBytesFails(t *testing.T) {
	_, err := Decode([]byte{0xAA, 0xBB, 0xCC})
	require.Error(t, err)
}

func TestSubspacePackUnpack(t *testing.T) {
	root := NewSubspace([]byte("root"))
	sub := root.Sub(Tuple{String("users")})
	key := sub.Pack(Tuple{Int(42)})
	require.True(t, sub.Contains(key))
	decoded, err := sub.Unpack(key)
	require.NoError(t, err)
	require.Equal(t, Tuple{Int(42)}, decoded)
}

func TestSubspaceRange(t *testing.T) {
	root := NewSubspace([]byte{0x01})
	begin, end := root.Range()
	require.Equal(t, []byte{0x01}, begin)
	require.Equal(t, []byte{0x01, 0xFF}, end)
}
