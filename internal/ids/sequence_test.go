package ids

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequenceStartsAt100(t *testing.T) {
	s := NewSequence()
	require.Equal(t, "00000064", s.NextHex())
	require.Equal(t, "101", s.NextDecimal())
}

func TestSequenceWrapsOnOverflow(t *testing.T) {
	s := &Sequence{next: math.MaxUint32}
	require.Equal(t, uint32(math.MaxUint32), s.Next())
	require.Equal(t, uint32(startSeq), s.Next())
}
