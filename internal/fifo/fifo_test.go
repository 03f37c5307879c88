package fifo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteReadRoundTrip(t *testing.T) {
	f := NewFifo(16)
	n := f.Write([]byte{1, 2, 3, 4, 5})
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, f.Occupied())

	out := make([]byte, 5)
	n = f.Read(out)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, out)
	assert.Equal(t, 0, f.Occupied())
}

func TestFullFifoRejectsWrites(t *testing.T) {
	f := NewFifo(8)
	n := f.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	// One slot stays free to disambiguate full from empty.
	assert.Equal(t, 7, n)
	assert.Equal(t, 0, f.Space())
	assert.Equal(t, 0, f.Write([]byte{11}))
}

func TestWrapAround(t *testing.T) {
	f := NewFifo(8)
	tmp := make([]byte, 4)
	for i := 0; i < 10; i++ {
		in := []byte{byte(i), byte(i + 1), byte(i + 2), byte(i + 3)}
		assert.Equal(t, 4, f.Write(in))
		assert.Equal(t, 4, f.Read(tmp))
		assert.Equal(t, in, tmp)
	}
}

func TestResetDiscards(t *testing.T) {
	f := NewFifo(8)
	f.Write([]byte{1, 2, 3})
	f.Reset()
	assert.Equal(t, 0, f.Occupied())
	assert.Equal(t, 0, f.Read(make([]byte, 3)))
}
