package checksum

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum_StandardVector(t *testing.T) {
	assert.Equal(t, uint32(0xCBF43926), Sum([]byte("123456789")))
}

func TestSum_Empty(t *testing.T) {
	assert.Equal(t, uint32(0), Sum(nil))
}

func TestSum_ReferenceAndFastPathAgree(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for _, n := range []int{0, 1, 3, 7, 8, 9, 15, 16, 17, 1000, 8193} {
		data := make([]byte, n)
		rnd.Read(data)

		ref := sumReference(data)
		fast := sumSlicingBy8(data)
		assert.Equal(t, ref, fast, "mismatch for length %d", n)
	}
}

func TestSum_DispatchesToFastPathWhenAvailable(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	assert.Equal(t, sumReference(data), Sum(data))
}
