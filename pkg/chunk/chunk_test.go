package chunk

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumDeterministic(t *testing.T) {
	data := []byte("the same bytes every time")
	assert.Equal(t, Sum(data), Sum(data))
}

func TestSumDistinguishesContent(t *testing.T) {
	a := Sum([]byte("content a"))
	b := Sum([]byte("content b"))
	assert.NotEqual(t, a, b)
}

func TestSumEmptyInput(t *testing.T) {
	// The empty chunk still has a stable identity.
	assert.Equal(t, Sum(nil), Sum([]byte{}))
}

func TestDigestString(t *testing.T) {
	d := Digest{0x00, 0x01, 0xab, 0xcd}
	s := d.String()
	assert.Len(t, s, DigestSize*2)
	assert.Equal(t, "0001abcd", s[:8])
}

func TestStoreInsertDeduplicates(t *testing.T) {
	store := NewStore()
	data := []byte("hello world")

	d1, payload1 := store.Insert(data)
	require.NotNil(t, payload1, "first insert must carry the compressed payload")

	d2, payload2 := store.Insert(data)
	assert.Equal(t, d1, d2)
	assert.Nil(t, payload2, "duplicate insert must not re-emit the chunk")

	assert.Equal(t, uint64(1), store.Len())
}

func TestStoreInsertDistinctChunks(t *testing.T) {
	store := NewStore()

	_, p1 := store.Insert([]byte("first"))
	_, p2 := store.Insert([]byte("second"))

	assert.NotNil(t, p1)
	assert.NotNil(t, p2)
	assert.Equal(t, uint64(2), store.Len())
}

func TestStoreInsertConcurrentAtMostOnce(t *testing.T) {
	store := NewStore()
	data := bytes.Repeat([]byte("race"), 4096)

	const goroutines = 64
	payloads := make([][]byte, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, payloads[i] = store.Insert(data)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, p := range payloads {
		if p != nil {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one racing insert may win the chunk")
	assert.Equal(t, uint64(1), store.Len())
}
