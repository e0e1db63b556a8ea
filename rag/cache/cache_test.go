package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/smallnest/crag/rag"
	"github.com/smallnest/crag/store"
	"github.com/smallnest/crag/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"
)

// countingEmbedder embeds a text as [len(text), first byte].
type countingEmbedder struct {
	mu    sync.Mutex
	calls [][]string
	err   error
	empty bool
}

func (e *countingEmbedder) vector(text string) []float32 {
	if e.empty {
		return nil
	}
	first := float32(0)
	if len(text) > 0 {
		first = float32(text[0])
	}
	return []float32{float32(len(text)), first}
}

func (e *countingEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, append([]string(nil), texts...))
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *countingEmbedder) texts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		n += len(c)
	}
	return n
}

func TestKey(t *testing.T) {
	k1 := Key("text-embedding-3-small", "hello")
	assert.Equal(t, k1, Key("text-embedding-3-small", "hello"))
	assert.True(t, strings.HasPrefix(k1, "text-embedding-3-small"))
	assert.Len(t, k1, len("text-embedding-3-small")+36)

	assert.NotEqual(t, k1, Key("text-embedding-3-small", "hello "))
	assert.NotEqual(t, k1, Key("text-embedding-3-large", "hello"))
}

func TestVectorCodec(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3.4028235e38}
	b := EncodeVector(v)
	assert.Len(t, b, 16)
	assert.Equal(t, []byte{0x00, 0x00, 0xc0, 0x3f}, b[4:8], "little-endian float32")

	got, err := DecodeVector(b)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)

	empty, err := DecodeVector([]byte{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCacheBackedEmbedder_SameTextOnce(t *testing.T) {
	ctx := context.Background()
	under := &countingEmbedder{}
	c := NewCacheBackedEmbedder(under, memory.New(), "model-a")

	v1, err := c.EmbedDocument(ctx, "hello")
	require.NoError(t, err)
	v2, err := c.EmbedDocument(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, under.texts())
	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())
	assert.Equal(t, "model-a", c.Namespace())
}

func TestCacheBackedEmbedder_NamespacesAreIndependent(t *testing.T) {
	ctx := context.Background()
	shared := memory.New()
	underA := &countingEmbedder{}
	underB := &countingEmbedder{}
	a := NewCacheBackedEmbedder(underA, shared, "model-a")
	b := NewCacheBackedEmbedder(underB, shared, "model-b")

	_, err := a.EmbedDocument(ctx, "hello")
	require.NoError(t, err)
	_, err = b.EmbedDocument(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, 1, underA.texts())
	assert.Equal(t, 1, underB.texts())
	assert.Equal(t, 2, shared.Len())
}

func TestCacheBackedEmbedder_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	shared := memory.New()

	first := &countingEmbedder{}
	_, err := NewCacheBackedEmbedder(first, shared, "m").EmbedDocuments(ctx, []string{"x", "y"})
	require.NoError(t, err)

	second := &countingEmbedder{}
	out, err := NewCacheBackedEmbedder(second, shared, "m").EmbedDocuments(ctx, []string{"y", "x"})
	require.NoError(t, err)

	assert.Equal(t, 0, second.texts())
	assert.Equal(t, [][]float32{{1, 'y'}, {1, 'x'}}, out)
}

func TestCacheBackedEmbedder_BatchDedupesMisses(t *testing.T) {
	ctx := context.Background()
	under := &countingEmbedder{}
	s := memory.New()
	c := NewCacheBackedEmbedder(under, s, "m")

	_, err := c.EmbedDocument(ctx, "cached")
	require.NoError(t, err)

	out, err := c.EmbedDocuments(ctx, []string{"b", "cached", "a", "b", "a"})
	require.NoError(t, err)

	require.Len(t, under.calls, 2)
	assert.Equal(t, []string{"b", "a"}, under.calls[1], "distinct misses in first-seen order")
	assert.Equal(t, [][]float32{{1, 'b'}, {6, 'c'}, {1, 'a'}, {1, 'b'}, {1, 'a'}}, out)

	// Duplicated results do not alias each other.
	out[0][0] = 99
	assert.Equal(t, float32(1), out[3][0])

	assert.Equal(t, 3, s.Len())
}

func TestCacheBackedEmbedder_Empty(t *testing.T) {
	under := &countingEmbedder{}
	c := NewCacheBackedEmbedder(under, memory.New(), "m")

	out, err := c.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, under.calls)
}

func TestCacheBackedEmbedder_CorruptEntryIsRecomputed(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.MSet(ctx, []store.KeyValue{{Key: Key("m", "t"), Value: []byte{1, 2, 3}}}))

	under := &countingEmbedder{}
	v, err := NewCacheBackedEmbedder(under, s, "m").EmbedDocument(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 't'}, v)
	assert.Equal(t, 1, under.texts())

	raw, err := s.MGet(ctx, []string{Key("m", "t")})
	require.NoError(t, err)
	assert.Equal(t, EncodeVector(v), raw[0])
}

type failingStore struct {
	store.ByteStore
	getErr, setErr error
}

func (f *failingStore) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.ByteStore.MGet(ctx, keys)
}

func (f *failingStore) MSet(ctx context.Context, entries []store.KeyValue) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.ByteStore.MSet(ctx, entries)
}

func TestCacheBackedEmbedder_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("store read", func(t *testing.T) {
		c := NewCacheBackedEmbedder(&countingEmbedder{}, &failingStore{ByteStore: memory.New(), getErr: boom}, "m")
		_, err := c.EmbedDocument(ctx, "x")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("store write", func(t *testing.T) {
		c := NewCacheBackedEmbedder(&countingEmbedder{}, &failingStore{ByteStore: memory.New(), setErr: boom}, "m")
		_, err := c.EmbedDocument(ctx, "x")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("embedder", func(t *testing.T) {
		s := memory.New()
		c := NewCacheBackedEmbedder(&countingEmbedder{err: boom}, s, "m")
		_, err := c.EmbedDocument(ctx, "x")
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, s.Len(), "nothing is cached on failure")
	})

	t.Run("empty vector", func(t *testing.T) {
		c := NewCacheBackedEmbedder(&countingEmbedder{empty: true}, memory.New(), "m")
		_, err := c.EmbedDocument(ctx, "x")
		assert.ErrorIs(t, err, rag.ErrNoEmbedding)
	})
}

func TestCacheBackedEmbedder_LangChainEmbedder(t *testing.T) {
	var lc embeddings.Embedder = NewCacheBackedEmbedder(&countingEmbedder{}, memory.New(), "m")

	v, err := lc.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 'q'}, v)
}
