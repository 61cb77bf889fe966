package models

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	text    string
	image   string
	err     error
	fetches int
}

func (f *fakeFetcher) Models(_ context.Context, modelType string) ([]byte, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	if modelType == "image" {
		return []byte(f.image), nil
	}
	return []byte(f.text), nil
}

func TestListReshapesGridModels(t *testing.T) {
	fetcher := &fakeFetcher{
		text:  `[{"name": "aphrodite/llama-70b", "count": 4}, {"name": "mistral-7b"}]`,
		image: `[{"name": "stable_diffusion"}]`,
	}
	r := NewRegistry(fetcher, NewMemoryCache(), time.Minute)

	resp, err := r.List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "list", resp.Object)
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "aphrodite/llama-70b", resp.Data[0].ID)
	assert.Equal(t, "stable_diffusion", resp.Data[2].ID)
	for _, m := range resp.Data {
		assert.Equal(t, "model", m.Object)
		assert.Equal(t, "aipowergrid", m.OwnedBy)
		assert.NotZero(t, m.Created)
	}
}

func TestTransformIdentifierFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{name: "id field", raw: `[{"id": "m-id"}]`, expected: "m-id"},
		{name: "model field", raw: `[{"model": "m-model"}]`, expected: "m-model"},
		{name: "name field", raw: `[{"name": "m-name"}]`, expected: "m-name"},
		{name: "id wins over name", raw: `[{"id": "m-id", "name": "m-name"}]`, expected: "m-id"},
		{name: "no identifier", raw: `[{"count": 3}]`, expected: "unknown-model"},
	}

	now := time.Now()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := transform([]byte(tt.raw), now)
			require.Len(t, out, 1)
			assert.Equal(t, tt.expected, out[0].ID)
		})
	}
}

func TestTransformKeepsUpstreamAttribution(t *testing.T) {
	now := time.Now()
	out := transform([]byte(`[{"id": "m", "created": 12345, "owned_by": "someone"}]`), now)
	require.Len(t, out, 1)
	assert.Equal(t, int64(12345), out[0].Created)
	assert.Equal(t, "someone", out[0].OwnedBy)
}

func TestListServesFromCacheWithinTTL(t *testing.T) {
	fetcher := &fakeFetcher{text: `[{"name": "m1"}]`, image: `[]`}
	r := NewRegistry(fetcher, NewMemoryCache(), time.Minute)

	_, err := r.List(context.Background())
	require.NoError(t, err)
	fetchesAfterFirst := fetcher.fetches

	for i := 0; i < 5; i++ {
		_, err := r.List(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, fetchesAfterFirst, fetcher.fetches, "no upstream calls within the TTL window")
}

// slowCountingFetcher delays every fetch and counts text fetches, so
// concurrent callers overlap on the refresh path.
type slowCountingFetcher struct {
	text        string
	image       string
	delay       time.Duration
	textFetches atomic.Int64
}

func (f *slowCountingFetcher) Models(_ context.Context, modelType string) ([]byte, error) {
	time.Sleep(f.delay)
	if modelType == "image" {
		return []byte(f.image), nil
	}
	f.textFetches.Add(1)
	return []byte(f.text), nil
}

func TestConcurrentListRefreshesOnce(t *testing.T) {
	fetcher := &slowCountingFetcher{
		text:  `[{"name": "m1"}]`,
		image: `[]`,
		delay: 20 * time.Millisecond,
	}
	r := NewRegistry(fetcher, NewMemoryCache(), time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := r.List(context.Background())
			assert.NoError(t, err)
			if err == nil {
				assert.Len(t, resp.Data, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), fetcher.textFetches.Load(),
		"concurrent callers share one refresh")
}

func TestListRefreshesAfterTTL(t *testing.T) {
	fetcher := &fakeFetcher{text: `[{"name": "m1"}]`, image: `[]`}
	r := NewRegistry(fetcher, NewMemoryCache(), time.Minute)

	current := time.Now()
	r.now = func() time.Time { return current }

	_, err := r.List(context.Background())
	require.NoError(t, err)
	fetchesAfterFirst := fetcher.fetches

	current = current.Add(2 * time.Minute)
	_, err = r.List(context.Background())
	require.NoError(t, err)
	assert.Greater(t, fetcher.fetches, fetchesAfterFirst)
}

func TestListServesStaleOnRefreshFailure(t *testing.T) {
	fetcher := &fakeFetcher{text: `[{"name": "m1"}]`, image: `[]`}
	r := NewRegistry(fetcher, NewMemoryCache(), time.Minute)

	current := time.Now()
	r.now = func() time.Time { return current }

	_, err := r.List(context.Background())
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)
	fetcher.err = errors.New("grid down")

	resp, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "m1", resp.Data[0].ID)
}

func TestListFailsWithoutAnyCache(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("grid down")}
	r := NewRegistry(fetcher, NewMemoryCache(), time.Minute)

	_, err := r.List(context.Background())
	assert.Error(t, err)
}

func TestSupports(t *testing.T) {
	fetcher := &fakeFetcher{text: `[{"name": "known-model"}]`, image: `[]`}
	r := NewRegistry(fetcher, NewMemoryCache(), time.Minute)

	assert.True(t, r.Supports(context.Background(), "known-model"))
	assert.False(t, r.Supports(context.Background(), "unknown-model"))
}

func TestSupportsDegradesToTrueOnError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("grid down")}
	r := NewRegistry(fetcher, NewMemoryCache(), time.Minute)

	assert.True(t, r.Supports(context.Background(), "anything"),
		"registry outages must not block submissions")
}

func TestImageFetchFailureKeepsTextModels(t *testing.T) {
	imgFail := &imageFailFetcher{inner: &fakeFetcher{text: `[{"name": "m1"}]`}}
	r := NewRegistry(imgFail, NewMemoryCache(), time.Minute)

	resp, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "m1", resp.Data[0].ID)
}

type imageFailFetcher struct {
	inner *fakeFetcher
}

func (f *imageFailFetcher) Models(ctx context.Context, modelType string) ([]byte, error) {
	if modelType == "image" {
		return nil, errors.New("image endpoint unavailable")
	}
	return f.inner.Models(ctx, modelType)
}
