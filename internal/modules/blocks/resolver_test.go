package blocks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/vaultbench/internal/clientdata"
	"github.com/aristath/vaultbench/internal/domain"
	testhelpers "github.com/aristath/vaultbench/internal/testing"
	"github.com/aristath/vaultbench/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	genesis = uint64(1700000000)
	head    = uint64(1000000)
)

func newTestResolver(chain *testhelpers.FakeChain, repo *clientdata.Repository) *Resolver {
	retrier := utils.NewRetrier(3, 500*time.Millisecond, zerolog.Nop())
	retrier.Sleep = func(time.Duration) {}
	return NewResolver(chain, 2, retrier, repo, zerolog.Nop())
}

func TestBinary_ExactMatch(t *testing.T) {
	chain := testhelpers.NewFakeChain(genesis, 2, head)
	r := newTestResolver(chain, nil)

	n, h, err := r.Binary(context.Background(), chain.TimestampOf(12345))
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), n)
	assert.Equal(t, chain.TimestampOf(12345), h.Timestamp)
}

func TestBinary_ReturnsLastBlockAtOrBeforeTarget(t *testing.T) {
	chain := testhelpers.NewFakeChain(genesis, 2, head)
	r := newTestResolver(chain, nil)

	targets := []uint64{
		chain.TimestampOf(1) + 1,
		chain.TimestampOf(777) + 1,
		chain.TimestampOf(500000) + 1,
		chain.TimestampOf(999998) + 1,
		genesis + 3*1234567/2,
	}

	for _, target := range targets {
		n, h, err := r.Binary(context.Background(), target)
		require.NoError(t, err)

		// The right bound brackets the target from below
		assert.LessOrEqual(t, h.Timestamp, target)
		if n < head {
			assert.Greater(t, chain.TimestampOf(n+1), target)
		}
	}
}

func TestBinary_TargetBeforeFirstBlock(t *testing.T) {
	chain := testhelpers.NewFakeChain(genesis, 2, head)
	r := newTestResolver(chain, nil)

	n, _, err := r.Binary(context.Background(), genesis-100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}

func TestBinary_TargetAfterHead(t *testing.T) {
	chain := testhelpers.NewFakeChain(genesis, 2, head)
	r := newTestResolver(chain, nil)

	n, _, err := r.Binary(context.Background(), chain.TimestampOf(head)+3600)
	require.NoError(t, err)
	assert.Equal(t, head, n)
}

func TestBinary_FailedFetchMovesRightBound(t *testing.T) {
	chain := testhelpers.NewFakeChain(genesis, 2, head)
	// First midpoint of [1, head] fails on every retry
	chain.FailBlock(500000, 3)
	r := newTestResolver(chain, nil)

	n, _, err := r.Binary(context.Background(), chain.TimestampOf(1000)+1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), n)
	assert.Equal(t, 3, chain.HeaderReads(500000))
}

func TestBinary_CachesResolvedBlocks(t *testing.T) {
	chain := testhelpers.NewFakeChain(genesis, 2, head)
	r := newTestResolver(chain, nil)
	target := chain.TimestampOf(4242) + 1

	first, _, err := r.Binary(context.Background(), target)
	require.NoError(t, err)
	calls := chain.BlockCalls()

	second, _, err := r.Binary(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, calls, chain.BlockCalls())
}

func TestBinary_PersistentCache(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "client_data")
	defer cleanup()
	repo := clientdata.NewRepository(db.Conn())

	chain := testhelpers.NewFakeChain(genesis, 2, head)
	target := chain.TimestampOf(31337)

	n, _, err := newTestResolver(chain, repo).Binary(context.Background(), target)
	require.NoError(t, err)
	calls := chain.BlockCalls()

	// A fresh resolver only needs the header of the cached block
	again, _, err := newTestResolver(chain, repo).Binary(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, n, again)
	assert.Equal(t, calls+1, chain.BlockCalls())
}

func TestBinary_PastHeadIsNotPersisted(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "client_data")
	defer cleanup()
	repo := clientdata.NewRepository(db.Conn())

	chain := testhelpers.NewFakeChain(genesis, 2, 1000)
	target := chain.TimestampOf(5000)

	n, _, err := newTestResolver(chain, repo).Binary(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), n)

	// The chain moves past the target; a new run must search again
	chain.SetLatest(10000)
	again, h, err := newTestResolver(chain, repo).Binary(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), again)
	assert.Equal(t, target, h.Timestamp)
}

func TestBinary_SkewedSearchIsNotPersisted(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "client_data")
	defer cleanup()
	repo := clientdata.NewRepository(db.Conn())

	chain := testhelpers.NewFakeChain(genesis, 2, head)
	chain.FailBlock(500000, 3)
	target := chain.TimestampOf(750000)

	r := newTestResolver(chain, repo)
	n, _, err := r.Binary(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, uint64(499999), n)

	// Same resolver keeps its in-memory answer for the rest of the run
	cached, _, err := r.Binary(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, n, cached)

	// A fresh run against a healthy node finds the real block
	again, _, err := newTestResolver(chain, repo).Binary(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, uint64(750000), again)
}

func TestLinear(t *testing.T) {
	chain := testhelpers.NewFakeChain(genesis, 2, head)
	r := newTestResolver(chain, nil)
	latestTs := chain.TimestampOf(head)

	tests := []struct {
		name     string
		target   uint64
		expected uint64
	}{
		{"200 seconds ago", latestTs - 200, head - 100},
		{"odd offset rounds down", latestTs - 201, head - 100},
		{"future target", latestTs + 50, head},
		{"before genesis clamps to 1", genesis - 1000000, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n, err := r.Resolve(context.Background(), PolicyLinear, tc.target)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, n)
		})
	}
}

func TestHeader_RetriesTransientFailures(t *testing.T) {
	chain := testhelpers.NewFakeChain(genesis, 2, head)
	chain.FailBlock(5, 2)
	r := newTestResolver(chain, nil)

	h, err := r.Header(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), h.Number)
	assert.Equal(t, 3, chain.HeaderReads(5))

	// Served from memory afterwards
	_, err = r.Header(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 3, chain.HeaderReads(5))
}

func TestHeader_FailsAfterRetries(t *testing.T) {
	chain := testhelpers.NewFakeChain(genesis, 2, head)
	chain.FailBlock(6, 3)
	r := newTestResolver(chain, nil)

	_, err := r.Header(context.Background(), 6)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get block 6")
}

func TestHeader_NotFound(t *testing.T) {
	chain := testhelpers.NewFakeChain(genesis, 2, head)
	r := newTestResolver(chain, nil)

	_, err := r.Header(context.Background(), head+1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBlockNotFound))
}

func TestResolve_UnknownPolicy(t *testing.T) {
	r := newTestResolver(testhelpers.NewFakeChain(genesis, 2, head), nil)

	_, err := r.Resolve(context.Background(), "guess", genesis)
	assert.Error(t, err)
}

func TestSchedule_OneBlockPerInterval(t *testing.T) {
	chain := testhelpers.NewFakeChain(genesis, 2, head)
	r := newTestResolver(chain, nil)

	start := time.Unix(int64(chain.TimestampOf(1000)), 0).UTC()
	got, err := r.Schedule(context.Background(), PolicyBinary, start, start.Add(48*time.Hour), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1000, 44200, 87400}, got)
}

func TestSchedule_CollapsesBlocksPastHead(t *testing.T) {
	chain := testhelpers.NewFakeChain(genesis, 2, head)
	r := newTestResolver(chain, nil)

	start := time.Unix(int64(chain.TimestampOf(head))+3600, 0).UTC()
	got, err := r.Schedule(context.Background(), PolicyLinear, start, start.Add(72*time.Hour), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []uint64{head}, got)
}

func TestSchedule_RejectsZeroInterval(t *testing.T) {
	r := newTestResolver(testhelpers.NewFakeChain(genesis, 2, head), nil)

	_, err := r.Schedule(context.Background(), PolicyLinear, time.Now(), time.Now(), 0)
	assert.Error(t, err)
}
