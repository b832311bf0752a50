package types

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUidFactoriesMintMonotonically(t *testing.T) {
	tf := NewTrackUidFactory()
	assert.Equal(t, TrackUid(1), tf.MintNext())
	assert.Equal(t, TrackUid(2), tf.MintNext())

	ef := NewUidFactory()
	assert.Equal(t, Uid(1024), ef.MintNext())
	assert.Equal(t, Uid(1025), ef.MintNext())

	pf := NewPatternUidFactory()
	af := NewArrangementUidFactory()
	sf := NewPathUidFactory()
	assert.Equal(t, PatternUid(1024), pf.MintNext())
	assert.Equal(t, ArrangementUid(1024), af.MintNext())
	assert.Equal(t, PathUid(1024), sf.MintNext())
}

func TestUidFactoryRebase(t *testing.T) {
	f := NewUidFactory()
	f.Rebase(Uid(5000))
	assert.Equal(t, Uid(5001), f.MintNext())

	// Rebasing backward must not reissue uids.
	f.Rebase(Uid(10))
	assert.Equal(t, Uid(5002), f.MintNext())
}

func TestUidFactoryConcurrentMint(t *testing.T) {
	f := NewUidFactory()
	const n = 64
	var wg sync.WaitGroup
	got := make([]Uid, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = f.MintNext()
		}(i)
	}
	wg.Wait()

	seen := make(map[Uid]bool, n)
	for _, uid := range got {
		assert.False(t, seen[uid], "uid %v minted twice", uid)
		seen[uid] = true
	}
}
