package votelock_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcdev12/faceoff/internal/votelock"
)

func TestVoteLockExactness(t *testing.T) {
	l := votelock.NewLedger()

	assert.False(t, l.HasVoted("tok", "m1"))

	l.RecordVote("tok", "m1")
	assert.True(t, l.HasVoted("tok", "m1"))
	assert.False(t, l.HasVoted("tok", "m2"))
	assert.False(t, l.HasVoted("other", "m1"))

	// Redundant records stay recorded once and keep reporting true.
	for i := 0; i < 10; i++ {
		l.RecordVote("tok", "m1")
	}
	assert.True(t, l.HasVoted("tok", "m1"))
}

func TestClearMatch(t *testing.T) {
	l := votelock.NewLedger()
	l.RecordVote("a", "m1")
	l.RecordVote("b", "m1")
	l.RecordVote("a", "m2")

	l.ClearMatch("m1")
	assert.False(t, l.HasVoted("a", "m1"))
	assert.False(t, l.HasVoted("b", "m1"))
	assert.True(t, l.HasVoted("a", "m2"))

	// Clearing an unknown match is a no-op.
	l.ClearMatch("m9")
}

func TestClearAll(t *testing.T) {
	l := votelock.NewLedger()
	for i := 0; i < 5; i++ {
		l.RecordVote(fmt.Sprintf("tok%d", i), "m1")
	}

	l.ClearAll()
	for i := 0; i < 5; i++ {
		assert.False(t, l.HasVoted(fmt.Sprintf("tok%d", i), "m1"))
	}
}

func TestConcurrentRecording(t *testing.T) {
	l := votelock.NewLedger()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			token := fmt.Sprintf("tok%d", n%10)
			l.RecordVote(token, "m1")
			assert.True(t, l.HasVoted(token, "m1"))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		assert.True(t, l.HasVoted(fmt.Sprintf("tok%d", i), "m1"))
	}
}
