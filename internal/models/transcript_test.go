package models

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript_AppendAndRecent(t *testing.T) {
	tr := NewTranscript()
	for i := 0; i < 8; i++ {
		tr.Append(Turn{Role: RoleUser, Content: fmt.Sprintf("turn-%d", i)})
	}

	recent := tr.Recent(5)
	require.Len(t, recent, 5)
	for i, turn := range recent {
		assert.Equal(t, fmt.Sprintf("turn-%d", i+3), turn.Content)
	}
	assert.Equal(t, 8, tr.Len())
}

func TestTranscript_RecentShorterThanWindow(t *testing.T) {
	tr := NewTranscript()
	tr.Append(
		Turn{Role: RoleUser, Content: "hi"},
		Turn{Role: RoleAssistant, Content: "hello"},
	)

	recent := tr.Recent(5)
	require.Len(t, recent, 2)
	assert.Equal(t, RoleUser, recent[0].Role)
	assert.Equal(t, RoleAssistant, recent[1].Role)
}

func TestTranscript_RecentReturnsCopy(t *testing.T) {
	tr := NewTranscript()
	tr.Append(Turn{Role: RoleUser, Content: "original"})

	recent := tr.Recent(1)
	recent[0].Content = "mutated"

	assert.Equal(t, "original", tr.Turns()[0].Content)
}

func TestTranscript_Clear(t *testing.T) {
	tr := NewTranscript()
	tr.Append(Turn{Role: RoleUser, Content: "a"})
	tr.Clear()

	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, tr.Recent(5))
}

func TestTranscript_ConcurrentAppend(t *testing.T) {
	tr := NewTranscript()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.Append(Turn{Role: RoleUser, Content: fmt.Sprint(i)})
			_ = tr.Recent(5)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, tr.Len())
}

func TestLastTurns(t *testing.T) {
	turns := []Turn{{Content: "a"}, {Content: "b"}, {Content: "c"}}

	assert.Empty(t, LastTurns(turns, 0))
	assert.Empty(t, LastTurns(nil, 3))
	assert.Equal(t, []Turn{{Content: "b"}, {Content: "c"}}, LastTurns(turns, 2))
	assert.Equal(t, turns, LastTurns(turns, 10))
}
