package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdev84/spyline/go/clients/gameapi"
	"github.com/mdev84/spyline/go/internal/models"
)

type submitRecorder struct {
	mu    sync.Mutex
	calls []struct {
		kind      gameapi.PowerKind
		positions []int
	}
	err error
}

func (r *submitRecorder) submit(ctx context.Context, kind gameapi.PowerKind, positions []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, struct {
		kind      gameapi.PowerKind
		positions []int
	}{kind, positions})
	return nil
}

func streakGame(streak int, turn int) *models.Game {
	g := activeGame(models.TeamRed, turn)
	g.Ext.RedStreak = streak
	return g
}

func testPicker(g *models.Game) (*PowerPicker, *submitRecorder, *Store) {
	store := seededStore(g)
	rec := &submitRecorder{}
	return NewPowerPicker(store, 3, rec.submit), rec, store
}

func TestPowerAvailability(t *testing.T) {
	t.Run("streak below threshold locks", func(t *testing.T) {
		p, _, _ := testPicker(streakGame(2, 5))
		assert.False(t, p.Available(gameapi.PowerPeek))
	})

	t.Run("streak at threshold unlocks", func(t *testing.T) {
		p, _, _ := testPicker(streakGame(3, 5))
		assert.True(t, p.Available(gameapi.PowerPeek))
		assert.True(t, p.Available(gameapi.PowerSwap))
		assert.True(t, p.Available(gameapi.PowerExtraGuess))
	})

	t.Run("spent marker for the current turn locks", func(t *testing.T) {
		g := streakGame(4, 5)
		g.Ext.PowersUsed = map[string]int{string(gameapi.PowerPeek): 5}
		p, _, _ := testPicker(g)
		assert.False(t, p.Available(gameapi.PowerPeek))
		assert.True(t, p.Available(gameapi.PowerSwap), "other powers unaffected")
	})

	t.Run("marker from an earlier turn does not lock", func(t *testing.T) {
		g := streakGame(4, 6)
		g.Ext.PowersUsed = map[string]int{string(gameapi.PowerPeek): 5}
		p, _, _ := testPicker(g)
		assert.True(t, p.Available(gameapi.PowerPeek))
	})

	t.Run("inactive game locks everything", func(t *testing.T) {
		g := streakGame(5, 5)
		g.Status = models.GameStatusFinished
		p, _, _ := testPicker(g)
		assert.False(t, p.Available(gameapi.PowerExtraGuess))
	})

	t.Run("spectators never qualify", func(t *testing.T) {
		g := streakGame(5, 5)
		store := NewStore(testMyID)
		store.ReplaceAll(g, testBoard(), []models.Member{spectator(testMyID)}, nil)
		p := NewPowerPicker(store, 3, (&submitRecorder{}).submit)
		assert.False(t, p.Available(gameapi.PowerPeek))
	})
}

func TestInstantPowerSubmitsImmediately(t *testing.T) {
	p, rec, _ := testPicker(streakGame(3, 5))

	require.NoError(t, p.Begin(context.Background(), gameapi.PowerExtraGuess))
	require.Len(t, rec.calls, 1)
	assert.Equal(t, gameapi.PowerExtraGuess, rec.calls[0].kind)
	assert.Empty(t, rec.calls[0].positions)
	assert.Nil(t, p.State(), "no picker opens for an instant power")
}

func TestLockedPowerCannotBegin(t *testing.T) {
	p, rec, _ := testPicker(streakGame(1, 5))
	assert.ErrorIs(t, p.Begin(context.Background(), gameapi.PowerPeek), ErrPowerLocked)
	assert.Empty(t, rec.calls)
}

func TestParameterizedPowerFlow(t *testing.T) {
	p, rec, _ := testPicker(streakGame(3, 5))

	require.NoError(t, p.Begin(context.Background(), gameapi.PowerSwap))
	state := p.State()
	require.NotNil(t, state)
	assert.Equal(t, gameapi.PowerSwap, state.Kind)
	assert.Equal(t, 2, state.Needed)

	require.NoError(t, p.Toggle(1))
	require.NoError(t, p.Toggle(3))
	assert.Equal(t, []int{1, 3}, p.State().Positions)

	require.NoError(t, p.Submit(context.Background()))
	require.Len(t, rec.calls, 1)
	assert.Equal(t, gameapi.PowerSwap, rec.calls[0].kind)
	assert.Equal(t, []int{1, 3}, rec.calls[0].positions)
	assert.Nil(t, p.State(), "picker closes after submission")
}

func TestToggleValidation(t *testing.T) {
	p, _, store := testPicker(streakGame(3, 5))

	assert.ErrorIs(t, p.Toggle(1), ErrNoPickerOpen)

	require.NoError(t, p.Begin(context.Background(), gameapi.PowerSwap))

	// Revealed cards are not pickable.
	cards := testBoard()
	cards[2].Revealed = true
	store.ReplaceCards(cards)
	assert.Error(t, p.Toggle(2))

	assert.Error(t, p.Toggle(99), "no card at position")

	require.NoError(t, p.Toggle(0))
	require.NoError(t, p.Toggle(1))
	assert.Error(t, p.Toggle(3), "swap takes exactly two positions")

	// Re-toggling removes a pick.
	require.NoError(t, p.Toggle(0))
	assert.Equal(t, []int{1}, p.State().Positions)
}

func TestSubmitNeedsFullPicker(t *testing.T) {
	p, rec, _ := testPicker(streakGame(3, 5))
	require.NoError(t, p.Begin(context.Background(), gameapi.PowerSwap))
	require.NoError(t, p.Toggle(0))

	assert.ErrorIs(t, p.Submit(context.Background()), ErrPickerNotFull)
	assert.Empty(t, rec.calls)
}

func TestSubmitRevalidatesBoard(t *testing.T) {
	p, rec, store := testPicker(streakGame(3, 5))
	require.NoError(t, p.Begin(context.Background(), gameapi.PowerPeek))
	require.NoError(t, p.Toggle(2))

	// The canonical board moved underneath the open picker.
	cards := testBoard()
	cards[2].Revealed = true
	store.ReplaceCards(cards)

	assert.Error(t, p.Submit(context.Background()))
	assert.Empty(t, rec.calls)
}

func TestSubmitRevalidatesGate(t *testing.T) {
	p, rec, store := testPicker(streakGame(3, 5))
	require.NoError(t, p.Begin(context.Background(), gameapi.PowerPeek))
	require.NoError(t, p.Toggle(2))

	// The streak reset while the picker was open.
	store.ReplaceGame(streakGame(0, 5))

	assert.ErrorIs(t, p.Submit(context.Background()), ErrPowerLocked)
	assert.Empty(t, rec.calls)
	assert.Nil(t, p.State(), "stale picker is discarded")
}

func TestCancelDiscardsPicker(t *testing.T) {
	p, _, _ := testPicker(streakGame(3, 5))
	require.NoError(t, p.Begin(context.Background(), gameapi.PowerSwap))
	require.NoError(t, p.Toggle(0))

	p.Cancel()
	assert.Nil(t, p.State())
}
