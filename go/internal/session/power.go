package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mdev84/spyline/go/clients/gameapi"
	"github.com/mdev84/spyline/go/internal/models"
)

// defaultStreakThreshold is the consecutive-own-correct-reveal count a
// team needs before its powers unlock.
const defaultStreakThreshold = 3

var (
	ErrPowerLocked   = errors.New("power is not available")
	ErrNoPickerOpen  = errors.New("no power picker is open")
	ErrPickerNotFull = errors.New("picker needs more positions")
)

// PickerState is the exported view of an open picker.
type PickerState struct {
	Kind      gameapi.PowerKind `json:"kind"`
	Needed    int               `json:"needed"`
	Positions []int             `json:"positions"`
}

// PowerPicker collects the parameters for one-shot team powers. An
// instant power submits immediately; a parameterized one accumulates
// one or two distinct concealed positions before submission. The submit
// callback carries the session's global busy discipline.
type PowerPicker struct {
	store     *Store
	threshold int
	submit    func(ctx context.Context, kind gameapi.PowerKind, positions []int) error

	mu        sync.Mutex
	active    *gameapi.PowerKind
	positions []int
}

// NewPowerPicker builds a picker. threshold <= 0 uses the default.
func NewPowerPicker(store *Store, threshold int, submit func(ctx context.Context, kind gameapi.PowerKind, positions []int) error) *PowerPicker {
	if threshold <= 0 {
		threshold = defaultStreakThreshold
	}
	return &PowerPicker{
		store:     store,
		threshold: threshold,
		submit:    submit,
	}
}

// Available reports whether my team may spend the power right now: the
// streak gate is met and the power is not already marked used for the
// current turn ordinal.
func (p *PowerPicker) Available(kind gameapi.PowerKind) bool {
	g := p.store.Game()
	if !g.Active() {
		return false
	}
	team := p.store.MyTeam()
	if team == models.TeamNone || !p.store.AmSeated() {
		return false
	}
	if g.Ext.StreakFor(team) < p.threshold {
		return false
	}
	return !g.Ext.PowerUsedOn(string(kind), g.Turn)
}

// Begin opens the picker for a parameterized power, or submits an
// instant one straight away.
func (p *PowerPicker) Begin(ctx context.Context, kind gameapi.PowerKind) error {
	if !p.Available(kind) {
		return ErrPowerLocked
	}
	if kind.Positions() == 0 {
		return p.submit(ctx, kind, nil)
	}

	p.mu.Lock()
	p.active = &kind
	p.positions = nil
	p.mu.Unlock()
	return nil
}

// Toggle adds or removes a board position in the open picker. Only
// distinct, concealed positions are accepted, and never more than the
// power needs.
func (p *PowerPicker) Toggle(pos int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return ErrNoPickerOpen
	}

	for i, existing := range p.positions {
		if existing == pos {
			p.positions = append(p.positions[:i], p.positions[i+1:]...)
			return nil
		}
	}

	card := p.cardAt(pos)
	if card == nil {
		return fmt.Errorf("no card at position %d", pos)
	}
	if card.Revealed {
		return fmt.Errorf("card at position %d is already revealed", pos)
	}
	if len(p.positions) >= p.active.Positions() {
		return fmt.Errorf("power %s takes %d position(s)", *p.active, p.active.Positions())
	}
	p.positions = append(p.positions, pos)
	return nil
}

// Submit sends the accumulated parameters. The gate and the picks are
// re-validated at submission time; the canonical board may have moved.
func (p *PowerPicker) Submit(ctx context.Context) error {
	p.mu.Lock()
	if p.active == nil {
		p.mu.Unlock()
		return ErrNoPickerOpen
	}
	kind := *p.active
	positions := append([]int(nil), p.positions...)
	p.mu.Unlock()

	if len(positions) != kind.Positions() {
		return ErrPickerNotFull
	}
	if !p.Available(kind) {
		p.Cancel()
		return ErrPowerLocked
	}
	for _, pos := range positions {
		card := p.cardAt(pos)
		if card == nil || card.Revealed {
			return fmt.Errorf("position %d is no longer concealed", pos)
		}
	}

	if err := p.submit(ctx, kind, positions); err != nil {
		return err
	}
	p.Cancel()
	return nil
}

// Cancel discards the open picker.
func (p *PowerPicker) Cancel() {
	p.mu.Lock()
	p.active = nil
	p.positions = nil
	p.mu.Unlock()
}

// State returns the open picker, or nil when none is open.
func (p *PowerPicker) State() *PickerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return nil
	}
	return &PickerState{
		Kind:      *p.active,
		Needed:    p.active.Positions(),
		Positions: append([]int(nil), p.positions...),
	}
}

func (p *PowerPicker) cardAt(pos int) *models.Card {
	snap := p.store.Snapshot()
	for i := range snap.Cards {
		if snap.Cards[i].Position == pos {
			return &snap.Cards[i]
		}
	}
	return nil
}
