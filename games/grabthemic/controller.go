/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package grabthemic implements the rules of Grab the Mic: a word is shown,
// the first player to tap gets to sing it before the singing timer runs out,
// and the host then awards a point to whoever sang it correctly.
//
// A Controller is not safe for concurrent use. All calls, including the
// timer ticks delivered by its Scheduler, must happen on one goroutine.
package grabthemic

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

const (
	DefaultCountdown    = 5
	DefaultSinging      = 10
	DefaultTickInterval = time.Second

	initialWord = "Get Ready!"
)

var (
	ErrWrongPhase      = errors.New("action not allowed in current phase")
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrInvalidPoints   = errors.New("points must be positive")
	ErrClosed          = errors.New("game is closed")
	ErrNoScheduler     = errors.New("a scheduler is required")
	ErrInvalidDuration = errors.New("timer durations must be positive")
	ErrNoPlayers       = errors.New("at least one player is required")
)

// DefaultPlayerNames is the roster used when Options.PlayerNames is nil.
var DefaultPlayerNames = []string{"Player 1", "Player 2"}

type Options struct {
	// Words defaults to DefaultWordList when empty.
	Words       WordList
	PlayerNames []string

	// Timer lengths, in ticks.
	Countdown int
	Singing   int

	TickInterval time.Duration
	Scheduler    Scheduler
	Rand         Rand

	// Logf receives diagnostics. nil discards them.
	Logf func(format string, args ...any)
}

// Controller owns the game state and moves it between phases.
type Controller struct {
	words WordList
	rng   Rand
	logf  func(format string, args ...any)

	phase   Phase
	word    string
	players []Player
	used    map[int]struct{}
	round   int
	closed  bool

	countdown *Timer
	singing   *Timer

	observers []observer
	nextObs   int
}

type observer struct {
	id int
	fn func(Snapshot)
}

func New(opts Options) (*Controller, error) {
	if opts.Scheduler == nil {
		return nil, ErrNoScheduler
	}

	if opts.Countdown == 0 {
		opts.Countdown = DefaultCountdown
	}
	if opts.Singing == 0 {
		opts.Singing = DefaultSinging
	}
	if opts.TickInterval == 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Countdown < 0 || opts.Singing < 0 || opts.TickInterval < 0 {
		return nil, ErrInvalidDuration
	}

	if opts.Words.Len() == 0 {
		opts.Words = DefaultWordList()
	}

	names := opts.PlayerNames
	if names == nil {
		names = DefaultPlayerNames
	}
	if len(names) == 0 {
		return nil, ErrNoPlayers
	}

	if opts.Rand == nil {
		opts.Rand = globalRand{}
	}

	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	c := &Controller{
		words:   opts.Words,
		rng:     opts.Rand,
		logf:    logf,
		phase:   PhaseIdle,
		word:    initialWord,
		players: newPlayers(names),
		used:    make(map[int]struct{}),
	}

	c.countdown = newTimer("countdown", opts.Countdown, opts.TickInterval, opts.Scheduler,
		func(int) { c.notify() },
		c.CountdownTimeUp,
	)
	c.singing = newTimer("singing", opts.Singing, opts.TickInterval, opts.Scheduler,
		func(int) { c.notify() },
		c.SingingTimeUp,
	)

	return c, nil
}

// Subscribe registers fn to receive a snapshot after every state change.
// The returned func removes the subscription.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.nextObs++
	id := c.nextObs
	c.observers = append(c.observers, observer{id: id, fn: fn})

	return func() {
		for i, o := range c.observers {
			if o.id == id {
				c.observers = slices.Delete(slices.Clone(c.observers), i, i+1)
				return
			}
		}
	}
}

func (c *Controller) notify() {
	if len(c.observers) == 0 {
		return
	}

	s := c.Snapshot()
	for _, o := range c.observers {
		o.fn(s)
	}
}

func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Phase:       c.phase,
		CurrentWord: c.word,
		Countdown:   c.countdown.Value(),
		Singing:     c.singing.Value(),
		Players:     append([]Player(nil), c.players...),
		Round:       c.round,
	}
}

func (c *Controller) Phase() Phase {
	return c.phase
}

// UsedWords reports how many words have been shown in the current cycle.
func (c *Controller) UsedWords() int {
	return len(c.used)
}

// StartGame zeroes every score, forgets which words were shown, and deals
// the first word.
func (c *Controller) StartGame() error {
	if c.closed {
		return ErrClosed
	}

	c.resetScores()
	clear(c.used)
	c.round = 0

	c.logf("Starting new game with %d players", len(c.players))

	return c.SelectNextWord()
}

func (c *Controller) resetScores() {
	for i := range c.players {
		c.players[i].Score = 0
	}
}

// SelectNextWord deals a word not yet shown in this cycle and restarts the
// countdown. When the cycle is exhausted, every word becomes available again.
func (c *Controller) SelectNextWord() error {
	if c.closed {
		return ErrClosed
	}

	if len(c.used) >= c.words.Len() {
		c.logf("All %d words used, resetting list", c.words.Len())
	}

	index, used := SelectWord(c.rng, c.words.Len(), c.used)
	c.used = used
	c.word = c.words.At(index)
	c.round++

	c.logf("Round %d: selected word %q", c.round, c.word)

	c.singing.Stop()
	c.phase = PhaseWordDisplay
	c.countdown.Start()

	c.notify()

	return nil
}

// PlayerTappedToSing claims the current word. It is ignored outside the
// word display phase.
func (c *Controller) PlayerTappedToSing() error {
	if c.closed {
		return ErrClosed
	}
	if c.phase != PhaseWordDisplay {
		return fmt.Errorf("%w: tap during %s", ErrWrongPhase, c.phase)
	}

	c.countdown.Stop()
	c.phase = PhaseSinging
	c.singing.Start()

	c.logf("Mic grabbed for %q", c.word)

	c.notify()

	return nil
}

// CountdownTimeUp skips the current word when nobody tapped in time.
// There is no scoring for a skipped word.
func (c *Controller) CountdownTimeUp() {
	if c.closed || c.phase != PhaseWordDisplay {
		return
	}

	c.countdown.Stop()

	c.logf("Countdown expired, skipping %q", c.word)

	_ = c.SelectNextWord()
}

// SingingTimeUp ends the singing phase and hands control to the host.
func (c *Controller) SingingTimeUp() {
	if c.closed || c.phase != PhaseSinging {
		return
	}

	c.singing.Stop()
	c.phase = PhaseScoring

	c.logf("Singing time up for %q", c.word)

	c.notify()
}

// AwardPoints adds points to a player's score and deals the next word.
//
// An unknown player id is logged and no score changes, but the game still
// moves on to the next word.
func (c *Controller) AwardPoints(playerID string, points int) error {
	if c.closed {
		return ErrClosed
	}
	if c.phase != PhaseScoring {
		return fmt.Errorf("%w: award points during %s", ErrWrongPhase, c.phase)
	}
	if points <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPoints, points)
	}

	var err error

	i := c.playerIndex(playerID)
	if i < 0 {
		err = fmt.Errorf("%w: %q", ErrUnknownPlayer, playerID)
		c.logf("Could not award points: %v", err)
	} else {
		c.players[i].Score += points
		c.logf("Awarded %d point(s) to %s, new score %d", points, c.players[i].Name, c.players[i].Score)
	}

	_ = c.SelectNextWord()

	return err
}

// Skip moves on from scoring without awarding anyone.
func (c *Controller) Skip() error {
	if c.closed {
		return ErrClosed
	}
	if c.phase != PhaseScoring {
		return fmt.Errorf("%w: skip during %s", ErrWrongPhase, c.phase)
	}

	c.logf("Nobody scored %q", c.word)

	return c.SelectNextWord()
}

func (c *Controller) playerIndex(id string) int {
	for i := range c.players {
		if c.players[i].ID == id {
			return i
		}
	}
	return -1
}

// Close stops both timers. The host must call it before discarding the
// controller; any tick that still arrives afterwards is ignored.
func (c *Controller) Close() {
	if c.closed {
		return
	}

	c.countdown.Stop()
	c.singing.Stop()
	c.closed = true
	c.observers = nil
}
