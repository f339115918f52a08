// Package wallet tracks the connection state of a wallet provider.
package wallet

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the tag of a session state
type Status string

const (
	StatusDisconnected       Status = "disconnected"
	StatusConnecting         Status = "connecting"
	StatusConnected          Status = "connected"
	StatusUnsupportedNetwork Status = "unsupported_network"
)

// State is an immutable snapshot of a session. Address is only set when
// Status is connected; ChainID is set for connected and unsupported_network.
type State struct {
	Status    Status    `json:"status"`
	Address   string    `json:"address,omitempty"`
	ChainID   int64     `json:"chain_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Connected reports whether the state carries a usable address
func (s State) Connected() bool {
	return s.Status == StatusConnected && s.Address != ""
}

// EventType names a provider event
type EventType string

const (
	EventConnecting      EventType = "connecting"
	EventConnect         EventType = "connect"
	EventAccountsChanged EventType = "accounts_changed"
	EventChainChanged    EventType = "chain_changed"
	EventDisconnect      EventType = "disconnect"
)

// Event is a provider notification forwarded to the session
type Event struct {
	Type    EventType `json:"type" binding:"required"`
	Address string    `json:"address,omitempty"`
	ChainID int64     `json:"chain_id,omitempty"`
}

// Observer receives every state the session enters
type Observer func(State)

// Session holds one wallet connection. It is shared by reference between
// everything that needs the current address.
type Session struct {
	ID string

	mu        sync.RWMutex
	state     State
	account   string // last known account, kept across unsupported chains
	supported map[int64]bool
	observers map[int]Observer
	nextObs   int
}

// NewSession creates a disconnected session accepting the given chains.
// An empty list accepts every chain.
func NewSession(id string, supportedChains []int64) *Session {
	supported := make(map[int64]bool, len(supportedChains))
	for _, c := range supportedChains {
		supported[c] = true
	}
	return &Session{
		ID:        id,
		state:     State{Status: StatusDisconnected, UpdatedAt: time.Now()},
		supported: supported,
		observers: make(map[int]Observer),
	}
}

// State returns the current snapshot
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn for state changes and returns a function that
// removes it. fn is called outside the session lock.
func (s *Session) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Apply feeds a provider event into the session and returns the new state.
// Observers are notified only when the state actually changed.
func (s *Session) Apply(ev Event) (State, error) {
	s.mu.Lock()
	prev := s.state
	next, err := s.reduce(ev)
	if err != nil {
		s.mu.Unlock()
		return prev, err
	}
	changed := next.Status != prev.Status || next.Address != prev.Address || next.ChainID != prev.ChainID
	if changed {
		next.UpdatedAt = time.Now()
		s.state = next
	}
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	current := s.state
	s.mu.Unlock()

	if changed {
		for _, o := range observers {
			o(current)
		}
	}
	return current, nil
}

// reduce computes the next state; callers hold s.mu
func (s *Session) reduce(ev Event) (State, error) {
	cur := s.state

	switch ev.Type {
	case EventConnecting:
		if cur.Status == StatusConnected {
			return cur, nil
		}
		return State{Status: StatusConnecting}, nil

	case EventConnect:
		addr, err := normalizeAddress(ev.Address)
		if err != nil {
			return cur, err
		}
		s.account = addr
		return s.onChain(ev.ChainID), nil

	case EventAccountsChanged:
		if ev.Address == "" {
			// An empty account list means the wallet was locked or revoked
			s.account = ""
			return State{Status: StatusDisconnected}, nil
		}
		addr, err := normalizeAddress(ev.Address)
		if err != nil {
			return cur, err
		}
		s.account = addr
		if cur.Status == StatusDisconnected || cur.Status == StatusConnecting {
			return cur, nil
		}
		return s.onChain(cur.ChainID), nil

	case EventChainChanged:
		if cur.Status == StatusDisconnected || cur.Status == StatusConnecting {
			return cur, nil
		}
		return s.onChain(ev.ChainID), nil

	case EventDisconnect:
		s.account = ""
		return State{Status: StatusDisconnected}, nil
	}

	return cur, fmt.Errorf("unknown wallet event %q", ev.Type)
}

func (s *Session) onChain(chainID int64) State {
	if !s.chainSupported(chainID) {
		return State{Status: StatusUnsupportedNetwork, ChainID: chainID}
	}
	return State{Status: StatusConnected, Address: s.account, ChainID: chainID}
}

func (s *Session) chainSupported(chainID int64) bool {
	if len(s.supported) == 0 {
		return true
	}
	return s.supported[chainID]
}

func normalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid wallet address %q", address)
	}
	return common.HexToAddress(address).Hex(), nil
}
