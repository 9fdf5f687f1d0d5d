package server

import (
	"encoding/json"
	"sync"
)

// Lobby event types.
const (
	EventPlayerStarted  = "player_started"
	EventPlayerFinished = "player_finished"
)

// LobbyEvent is the payload published to lobby subscribers.
type LobbyEvent struct {
	Type       string `json:"type"`
	SessionID  string `json:"sessionId"`
	PlayerName string `json:"playerName"`
	Total      int    `json:"total,omitempty"`
	Scores     []int  `json:"scores,omitempty"`
}

// Broker is an in-process pub/sub for lobby events, keyed by lobby token.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for the lobby.
func (b *Broker) Subscribe(lobby string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[lobby] == nil {
		b.subs[lobby] = make(map[chan []byte]struct{})
	}
	b.subs[lobby][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the lobby's subscribers.
func (b *Broker) Unsubscribe(lobby string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[lobby], ch)
	if len(b.subs[lobby]) == 0 {
		delete(b.subs, lobby)
	}
	b.mu.Unlock()
}

// Publish sends an event to every subscriber of the lobby. Events for a
// lobby nobody watches are dropped.
func (b *Broker) Publish(lobby string, event LobbyEvent) {
	if lobby == "" {
		return
	}
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs[lobby] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

func (b *Broker) Subscribers(lobby string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[lobby])
}
