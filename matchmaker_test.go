package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func fakeClient(id uuid.UUID) *Client {
	return &Client{
		send:     make(chan []byte, sendBufSize),
		userID:   id,
		username: "tester",
		authed:   true,
	}
}

func mmConfig() Config {
	cfg := DefaultConfig()
	cfg.MinPlayersToStart = 2
	cfg.MaxPlayersPerMatch = 4
	cfg.JoinWindowSecs = 0.05
	cfg.MatchMaxDurationSecs = 0.5
	return cfg
}

// awaitEnvelope polls a client's send channel for a typed JSON message
func awaitEnvelope(t *testing.T, c *Client, typ string, timeout time.Duration) map[string]interface{} {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case raw := <-c.send:
			if len(raw) > 0 && raw[0] == 0xFF {
				continue // binary snapshot frame
			}
			var env InEnvelope
			if err := json.Unmarshal(raw, &env); err != nil {
				continue
			}
			if env.T != typ {
				continue
			}
			var data map[string]interface{}
			_ = json.Unmarshal(env.D, &data)
			return data
		case <-deadline:
			t.Fatalf("timed out waiting for %q", typ)
		}
	}
}

// A single player below min_players_to_start never forms a match
// and leaves cleanly.
func TestQueueBelowThreshold(t *testing.T) {
	mm := NewMatchmaker(mmConfig(), nil)
	c := fakeClient(slotUUID(0))
	mm.queue = append(mm.queue, queuedPlayer{userID: c.userID, name: "solo", ship: shipCatalog["fighter"], client: c, queuedAt: time.Now()})

	for i := 0; i < 10; i++ {
		mm.matchPass()
	}
	if len(mm.matches) != 0 {
		t.Fatal("match formed below min_players_to_start")
	}
	if len(mm.queue) != 1 {
		t.Fatalf("queue len %d, want 1", len(mm.queue))
	}
	select {
	case <-c.send:
		t.Fatal("no message should be emitted while waiting")
	default:
	}

	// leave_match while queued removes the entry
	mm.remove(c.userID)
	if len(mm.queue) != 0 {
		t.Fatal("queue should be empty after leave")
	}
	mm.remove(c.userID) // idempotent
}

func TestMatchFormationFIFOSlots(t *testing.T) {
	mm := NewMatchmaker(mmConfig(), nil)
	defer mm.Stop()

	clients := []*Client{fakeClient(slotUUID(0)), fakeClient(slotUUID(1)), fakeClient(slotUUID(2))}
	for _, c := range clients {
		mm.queue = append(mm.queue, queuedPlayer{userID: c.userID, name: "p", ship: shipCatalog["scout"], client: c, queuedAt: time.Now()})
	}

	mm.matchPass()
	if len(mm.matches) != 1 {
		t.Fatalf("%d matches formed, want 1", len(mm.matches))
	}
	if len(mm.queue) != 0 {
		t.Fatalf("queue len %d after formation, want 0", len(mm.queue))
	}

	// Slots are assigned in pop (FIFO) order
	for i, c := range clients {
		data := awaitEnvelope(t, c, MsgMatchJoined, 2*time.Second)
		slot, ok := data["s"].(float64)
		if !ok || int(slot) != i {
			t.Errorf("client %d got slot %v", i, data["s"])
		}
		if data["seed"] == nil {
			t.Errorf("client %d missing seed", i)
		}
	}
}

func TestMatchRunsToCompletionAndUnregisters(t *testing.T) {
	mm := NewMatchmaker(mmConfig(), nil)
	defer mm.Stop()

	a, b := fakeClient(slotUUID(0)), fakeClient(slotUUID(1))
	for _, c := range []*Client{a, b} {
		mm.queue = append(mm.queue, queuedPlayer{userID: c.userID, name: "p", ship: shipCatalog["fighter"], client: c, queuedAt: time.Now()})
	}
	mm.matchPass()

	awaitEnvelope(t, a, MsgMatchJoined, 2*time.Second)

	// Neither player shoots: the 0.5 s time limit ends the match
	data := awaitEnvelope(t, a, MsgMatchEnd, 5*time.Second)
	stats, ok := data["stats"].([]interface{})
	if !ok || len(stats) != 2 {
		t.Fatalf("match_end stats = %v", data["stats"])
	}

	// The registry drops the match after the terminal message
	deadline := time.Now().Add(2 * time.Second)
	for {
		mm.mu.RLock()
		n := len(mm.matches)
		mm.mu.RUnlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("match never left the registry")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLateJoinersFillOpenLobby(t *testing.T) {
	cfg := mmConfig()
	cfg.JoinWindowSecs = 1
	mm := NewMatchmaker(cfg, nil)
	defer mm.Stop()

	a, b := fakeClient(slotUUID(0)), fakeClient(slotUUID(1))
	for _, c := range []*Client{a, b} {
		mm.queue = append(mm.queue, queuedPlayer{userID: c.userID, name: "p", ship: shipCatalog["fighter"], client: c, queuedAt: time.Now()})
	}
	mm.matchPass()
	awaitEnvelope(t, a, MsgMatchJoined, 2*time.Second)

	// A third player arriving inside the join window lands in the
	// same lobby with the next slot.
	late := fakeClient(slotUUID(2))
	mm.queue = append(mm.queue, queuedPlayer{userID: late.userID, name: "late", ship: shipCatalog["cruiser"], client: late, queuedAt: time.Now()})
	mm.matchPass()

	data := awaitEnvelope(t, late, MsgMatchJoined, 2*time.Second)
	if slot, _ := data["s"].(float64); int(slot) != 2 {
		t.Errorf("late joiner got slot %v, want 2", data["s"])
	}
	mm.mu.RLock()
	n := len(mm.matches)
	mm.mu.RUnlock()
	if n != 1 {
		t.Errorf("%d matches live, late joiner should not form a second", n)
	}
}
