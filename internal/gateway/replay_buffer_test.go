package gateway

import (
	"context"
	"testing"
	"time"

	"bondscan/internal/model"
)

func TestReplayBuffer_PushAndRange(t *testing.T) {
	rb := NewReplayBuffer(5)

	for i := int64(1); i <= 3; i++ {
		rb.Push(i, "113672", []byte{byte(i)})
	}
	if rb.Len() != 3 {
		t.Fatalf("len = %d, want 3", rb.Len())
	}

	got := rb.Range(2, 3, "")
	if len(got) != 2 || got[0].Seq != 2 || got[1].Seq != 3 {
		t.Fatalf("range = %+v, want seqs [2 3]", got)
	}
}

func TestReplayBuffer_FiltersBySymbol(t *testing.T) {
	rb := NewReplayBuffer(8)
	rb.Push(1, "113672", []byte("a"))
	rb.Push(2, "123089", []byte("b"))
	rb.Push(3, "113672", []byte("c"))

	got := rb.Range(1, 3, "113672")
	if len(got) != 2 || got[0].Seq != 1 || got[1].Seq != 3 {
		t.Fatalf("symbol filter returned %+v, want seqs [1 3]", got)
	}
	if all := rb.Range(1, 3, ""); len(all) != 3 {
		t.Errorf("empty symbol matched %d envelopes, want 3", len(all))
	}
}

func TestReplayBuffer_OverwritesOldest(t *testing.T) {
	rb := NewReplayBuffer(3)

	for i := int64(1); i <= 5; i++ {
		rb.Push(i, "113672", []byte{byte(i)})
	}
	if rb.Len() != 3 {
		t.Fatalf("len = %d, want 3", rb.Len())
	}

	// 1 and 2 are gone; 3..5 remain in order.
	got := rb.Range(1, 5, "")
	if len(got) != 3 {
		t.Fatalf("range returned %d envelopes, want 3", len(got))
	}
	for i, want := range []int64{3, 4, 5} {
		if got[i].Seq != want {
			t.Errorf("envelope %d seq = %d, want %d", i, got[i].Seq, want)
		}
	}
}

func TestReplayBuffer_CopiesData(t *testing.T) {
	rb := NewReplayBuffer(2)
	data := []byte("abc")
	rb.Push(1, "113672", data)
	data[0] = 'x'

	got := rb.Range(1, 1, "")
	if string(got[0].Data) != "abc" {
		t.Errorf("buffer shares caller slice: %q", got[0].Data)
	}
}

func TestHub_BroadcastSequencesAndReplays(t *testing.T) {
	h := NewHub(10)

	for i, sym := range []string{"113672", "123089", "113672", "113672"} {
		h.Broadcast(model.Alert{
			ID:     model.NewID(),
			Symbol: sym,
			Kind:   model.AlertEntrySignal,
			TS:     time.Now(),
			Price:  105 + float64(i),
		})
	}

	if h.Seq() != 4 {
		t.Fatalf("seq = %d, want 4", h.Seq())
	}
	if got := h.Replay(2, 3, ""); len(got) != 2 {
		t.Fatalf("replay returned %d envelopes, want 2", len(got))
	}
	if got := h.Replay(1, 4, "123089"); len(got) != 1 {
		t.Fatalf("symbol replay returned %d envelopes, want 1", len(got))
	}
	if h.ClientCount() != 0 {
		t.Errorf("client count = %d, want 0", h.ClientCount())
	}
}

func TestHub_StatusBroadcastRunsUntilCancelled(t *testing.T) {
	h := NewHub(4)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.StartStatusBroadcast(ctx, 5*time.Millisecond)
		close(done)
	}()

	// The broadcaster must keep running while the context is live; callers
	// that invoke it synchronously would never get past it.
	select {
	case <-done:
		t.Fatal("status broadcaster returned while context still active")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("status broadcaster did not stop on cancel")
	}
}
