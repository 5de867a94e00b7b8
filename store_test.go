package termsync

import "testing"

func snapWithBase(base uint64) *Snapshot {
	return &Snapshot{BaseRow: base}
}

func TestStoreSubscribePreseedsLatest(t *testing.T) {
	st := NewStore()
	st.Publish(snapWithBase(1))

	ch, cancel := st.Subscribe()
	defer cancel()

	select {
	case snap := <-ch:
		if snap.BaseRow != 1 {
			t.Errorf("preseed base = %d, want 1", snap.BaseRow)
		}
	default:
		t.Fatal("new subscriber did not receive the latest snapshot")
	}
}

func TestStoreReplacesStaleSnapshot(t *testing.T) {
	st := NewStore()
	ch, cancel := st.Subscribe()
	defer cancel()

	// Two publishes without a read in between: the buffered snapshot is
	// replaced, never queued behind.
	st.Publish(snapWithBase(1))
	st.Publish(snapWithBase(2))

	snap := <-ch
	if snap.BaseRow != 2 {
		t.Errorf("base = %d, want 2 (newest)", snap.BaseRow)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected queued snapshot with base %d", extra.BaseRow)
	default:
	}
}

func TestStoreLatest(t *testing.T) {
	st := NewStore()
	if st.Latest() != nil {
		t.Fatal("Latest on empty store should be nil")
	}
	st.Publish(snapWithBase(5))
	if got := st.Latest(); got == nil || got.BaseRow != 5 {
		t.Errorf("Latest = %+v, want base 5", got)
	}
}

func TestStoreCancelStopsDelivery(t *testing.T) {
	st := NewStore()
	ch, cancel := st.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("cancelled subscriber channel still open")
	}
	// Publishing after cancel must not panic on the closed channel.
	st.Publish(snapWithBase(1))
}

func TestStoreClose(t *testing.T) {
	st := NewStore()
	ch, cancel := st.Subscribe()
	defer cancel()

	st.Close()
	if _, ok := <-ch; ok {
		t.Error("subscriber channel open after Close")
	}
	st.Publish(snapWithBase(9))
	if st.Latest() != nil {
		t.Error("Publish after Close recorded a snapshot")
	}
}
