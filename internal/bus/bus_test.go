package bus

import "testing"

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := New()
	a := b.Subscribe()
	c := b.Subscribe()

	b.Publish()

	for i, ch := range []chan Signal{a, c} {
		select {
		case <-ch:
		default:
			t.Errorf("subscriber %d got no signal", i)
		}
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	b := New()
	ch := b.Subscribe()

	// No reader on ch; repeated publishes must coalesce, not block
	for i := 0; i < 10; i++ {
		b.Publish()
	}

	<-ch
	select {
	case <-ch:
		t.Error("signals were queued instead of coalesced")
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch := b.Subscribe()
	b.Unsubscribe(ch)

	if _, open := <-ch; open {
		t.Error("channel still open after Unsubscribe")
	}

	// Publishing after unsubscribe must not panic
	b.Publish()
}
