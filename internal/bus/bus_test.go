package bus

import "testing"

func Test_Bus_BroadcastDeliversToAllSubscribers(t *testing.T) {
	b := New()
	var gotA, gotB Event
	b.Subscribe("a", func(e Event) { gotA = e })
	b.Subscribe("b", func(e Event) { gotB = e })

	b.Broadcast(Event{Name: "chat.textDelta", Payload: "hi"})

	if gotA.Name != "chat.textDelta" || gotB.Name != "chat.textDelta" {
		t.Fatalf("expected both subscribers to receive the event, got %+v %+v", gotA, gotB)
	}
}

func Test_Bus_UnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	count := 0
	b.Subscribe("a", func(Event) { count++ })
	b.Unsubscribe("a")

	b.Broadcast(Event{Name: "chat.complete"})

	if count != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got count=%d", count)
	}
}
