package room

import (
	"testing"
	"time"

	"github.com/mychat/chathub/internal/v1/wire"
)

func BenchmarkBroadcastFanOut(b *testing.B) {
	for _, subscribers := range []int{1, 10, 100} {
		b.Run(map[int]string{1: "1sub", 10: "10subs", 100: "100subs"}[subscribers], func(b *testing.B) {
			r := Spawn("bench", Config{
				HistoryLimit:    100,
				TTL:             time.Hour,
				BroadcastBuffer: 128,
			})
			defer func() {
				r.Close()
				<-r.Done()
			}()

			subs := make([]*Subscription, subscribers)
			for i := range subs {
				sub, ok := r.Join("user")
				if !ok {
					b.Fatal("join failed")
				}
				subs[i] = sub
				defer sub.Cancel()
				// Drain in the background so the buffers never fill.
				go func(s *Subscription) {
					for range s.Frames() {
					}
				}(sub)
			}

			ev := wire.NewMessage{Room: "bench", Name: "user", Text: "benchmark payload", TS: 1}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				r.Send(ev)
			}
		})
	}
}

func BenchmarkEncodeEvent(b *testing.B) {
	ev := wire.NewMessage{Room: "bench", Name: "user", Text: "benchmark payload", TS: 1}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		frame, err := wire.EncodeEvent(ev)
		if err != nil {
			b.Fatal(err)
		}
		_ = frame
	}
}
