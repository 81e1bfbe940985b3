package stream_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/matchpulse/internal/adapters/stream"
	"github.com/okian/matchpulse/internal/domain/model"
	"github.com/okian/matchpulse/internal/domain/types"
	"github.com/okian/matchpulse/pkg/logger"
)

type fakeSub struct {
	mu     sync.Mutex
	msgs   [][]byte
	fail   bool
	block  bool
	closed bool
	code   int
	reason string
}

func (f *fakeSub) Send(ctx context.Context, msg []byte) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.fail {
		return errors.New("broken pipe")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeSub) Close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.code = code
	f.reason = reason
	return nil
}

func (f *fakeSub) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.msgs...)
}

func (f *fakeSub) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newHub(opts ...stream.Option) *stream.Hub {
	return stream.NewHub(append([]stream.Option{stream.WithLogger(logger.NewNop())}, opts...)...)
}

func TestHubLimits(t *testing.T) {
	Convey("Given a hub with small limits", t, func() {
		h := newHub(stream.WithMaxTotal(3), stream.WithMaxPerMatch(2))

		Convey("The per-match limit rejects the third subscriber of a match", func() {
			So(h.Subscribe("m1", &fakeSub{}), ShouldBeTrue)
			So(h.Subscribe("m1", &fakeSub{}), ShouldBeTrue)
			So(h.Subscribe("m1", &fakeSub{}), ShouldBeFalse)
			So(h.SubscriberCount("m1"), ShouldEqual, 2)
		})

		Convey("The total limit rejects across matches", func() {
			So(h.Subscribe("m1", &fakeSub{}), ShouldBeTrue)
			So(h.Subscribe("m2", &fakeSub{}), ShouldBeTrue)
			So(h.Subscribe("m3", &fakeSub{}), ShouldBeTrue)
			So(h.Subscribe("m4", &fakeSub{}), ShouldBeFalse)
			So(h.TotalSubscribers(), ShouldEqual, 3)
			So(h.MatchCount(), ShouldEqual, 3)
		})

		Convey("Unsubscribe is idempotent and frees capacity", func() {
			a := &fakeSub{}
			So(h.Subscribe("m1", a), ShouldBeTrue)
			h.Unsubscribe("m1", a)
			h.Unsubscribe("m1", a)
			h.Unsubscribe("nope", a)
			So(h.SubscriberCount("m1"), ShouldEqual, 0)
			So(h.TotalSubscribers(), ShouldEqual, 0)
			So(h.MatchCount(), ShouldEqual, 0)
		})

		Convey("Subscribing the same subscriber twice counts once", func() {
			a := &fakeSub{}
			So(h.Subscribe("m1", a), ShouldBeTrue)
			So(h.Subscribe("m1", a), ShouldBeTrue)
			So(h.SubscriberCount("m1"), ShouldEqual, 1)
		})
	})
}

func TestHubDefaultLimitsUnderConcurrency(t *testing.T) {
	Convey("Given a hub with default limits", t, func() {
		h := newHub()

		Convey("Concurrent subscribers to one match stop at the per-match cap", func() {
			n := stream.DefaultMaxPerMatch + 1
			var (
				wg       sync.WaitGroup
				accepted atomic.Int32
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if h.Subscribe("m1", &fakeSub{}) {
						accepted.Add(1)
					}
				}()
			}
			wg.Wait()

			So(int(accepted.Load()), ShouldEqual, stream.DefaultMaxPerMatch)
			So(h.SubscriberCount("m1"), ShouldEqual, stream.DefaultMaxPerMatch)
		})

		Convey("Concurrent subscribers across matches stop at the total cap", func() {
			n := stream.DefaultMaxTotal + 10
			var (
				wg       sync.WaitGroup
				accepted atomic.Int32
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if h.Subscribe(fmt.Sprintf("m%d", i%10), &fakeSub{}) {
						accepted.Add(1)
					}
				}(i)
			}
			wg.Wait()

			So(int(accepted.Load()), ShouldEqual, stream.DefaultMaxTotal)
			So(h.TotalSubscribers(), ShouldEqual, stream.DefaultMaxTotal)
		})
	})
}

func TestHubBroadcast(t *testing.T) {
	Convey("Given subscribers on two matches", t, func() {
		h := newHub(stream.WithSendTimeout(50 * time.Millisecond))
		ctx := context.Background()
		a, b, other := &fakeSub{}, &fakeSub{}, &fakeSub{}
		So(h.Subscribe("m1", a), ShouldBeTrue)
		So(h.Subscribe("m1", b), ShouldBeTrue)
		So(h.Subscribe("m2", other), ShouldBeTrue)

		match := model.NewMatch("m1", "Home FC", "Away FC")
		summary := model.EventSummary{EventID: "e1", Clock: model.KickOff(), TeamSide: model.Home, EventType: model.EventShot}

		Convey("When an update is broadcast for m1", func() {
			h.Broadcast(ctx, "m1", summary, match, nil)

			Convey("Then only m1 subscribers receive it", func() {
				So(a.received(), ShouldHaveLength, 1)
				So(b.received(), ShouldHaveLength, 1)
				So(other.received(), ShouldBeEmpty)

				var update types.StreamUpdate
				So(json.Unmarshal(a.received()[0], &update), ShouldBeNil)
				So(update.Type, ShouldEqual, types.StreamTypeUpdate)
				So(update.Event.EventID, ShouldEqual, "e1")
				So(update.MatchState.MatchID, ShouldEqual, "m1")
				So(update.AnalyticsLatest, ShouldBeNil)
			})
		})

		Convey("When one subscriber fails and one hangs", func() {
			broken := &fakeSub{fail: true}
			slow := &fakeSub{block: true}
			So(h.Subscribe("m1", broken), ShouldBeTrue)
			So(h.Subscribe("m1", slow), ShouldBeTrue)

			h.Broadcast(ctx, "m1", summary, match, nil)

			Convey("Then both are removed and closed while healthy ones still get the update", func() {
				So(broken.isClosed(), ShouldBeTrue)
				So(slow.isClosed(), ShouldBeTrue)
				So(h.SubscriberCount("m1"), ShouldEqual, 2)
				So(a.received(), ShouldHaveLength, 1)
			})
		})

		Convey("Broadcasting to a match without subscribers is a no-op", func() {
			h.Broadcast(ctx, "m9", summary, match, nil)
			So(h.TotalSubscribers(), ShouldEqual, 3)
		})

		Convey("When the hub is closed", func() {
			h.Close()

			Convey("Then every subscriber is closed and new ones are rejected", func() {
				So(a.isClosed(), ShouldBeTrue)
				So(other.isClosed(), ShouldBeTrue)
				So(h.TotalSubscribers(), ShouldEqual, 0)
				So(h.Subscribe("m1", &fakeSub{}), ShouldBeFalse)
			})
		})
	})
}
