package repository

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/matchpulse/internal/domain/model"
	"github.com/okian/matchpulse/pkg/logger"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a memory store", t, func() {
		s := NewMemoryStore(ctx, WithMemoryLogger(logger.NewNop()), WithMetricsUpdateInterval(10*time.Millisecond))
		Reset(func() { _ = s.Close() })

		So(s.Kind(), ShouldEqual, KindMemory)
		storeContract(ctx, s)
	})

	Convey("Given a closed memory store", t, func() {
		s := NewMemoryStore(ctx, WithMemoryLogger(logger.NewNop()))
		So(s.Close(), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		So(s.Ping(ctx), ShouldEqual, ErrClosed)
		So(s.CreateMatch(ctx, model.NewMatch("m", "a", "b")), ShouldEqual, ErrClosed)
	})
}

func TestEventIndex(t *testing.T) {
	Convey("Given an event index filled out of clock order", t, func() {
		var ix eventIndex
		keys := []clockKey{
			{period: 1, second: 300, seq: 0},
			{period: 1, second: 60, seq: 1},
			{period: 2, second: 60, seq: 2},
			{period: 1, second: 300, seq: 3},
			{period: 1, second: 0, seq: 4},
		}
		for _, k := range keys {
			ix.add(k)
		}
		for seq := uint64(5); seq < 1005; seq++ {
			ix.add(clockKey{period: 3, second: int(seq), seq: seq})
		}

		Convey("Range queries return clock order with arrival tie-break", func() {
			So(ix.window(1, 0, 300), ShouldResemble, []uint64{4, 1, 0, 3})
			So(ix.window(1, 61, 299), ShouldBeEmpty)
			So(ix.window(2, 0, 3600), ShouldResemble, []uint64{2})
		})

		Convey("Sizes are maintained through rotations", func() {
			So(ix.len(), ShouldEqual, 1005)
			So(len(ix.window(3, 0, 1<<30)), ShouldEqual, 1000)
		})
	})
}
