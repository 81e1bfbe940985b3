package simulator

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/matchpulse/internal/domain/model"
)

func TestGenerate(t *testing.T) {
	Convey("Given the match event generator", t, func() {
		Convey("The same seed replays the same match", func() {
			a := Generate("m1", 42, DefaultHalfMinutes, DefaultEventProbability)
			b := Generate("m1", 42, DefaultHalfMinutes, DefaultEventProbability)
			So(len(a), ShouldBeGreaterThan, 0)
			So(b, ShouldResemble, a)
		})

		Convey("A different seed gives a different match", func() {
			a := Generate("m1", 42, DefaultHalfMinutes, DefaultEventProbability)
			b := Generate("m1", 7, DefaultHalfMinutes, DefaultEventProbability)
			So(b, ShouldNotResemble, a)
		})

		Convey("Events come out in clock order with at most one per minute", func() {
			events := Generate("m1", 3, DefaultHalfMinutes, 0.9)
			for i := 1; i < len(events); i++ {
				prev, cur := events[i-1].Clock, events[i].Clock
				So(cur.Period*1000+cur.Minute, ShouldBeGreaterThan, prev.Period*1000+prev.Minute)
			}
		})

		Convey("Every event is well formed", func() {
			for i, e := range Generate("derby", 11, 10, 1) {
				want := fmt.Sprintf("sim-derby-p%d-%02d-%02d-%d", e.Clock.Period, e.Clock.Minute, e.Clock.Second, i+1)
				So(e.EventID, ShouldEqual, want)
				So(e.ProviderEventID, ShouldEqual, e.EventID)
				So(e.ProviderName, ShouldEqual, ProviderName)
				So(e.MatchID, ShouldEqual, "derby")
				So(e.Clock.Minute, ShouldBeLessThan, 10)
				So(e.Clock.Second, ShouldBeBetweenOrEqual, 0, 59)
				So([]string{"HOME", "AWAY"}, ShouldContain, e.TeamSide)

				_, err := model.ParseEventType(e.EventType)
				So(err, ShouldBeNil)

				if carriesXG(model.EventType(e.EventType)) {
					xg, ok := e.Payload["xg"].(float64)
					So(ok, ShouldBeTrue)
					So(xg, ShouldBeBetweenOrEqual, xgMin, xgMax)
				} else {
					So(e.Payload, ShouldBeNil)
				}
			}
		})

		Convey("A probability of one fills every minute of both periods", func() {
			So(len(Generate("m1", 1, 10, 1)), ShouldEqual, 20)
		})

		Convey("A probability of zero yields nothing", func() {
			So(Generate("m1", 1, 10, 0), ShouldBeEmpty)
		})

		Convey("A non-positive half length falls back to a full half", func() {
			events := Generate("m1", 1, 0, 1)
			So(len(events), ShouldEqual, 2*DefaultHalfMinutes)
		})
	})
}

func TestPhaseWeights(t *testing.T) {
	Convey("Given the phase weight tables", t, func() {
		Convey("The phase changes at minutes 15 and 30", func() {
			So(phaseWeights(0), ShouldResemble, earlyWeights)
			So(phaseWeights(14), ShouldResemble, earlyWeights)
			So(phaseWeights(15), ShouldResemble, midWeights)
			So(phaseWeights(29), ShouldResemble, midWeights)
			So(phaseWeights(30), ShouldResemble, lateWeights)
			So(phaseWeights(44), ShouldResemble, lateWeights)
		})

		Convey("Each table has a weight per event type", func() {
			n := len(model.EventTypes())
			So(earlyWeights, ShouldHaveLength, n)
			So(midWeights, ShouldHaveLength, n)
			So(lateWeights, ShouldHaveLength, n)
		})

		Convey("Zero-weight types are never drawn", func() {
			for _, e := range Generate("m1", 5, 14, 1) {
				So(e.EventType, ShouldNotEqual, string(model.EventRed))
				So(e.EventType, ShouldNotEqual, string(model.EventGoal))
			}
		})
	})
}
