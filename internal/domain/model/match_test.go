package model

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMatchApply(t *testing.T) {
	Convey("Given a newly created match", t, func() {
		m := NewMatch("m1", "Reds", "Blues")

		So(m.Status, ShouldEqual, StatusScheduled)
		So(m.Clock, ShouldResemble, MatchClock{Period: 1})
		So(m.Score, ShouldResemble, Score{})
		So(m.Version, ShouldEqual, 0)

		Convey("When a home goal is applied", func() {
			e := Event{EventID: "e1", MatchID: "m1", Clock: MatchClock{Period: 1, Minute: 12, Second: 3}, TeamSide: Home, EventType: EventGoal}
			next := m.Apply(e)

			Convey("Then the match goes live and the score moves", func() {
				So(next.Status, ShouldEqual, StatusLive)
				So(next.Score, ShouldResemble, Score{Home: 1})
				So(next.Clock, ShouldResemble, e.Clock)
				So(next.Version, ShouldEqual, 1)
			})

			Convey("Then the original value is untouched", func() {
				So(m.Score, ShouldResemble, Score{})
				So(m.Version, ShouldEqual, 0)
			})
		})

		Convey("When an away red card is applied", func() {
			next := m.Apply(Event{Clock: MatchClock{Period: 1, Minute: 30}, TeamSide: Away, EventType: EventRed})
			So(next.AwayRedCards, ShouldEqual, 1)
			So(next.HomeRedCards, ShouldEqual, 0)
			So(next.ManAdvantage(), ShouldEqual, -1)
			So(next.RedCardsFor(Away), ShouldEqual, 1)
		})

		Convey("When non-scoring events are applied", func() {
			next := m
			for _, et := range []EventType{EventShot, EventCorner, EventFoul, EventYellow, EventSub} {
				next = next.Apply(Event{Clock: MatchClock{Period: 1, Minute: 5}, TeamSide: Home, EventType: et})
			}
			So(next.Score, ShouldResemble, Score{})
			So(next.HomeRedCards+next.AwayRedCards, ShouldEqual, 0)
			So(next.Version, ShouldEqual, 5)
		})

		Convey("When an event arrives with an earlier clock", func() {
			late := m.Apply(Event{Clock: MatchClock{Period: 1, Minute: 40}, TeamSide: Home, EventType: EventShot})
			early := late.Apply(Event{Clock: MatchClock{Period: 1, Minute: 10}, TeamSide: Home, EventType: EventShot})
			Convey("Then the clock is overwritten, not kept at the maximum", func() {
				So(early.Clock.Minute, ShouldEqual, 10)
			})
		})

		Convey("When the match is at full time", func() {
			ft := m
			ft.Status = StatusFullTime
			So(ft.Apply(Event{TeamSide: Home, EventType: EventShot}).Status, ShouldEqual, StatusFullTime)
		})
	})
}
