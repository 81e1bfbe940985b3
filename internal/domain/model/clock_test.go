package model

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMatchClock(t *testing.T) {
	Convey("Given clock construction", t, func() {
		Convey("Valid values build a clock", func() {
			c, err := NewMatchClock(2, 47, 59)
			So(err, ShouldBeNil)
			So(c, ShouldResemble, MatchClock{Period: 2, Minute: 47, Second: 59})
			So(c.SecondsInPeriod(), ShouldEqual, 47*60+59)
		})

		Convey("Invalid values are rejected as validation errors", func() {
			for _, tc := range [][3]int{{0, 1, 1}, {1, -1, 0}, {1, 0, 60}, {1, 0, -1}} {
				_, err := NewMatchClock(tc[0], tc[1], tc[2])
				So(errors.Is(err, ErrInvalidClock), ShouldBeTrue)
				So(errors.Is(err, ErrValidation), ShouldBeTrue)
			}
		})
	})

	Convey("Given two clocks", t, func() {
		a := MatchClock{Period: 1, Minute: 44, Second: 30}
		b := MatchClock{Period: 2, Minute: 0, Second: 5}

		Convey("Period dominates ordering", func() {
			So(a.Compare(b), ShouldEqual, -1)
			So(b.Compare(a), ShouldEqual, 1)
			So(a.Before(b), ShouldBeTrue)
		})

		Convey("Within a period, seconds decide", func() {
			c := MatchClock{Period: 1, Minute: 44, Second: 31}
			So(a.Compare(c), ShouldEqual, -1)
			So(a.Compare(a), ShouldEqual, 0)
		})
	})
}

func TestScore(t *testing.T) {
	Convey("Given scores", t, func() {
		s, err := NewScore(2, 1)
		So(err, ShouldBeNil)
		So(s.GoalDiffFor(Home), ShouldEqual, 1)
		So(s.GoalDiffFor(Away), ShouldEqual, -1)

		_, err = NewScore(-1, 0)
		So(errors.Is(err, ErrInvalidScore), ShouldBeTrue)
	})
}

func TestRollingWindow(t *testing.T) {
	Convey("Given rolling windows", t, func() {
		Convey("Only 5 and 10 minutes are accepted", func() {
			w, err := NewRollingWindow(5)
			So(err, ShouldBeNil)
			So(w, ShouldResemble, Window5m)
			So(w.Label(), ShouldEqual, "5m")

			w, err = NewRollingWindow(10)
			So(err, ShouldBeNil)
			So(w.Minutes(), ShouldEqual, 10)

			_, err = NewRollingWindow(15)
			So(errors.Is(err, ErrInvalidWindow), ShouldBeTrue)
		})

		Convey("Bounds clamp at the start of the period", func() {
			start, end := Window10m.Bounds(MatchClock{Period: 1, Minute: 3, Second: 20})
			So(start, ShouldEqual, 0)
			So(end, ShouldEqual, 200)

			start, end = Window5m.Bounds(MatchClock{Period: 1, Minute: 12, Second: 0})
			So(start, ShouldEqual, 7*60)
			So(end, ShouldEqual, 12*60)
		})

		Convey("Contains is inclusive and never crosses periods", func() {
			end := MatchClock{Period: 2, Minute: 2, Second: 0}
			So(Window5m.Contains(end, MatchClock{Period: 2, Minute: 0, Second: 0}), ShouldBeTrue)
			So(Window5m.Contains(end, MatchClock{Period: 2, Minute: 2, Second: 0}), ShouldBeTrue)
			So(Window5m.Contains(end, MatchClock{Period: 2, Minute: 2, Second: 1}), ShouldBeFalse)
			So(Window5m.Contains(end, MatchClock{Period: 1, Minute: 45, Second: 0}), ShouldBeFalse)
		})
	})
}
