package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/matchpulse/internal/domain/model"
)

// storeContract exercises the behaviour every Store must share. It is called
// inside a Convey block that builds a fresh store for each path.
func storeContract(ctx context.Context, s Store) {
	ns := uuid.NewString()[:8]
	matchID := "match-" + ns
	evID := func(n int) string { return fmt.Sprintf("%s-ev-%d", ns, n) }
	newEvent := func(n, period, minute, second int, side model.TeamSide, et model.EventType) model.Event {
		return model.Event{
			EventID:      evID(n),
			MatchID:      matchID,
			ProviderName: "api",
			Clock:        model.MatchClock{Period: period, Minute: minute, Second: second},
			TeamSide:     side,
			EventType:    et,
			Payload:      map[string]any{"xg": 0.25},
			IngestedAt:   time.Now().UTC().Truncate(time.Millisecond),
		}
	}
	ids := func(events []model.Event) []string {
		out := make([]string, 0, len(events))
		for _, e := range events {
			out = append(out, e.EventID)
		}
		return out
	}
	snapshot := func(n, minute int) model.AnalyticsSnapshot {
		return model.AnalyticsSnapshot{
			SnapshotID:       fmt.Sprintf("%s-snap-%d", ns, n),
			MatchID:          matchID,
			Clock:            model.MatchClock{Period: 1, Minute: minute},
			FeaturesByWindow: map[string]model.SideFeatures{"5m": {Home: model.Features{Shots: n}}},
			DerivedMetrics:   map[string]model.SideValues{model.MetricMomentum: {Home: 0.5, Away: 0.5}},
			Deltas:           model.EmptyDeltas(),
			Why:              []string{"line"},
			ModelVersion:     model.ModelVersion,
			CreatedAt:        time.Now().UTC().Truncate(time.Millisecond),
		}
	}

	So(s.Ping(ctx), ShouldBeNil)
	So(s.CreateMatch(ctx, model.NewMatch(matchID, "Home", "Away")), ShouldBeNil)

	Convey("Matches", func() {
		Convey("can be read back", func() {
			m, err := s.GetMatch(ctx, matchID)
			So(err, ShouldBeNil)
			So(m, ShouldResemble, model.NewMatch(matchID, "Home", "Away"))
		})

		Convey("reject duplicate ids", func() {
			err := s.CreateMatch(ctx, model.NewMatch(matchID, "X", "Y"))
			So(errors.Is(err, ErrConflict), ShouldBeTrue)
		})

		Convey("report unknown ids", func() {
			_, err := s.GetMatch(ctx, "missing-"+ns)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			err = s.SaveMatch(ctx, model.Match{MatchID: "missing-" + ns, Version: 1, Status: model.StatusLive, Clock: model.KickOff()})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("save only on top of the previous version", func() {
			m, _ := s.GetMatch(ctx, matchID)
			next := m.Apply(newEvent(1, 1, 3, 0, model.Home, model.EventGoal))
			So(s.SaveMatch(ctx, next), ShouldBeNil)

			stored, err := s.GetMatch(ctx, matchID)
			So(err, ShouldBeNil)
			So(stored.Version, ShouldEqual, 1)
			So(stored.Score.Home, ShouldEqual, 1)
			So(stored.Status, ShouldEqual, model.StatusLive)

			err = s.SaveMatch(ctx, next)
			So(errors.Is(err, ErrVersionConflict), ShouldBeTrue)
		})

		Convey("lose no update under concurrent saves", func() {
			m, _ := s.GetMatch(ctx, matchID)
			next := m.Apply(newEvent(1, 1, 3, 0, model.Home, model.EventShot))

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				ok, clash int
			)
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := s.RunInTx(ctx, func(ctx context.Context, r Repositories) error {
						if _, err := r.GetMatch(ctx, matchID); err != nil {
							return err
						}
						return r.SaveMatch(ctx, next)
					})
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						ok++
					case errors.Is(err, ErrVersionConflict):
						clash++
					}
				}()
			}
			wg.Wait()
			So(ok, ShouldEqual, 1)
			So(clash, ShouldEqual, 4)
		})
	})

	Convey("Events", func() {
		Convey("are inserted once per event id", func() {
			e := newEvent(1, 1, 1, 0, model.Home, model.EventShot)
			inserted, err := s.AddEventIfNew(ctx, e)
			So(err, ShouldBeNil)
			So(inserted, ShouldBeTrue)

			inserted, err = s.AddEventIfNew(ctx, e)
			So(err, ShouldBeNil)
			So(inserted, ShouldBeFalse)
		})

		Convey("are inserted once under concurrent delivery", func() {
			e := newEvent(7, 1, 1, 0, model.Home, model.EventShot)
			var (
				wg       sync.WaitGroup
				inserted sync.Map
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					ok, err := s.AddEventIfNew(ctx, e)
					if err == nil && ok {
						inserted.Store(i, true)
					}
				}(i)
			}
			wg.Wait()
			n := 0
			inserted.Range(func(_, _ any) bool { n++; return true })
			So(n, ShouldEqual, 1)
		})

		Convey("are returned by window in clock then arrival order", func() {
			fixtures := []model.Event{
				newEvent(1, 1, 4, 59, model.Home, model.EventShot),   // before 10m window
				newEvent(2, 1, 12, 0, model.Away, model.EventCorner), // inside, late
				newEvent(3, 1, 5, 0, model.Home, model.EventShot),    // start boundary
				newEvent(4, 1, 15, 30, model.Home, model.EventGoal),  // end boundary
				newEvent(5, 1, 15, 31, model.Home, model.EventShot),  // after end
				newEvent(6, 2, 10, 0, model.Home, model.EventShot),   // other period
				newEvent(8, 1, 12, 0, model.Home, model.EventFoul),   // same clock as 2, later arrival
			}
			for _, e := range fixtures {
				ok, err := s.AddEventIfNew(ctx, e)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			}
			other := newEvent(9, 1, 12, 0, model.Home, model.EventShot)
			other.MatchID = "other-" + ns
			_, err := s.AddEventIfNew(ctx, other)
			So(err, ShouldBeNil)

			end := model.MatchClock{Period: 1, Minute: 15, Second: 30}
			got, err := s.ListEventsInWindow(ctx, matchID, end, model.Window10m)
			So(err, ShouldBeNil)
			So(ids(got), ShouldResemble, []string{evID(3), evID(2), evID(8), evID(4)})

			got, err = s.ListEventsInWindow(ctx, matchID, end, model.Window5m)
			So(err, ShouldBeNil)
			So(ids(got), ShouldResemble, []string{evID(2), evID(8), evID(4)})

			Convey("and round-trip every field", func() {
				So(got[2].EventType, ShouldEqual, model.EventGoal)
				So(got[2].TeamSide, ShouldEqual, model.Home)
				So(got[2].Clock, ShouldResemble, model.MatchClock{Period: 1, Minute: 15, Second: 30})
				xg, ok := got[2].XG()
				So(ok, ShouldBeTrue)
				So(xg, ShouldEqual, 0.25)
			})

			Convey("and windows never reach into the previous period", func() {
				got, err := s.ListEventsInWindow(ctx, matchID, model.MatchClock{Period: 2, Minute: 3}, model.Window10m)
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
			})
		})

		Convey("are listed newest-last by arrival", func() {
			for n := 1; n <= 4; n++ {
				_, err := s.AddEventIfNew(ctx, newEvent(n, 1, 20-n, 0, model.Home, model.EventFoul))
				So(err, ShouldBeNil)
			}
			got, err := s.ListRecentEvents(ctx, matchID, 3)
			So(err, ShouldBeNil)
			So(ids(got), ShouldResemble, []string{evID(2), evID(3), evID(4)})

			got, err = s.ListRecentEvents(ctx, matchID, 50)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 4)

			_, err = s.ListRecentEvents(ctx, matchID, 0)
			So(errors.Is(err, ErrInvalidLimit), ShouldBeTrue)

			got, err = s.ListRecentEvents(ctx, "nobody-"+ns, 5)
			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)
		})
	})

	Convey("Snapshots", func() {
		Convey("report not found before the first one", func() {
			_, err := s.GetLatestSnapshot(ctx, matchID)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("are latest by creation, not by clock", func() {
			So(s.SaveSnapshot(ctx, snapshot(1, 30)), ShouldBeNil)
			So(s.SaveSnapshot(ctx, snapshot(2, 10)), ShouldBeNil)
			So(s.SaveSnapshot(ctx, snapshot(3, 20)), ShouldBeNil)

			latest, err := s.GetLatestSnapshot(ctx, matchID)
			So(err, ShouldBeNil)
			So(latest.SnapshotID, ShouldEqual, ns+"-snap-3")
			So(latest.FeaturesByWindow["5m"].Home.Shots, ShouldEqual, 3)
			So(latest.Deltas.FeaturesByWindow, ShouldNotBeNil)

			recent, err := s.ListRecentSnapshots(ctx, matchID, 2)
			So(err, ShouldBeNil)
			So(len(recent), ShouldEqual, 2)
			So(recent[0].SnapshotID, ShouldEqual, ns+"-snap-3")
			So(recent[1].SnapshotID, ShouldEqual, ns+"-snap-2")

			_, err = s.ListRecentSnapshots(ctx, matchID, -1)
			So(errors.Is(err, ErrInvalidLimit), ShouldBeTrue)
		})
	})

	Convey("Units of work", func() {
		Convey("see their own writes", func() {
			e := newEvent(1, 1, 9, 0, model.Home, model.EventShot)
			err := s.RunInTx(ctx, func(ctx context.Context, r Repositories) error {
				ok, err := r.AddEventIfNew(ctx, e)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)

				got, err := r.ListEventsInWindow(ctx, matchID, e.Clock, model.Window5m)
				So(err, ShouldBeNil)
				So(ids(got), ShouldResemble, []string{e.EventID})

				So(r.SaveSnapshot(ctx, snapshot(1, 9)), ShouldBeNil)
				latest, err := r.GetLatestSnapshot(ctx, matchID)
				So(err, ShouldBeNil)
				So(latest.SnapshotID, ShouldEqual, ns+"-snap-1")

				m, err := r.GetMatch(ctx, matchID)
				So(err, ShouldBeNil)
				return r.SaveMatch(ctx, m.Apply(e))
			})
			So(err, ShouldBeNil)

			m, _ := s.GetMatch(ctx, matchID)
			So(m.Version, ShouldEqual, 1)
		})

		Convey("discard every write on error", func() {
			e := newEvent(1, 1, 9, 0, model.Home, model.EventGoal)
			boom := errors.New("boom")
			err := s.RunInTx(ctx, func(ctx context.Context, r Repositories) error {
				if _, err := r.AddEventIfNew(ctx, e); err != nil {
					return err
				}
				m, err := r.GetMatch(ctx, matchID)
				if err != nil {
					return err
				}
				if err := r.SaveMatch(ctx, m.Apply(e)); err != nil {
					return err
				}
				if err := r.SaveSnapshot(ctx, snapshot(1, 9)); err != nil {
					return err
				}
				return boom
			})
			So(errors.Is(err, boom), ShouldBeTrue)

			m, _ := s.GetMatch(ctx, matchID)
			So(m.Version, ShouldEqual, 0)
			_, err = s.GetLatestSnapshot(ctx, matchID)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			recent, _ := s.ListRecentEvents(ctx, matchID, 10)
			So(recent, ShouldBeEmpty)

			Convey("and the event id can be inserted afterwards", func() {
				ok, err := s.AddEventIfNew(ctx, e)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			})
		})
	})
}
