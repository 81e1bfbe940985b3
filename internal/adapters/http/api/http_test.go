package api_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/matchpulse/internal/adapters/http/api"
	"github.com/okian/matchpulse/internal/adapters/repository"
	"github.com/okian/matchpulse/internal/adapters/stream"
	service "github.com/okian/matchpulse/internal/app"
	"github.com/okian/matchpulse/internal/domain/types"
	"github.com/okian/matchpulse/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type harness struct {
	srv *httptest.Server
	svc *service.Service
	hub *stream.Hub
}

func newHarness(opts ...api.Option) *harness {
	hub := stream.NewHub(stream.WithMaxPerMatch(1), stream.WithLogger(logger.NewNop()))
	svc := service.New(
		service.WithStore(repository.NewMemoryStore(context.Background())),
		service.WithHub(hub),
		service.WithWorkerCount(2),
		service.WithLogger(logger.NewNop()),
	)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}

	r := chi.NewRouter()
	api.NewServer(svc, hub, append([]api.Option{api.WithLogger(logger.NewNop())}, opts...)...).Register(context.Background(), r)
	return &harness{srv: httptest.NewServer(r), svc: svc, hub: hub}
}

func (h *harness) close() {
	h.srv.Close()
	h.svc.Stop()
}

func (h *harness) do(method, path, body string) (int, []byte) {
	req, err := http.NewRequest(method, h.srv.URL+path, strings.NewReader(body))
	if err != nil {
		panic(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

func (h *harness) dial(matchID string) (*websocket.Conn, error) {
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws/v2/matches/" + matchID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	return conn, err
}

const createM1 = `{"match_id":"m1","home_team":"Home FC","away_team":"Away FC"}`

func shotBody(id string, minute int) string {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(map[string]any{
		"event_id":   id,
		"match_id":   "m1",
		"clock":      map[string]int{"period": 1, "minute": minute, "second": 0},
		"team_side":  "HOME",
		"event_type": "SHOT",
		"payload":    map[string]any{"xg": 0.25},
	})
	return buf.String()
}

type ingestBody struct {
	Accepted        bool             `json:"accepted"`
	Deduplicated    bool             `json:"deduplicated"`
	MatchState      types.MatchState `json:"match_state"`
	AnalyticsLatest *types.Snapshot  `json:"analytics_latest"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestMatchRoutes(t *testing.T) {
	Convey("Given the API server", t, func() {
		h := newHarness()
		defer h.close()

		Convey("Creating a match returns 201 with its state", func() {
			code, body := h.do(http.MethodPost, "/api/v1/matches", createM1)
			So(code, ShouldEqual, http.StatusCreated)

			var state types.MatchState
			So(json.Unmarshal(body, &state), ShouldBeNil)
			So(state.MatchID, ShouldEqual, "m1")
			So(state.Status, ShouldEqual, "SCHEDULED")
			So(state.Clock, ShouldResemble, types.Clock{Period: 1})

			Convey("And creating it again is a conflict", func() {
				code, body := h.do(http.MethodPost, "/api/v1/matches", createM1)
				So(code, ShouldEqual, http.StatusConflict)
				var e errorBody
				So(json.Unmarshal(body, &e), ShouldBeNil)
				So(e.Code, ShouldEqual, "conflict")
			})

			Convey("And its state can be read", func() {
				code, _ := h.do(http.MethodGet, "/api/v1/matches/m1/state", "")
				So(code, ShouldEqual, http.StatusOK)
			})

			Convey("And it has no analytics yet", func() {
				code, _ := h.do(http.MethodGet, "/api/v1/matches/m1/analytics/latest", "")
				So(code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("Invalid match bodies are rejected", func() {
			code, body := h.do(http.MethodPost, "/api/v1/matches", `{"match_id":"","home_team":"a"}`)
			So(code, ShouldEqual, http.StatusBadRequest)
			var e errorBody
			So(json.Unmarshal(body, &e), ShouldBeNil)
			So(e.Code, ShouldEqual, "bad_request")
			So(e.Message, ShouldContainSubstring, "match_id")

			code, _ = h.do(http.MethodPost, "/api/v1/matches", `not json`)
			So(code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Unknown matches return 404", func() {
			for _, path := range []string{
				"/api/v1/matches/nope/state",
				"/api/v1/matches/nope/analytics/latest",
				"/api/v1/matches/nope/analytics/recent",
				"/api/v1/matches/nope/events/recent",
			} {
				code, _ := h.do(http.MethodGet, path, "")
				So(code, ShouldEqual, http.StatusNotFound)
			}
		})
	})
}

func TestEventRoutes(t *testing.T) {
	Convey("Given a created match", t, func() {
		h := newHarness()
		defer h.close()
		code, _ := h.do(http.MethodPost, "/api/v1/matches", createM1)
		So(code, ShouldEqual, http.StatusCreated)

		Convey("When a shot is posted", func() {
			code, body := h.do(http.MethodPost, "/api/v1/events", shotBody("e1", 5))
			So(code, ShouldEqual, http.StatusOK)

			var res ingestBody
			So(json.Unmarshal(body, &res), ShouldBeNil)

			Convey("Then it is accepted with analytics", func() {
				So(res.Accepted, ShouldBeTrue)
				So(res.Deduplicated, ShouldBeFalse)
				So(res.MatchState.Status, ShouldEqual, "LIVE")
				So(res.MatchState.Version, ShouldEqual, 1)
				So(res.AnalyticsLatest, ShouldNotBeNil)
				So(res.AnalyticsLatest.DerivedMetrics["pressure_index"]["HOME"], ShouldEqual, 1.5)
				So(res.AnalyticsLatest.ModelVersion, ShouldEqual, "v1")
			})

			Convey("And posting it again is deduplicated", func() {
				code, body := h.do(http.MethodPost, "/api/v1/events", shotBody("e1", 5))
				So(code, ShouldEqual, http.StatusOK)
				var again ingestBody
				So(json.Unmarshal(body, &again), ShouldBeNil)
				So(again.Deduplicated, ShouldBeTrue)
				So(again.MatchState.Version, ShouldEqual, 1)
				So(again.AnalyticsLatest.SnapshotID, ShouldEqual, res.AnalyticsLatest.SnapshotID)
			})

			Convey("And reposting its id against an unknown match is 404", func() {
				body := strings.Replace(shotBody("e1", 5), `"m1"`, `"ghost"`, 1)
				code, _ := h.do(http.MethodPost, "/api/v1/events", body)
				So(code, ShouldEqual, http.StatusNotFound)
			})

			Convey("And the recent reads return it", func() {
				code, body := h.do(http.MethodGet, "/api/v1/matches/m1/events/recent?limit=5", "")
				So(code, ShouldEqual, http.StatusOK)
				var events []types.Event
				So(json.Unmarshal(body, &events), ShouldBeNil)
				So(events, ShouldHaveLength, 1)
				So(events[0].ProviderName, ShouldEqual, "api")

				code, body = h.do(http.MethodGet, "/api/v1/matches/m1/analytics/recent", "")
				So(code, ShouldEqual, http.StatusOK)
				var snaps []types.Snapshot
				So(json.Unmarshal(body, &snaps), ShouldBeNil)
				So(snaps, ShouldHaveLength, 1)
			})

			Convey("And a bad limit is rejected", func() {
				code, _ := h.do(http.MethodGet, "/api/v1/matches/m1/events/recent?limit=zero", "")
				So(code, ShouldEqual, http.StatusBadRequest)
				code, _ = h.do(http.MethodGet, "/api/v1/matches/m1/events/recent?limit=0", "")
				So(code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("Events for unknown matches return 404", func() {
			body := strings.Replace(shotBody("e9", 1), `"m1"`, `"ghost"`, 1)
			code, _ := h.do(http.MethodPost, "/api/v1/events", body)
			So(code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Malformed events return 400", func() {
			for _, body := range []string{
				strings.Replace(shotBody("e2", 1), `"HOME"`, `"home"`, 1),
				strings.Replace(shotBody("e2", 1), `"SHOT"`, `"DIVE"`, 1),
				strings.Replace(shotBody("e2", 1), `"second":0`, `"second":60`, 1),
				strings.Replace(shotBody("e2", 1), `"period":1`, `"period":0`, 1),
				`{"event_id":"e2","match_id":"m1","team_side":"HOME","event_type":"SHOT"}`,
			} {
				code, _ := h.do(http.MethodPost, "/api/v1/events", body)
				So(code, ShouldEqual, http.StatusBadRequest)
			}
		})
	})
}

func TestIngestRateLimit(t *testing.T) {
	Convey("Given a server limiting ingest to one request per minute", t, func() {
		h := newHarness(api.WithIngestRateLimit(1, time.Minute))
		defer h.close()
		code, _ := h.do(http.MethodPost, "/api/v1/matches", createM1)
		So(code, ShouldEqual, http.StatusCreated)

		Convey("The second event is rejected with 429", func() {
			code, _ := h.do(http.MethodPost, "/api/v1/events", shotBody("e1", 1))
			So(code, ShouldEqual, http.StatusOK)
			code, body := h.do(http.MethodPost, "/api/v1/events", shotBody("e2", 2))
			So(code, ShouldEqual, http.StatusTooManyRequests)
			var e errorBody
			So(json.Unmarshal(body, &e), ShouldBeNil)
			So(e.Code, ShouldEqual, "rate_limited")
		})
	})
}

func TestSystemRoutes(t *testing.T) {
	Convey("Given the API server", t, func() {
		h := newHarness()
		defer h.close()

		Convey("Health and readiness report ok", func() {
			code, body := h.do(http.MethodGet, "/health", "")
			So(code, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, `"ok"`)

			code, body = h.do(http.MethodGet, "/ready", "")
			So(code, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, `"ready"`)

			code, _ = h.do(http.MethodGet, "/api/v1/health", "")
			So(code, ShouldEqual, http.StatusOK)
		})

		Convey("Stats expose the service state", func() {
			code, body := h.do(http.MethodGet, "/stats", "")
			So(code, ShouldEqual, http.StatusOK)
			var stats map[string]any
			So(json.Unmarshal(body, &stats), ShouldBeNil)
			So(stats["started"], ShouldEqual, true)
			So(stats["store"], ShouldEqual, "memory")
		})

		Convey("Metrics are served in the Prometheus format", func() {
			code, body := h.do(http.MethodGet, "/metrics", "")
			So(code, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, "matchpulse_")
		})

		Convey("Readiness fails once the service is stopped", func() {
			h.svc.Stop()
			code, _ := h.do(http.MethodGet, "/ready", "")
			So(code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func readJSON(conn *websocket.Conn, v any) error {
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		return err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func TestStreamRoutes(t *testing.T) {
	Convey("Given a created match", t, func() {
		h := newHarness()
		defer h.close()
		code, _ := h.do(http.MethodPost, "/api/v1/matches", createM1)
		So(code, ShouldEqual, http.StatusCreated)

		Convey("Test broadcast without subscribers is 404", func() {
			code, _ := h.do(http.MethodPost, "/ws/v2/matches/m1/test-broadcast", "")
			So(code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When a client connects to the stream", func() {
			conn, err := h.dial("m1")
			So(err, ShouldBeNil)
			defer conn.Close()

			var hello types.StreamControl
			So(readJSON(conn, &hello), ShouldBeNil)
			So(hello, ShouldResemble, types.StreamControl{Type: "connected", MatchID: "m1"})

			Convey("Then an ingested event is pushed to it", func() {
				code, _ := h.do(http.MethodPost, "/api/v1/events", shotBody("e1", 3))
				So(code, ShouldEqual, http.StatusOK)

				var update types.StreamUpdate
				So(readJSON(conn, &update), ShouldBeNil)
				So(update.Type, ShouldEqual, "update")
				So(update.Event.EventID, ShouldEqual, "e1")
				So(update.MatchState.Version, ShouldEqual, 1)
				So(update.AnalyticsLatest, ShouldNotBeNil)
			})

			Convey("Then a test broadcast reaches it", func() {
				code, body := h.do(http.MethodPost, "/ws/v2/matches/m1/test-broadcast", "")
				So(code, ShouldEqual, http.StatusOK)
				So(string(body), ShouldContainSubstring, `"subscriber_count":1`)

				var update types.StreamUpdate
				So(readJSON(conn, &update), ShouldBeNil)
				So(update.Event.EventID, ShouldEqual, "test-event")
			})

			Convey("Then a ping text frame is answered", func() {
				So(conn.WriteMessage(websocket.TextMessage, []byte("ping")), ShouldBeNil)
				var pong types.StreamControl
				So(readJSON(conn, &pong), ShouldBeNil)
				So(pong.Type, ShouldEqual, "pong")
			})

			Convey("Then a second client over the per-match limit is closed with 1008", func() {
				extra, err := h.dial("m1")
				So(err, ShouldBeNil)
				defer extra.Close()

				var msg types.StreamControl
				err = readJSON(extra, &msg)
				var closeErr *websocket.CloseError
				So(errors.As(err, &closeErr), ShouldBeTrue)
				So(closeErr.Code, ShouldEqual, websocket.ClosePolicyViolation)
				So(closeErr.Text, ShouldEqual, "Connection limit reached")
			})
		})
	})
}
