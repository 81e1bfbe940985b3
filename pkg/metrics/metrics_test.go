package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.ingestAccepted.Inc()
				So(testutil.ToFloat64(manager.ingestAccepted), ShouldEqual, 1)

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_ingest_events_accepted_total"], ShouldBeTrue)
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Ingest counters move", func() {
			before := testutil.ToFloat64(globalManager.ingestDuplicate)
			RecordIngestDuplicate()
			So(testutil.ToFloat64(globalManager.ingestDuplicate), ShouldEqual, before+1)

			v, err := CounterValue("matchpulse_ingest_events_duplicate_total")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, before+1)
		})

		Convey("Stream gauges are set, not added", func() {
			UpdateStreamSubscribers(5, 2)
			UpdateStreamSubscribers(3, 1)
			So(testutil.ToFloat64(globalManager.streamSubscribers), ShouldEqual, 3)
			So(testutil.ToFloat64(globalManager.streamMatches), ShouldEqual, 1)
		})

		Convey("Labelled collectors accept their labels", func() {
			So(func() {
				RecordSubscribeRejected("per_match")
				RecordStoreUpdateLatency("memory", 1.5)
				RecordStoreQueryLatency("badger", 0.2)
				RecordStoreTxRetry("badger")
				UpdateStoreRecords("events", 10)
				RecordHTTPRequest("/api/v1/events", "POST", "200")
				RecordHTTPRequestDuration("/api/v1/events", "POST", "200", 3)
				RecordErrorByComponent("api", "bad_request")
				RecordErrorByType("validation", "low")
				RecordErrorByEndpoint("/api/v1/events", "POST", "bad_request")
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.subscribeRejected.WithLabelValues("per_match")), ShouldBeGreaterThanOrEqualTo, 1)
		})

		Convey("Every unlabelled recorder is wired", func() {
			So(func() {
				RecordIngestAccepted()
				RecordIngestUnknownMatch()
				RecordIngestFailed()
				RecordIngestRetry()
				RecordIngestLatency(2)
				RecordAnalyticsLatency(0.3)
				RecordSnapshotCreated()
				RecordMatchCreated()
				RecordBroadcastDelivered()
				RecordBroadcastFailed()
				RecordBroadcastDropped()
				RecordBroadcastLatency(4)
				UpdateQueueSize(1)
				UpdateQueueCapacity(10)
				UpdateQueueUtilization(10)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(1)
				UpdateWorkerCount(2)
				UpdateWorkerActiveCount(1)
				UpdateWorkerIdleCount(1)
				RecordWorkerProcessingLatency(1)
				RecordWorkerError()
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.4)
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldEqual, customRegistry)
		})

		Convey("Unknown counters read as zero", func() {
			v, err := CounterValue("does_not_exist")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 0)
		})
	})
}
