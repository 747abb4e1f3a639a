package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test_namespace")
			subsystemOpt := WithSubsystem("test_subsystem")
			metricPrefixOpt := WithMetricPrefix("test_prefix")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			customLabelsOpt := WithCustomLabels(map[string]string{"env": "test"})

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(metricPrefixOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(customLabelsOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewMetricsManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "ecotogether")
				So(manager.subsystem, ShouldEqual, "submissions")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewMetricsManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("test_prefix"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithCustomLabels(map[string]string{"env": "test", "version": "1.0"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metric names carry the namespace, subsystem and prefix", func() {
				So(manager, ShouldNotBeNil)
				manager.awards.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_namespace_test_subsystem_test_prefix_awards_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When buckets arrive unsorted with duplicates", func() {
			in := []float64{5, 1, 5, 2.5}
			manager := NewMetricsManager(
				WithHistogramBuckets(in),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then they are sorted and deduplicated without touching the input", func() {
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 2.5, 5})
				So(in, ShouldResemble, []float64{5, 1, 5, 2.5})
			})
		})

		Convey("When custom labels are supplied", func() {
			labels := map[string]string{"region": "eu"}
			manager := NewMetricsManager(
				WithCustomLabels(labels),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)
			labels["region"] = "us"

			Convey("Then the manager keeps its own copy", func() {
				So(manager.customLabels["region"], ShouldEqual, "eu")
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording submission metrics", func() {
			before := testutil.ToFloat64(globalManager.submissionsEvaluated)
			RecordSubmissionEvaluated(12.5)
			RecordSubmissionEvaluated(8.0)

			Convey("Then the evaluation counter moves", func() {
				So(testutil.ToFloat64(globalManager.submissionsEvaluated)-before, ShouldEqual, 2)
			})

			Convey("And decisions are labeled by total", func() {
				c := globalManager.decisions.WithLabelValues("15")
				start := testutil.ToFloat64(c)
				RecordDecision(15)
				So(testutil.ToFloat64(c)-start, ShouldEqual, 1)
			})

			Convey("And the pending gauge is set", func() {
				UpdatePendingEvaluations(7)
				So(testutil.ToFloat64(globalManager.pendingEvaluations), ShouldEqual, 7)
			})
		})

		Convey("When recording photo and video checks", func() {
			Convey("Then capture checks split camera from non-camera", func() {
				cam := globalManager.captureChecks.WithLabelValues("camera")
				notCam := globalManager.captureChecks.WithLabelValues("not_camera")
				c0, n0 := testutil.ToFloat64(cam), testutil.ToFloat64(notCam)
				RecordCaptureCheck(true)
				RecordCaptureCheck(false)
				RecordCaptureCheck(false)
				So(testutil.ToFloat64(cam)-c0, ShouldEqual, 1)
				So(testutil.ToFloat64(notCam)-n0, ShouldEqual, 2)
			})

			Convey("And classification and motion recorders do not panic", func() {
				So(func() {
					RecordClassification(35.0, 91.2)
					RecordClassificationError()
					RecordMotionCheck("valid", 4_500_000, 120.0)
					RecordMotionCheck("undecodable", 0, 3.0)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording ledger metrics", func() {
			a0 := testutil.ToFloat64(globalManager.awards)
			p0 := testutil.ToFloat64(globalManager.awardedPoints)
			RecordAward(15)
			RecordAward(1)

			Convey("Then awards and points accumulate", func() {
				So(testutil.ToFloat64(globalManager.awards)-a0, ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.awardedPoints)-p0, ShouldEqual, 16)
			})

			Convey("And ledger errors are labeled by operation", func() {
				c := globalManager.ledgerErrors.WithLabelValues("award")
				start := testutil.ToFloat64(c)
				RecordLedgerError("award")
				So(testutil.ToFloat64(c)-start, ShouldEqual, 1)
			})

			Convey("And latency and duplicate recorders do not panic", func() {
				So(func() {
					RecordLedgerLatency("award", 2.5)
					RecordLedgerLatency("balance", 0.4)
					RecordConfirmDuplicate()
				}, ShouldNotPanic)
			})
		})

		Convey("When recording HTTP and error metrics", func() {
			So(func() {
				RecordHTTPRequest("/submissions", "POST", "200")
				RecordHTTPRequestDuration("/submissions", "POST", "200", 40.0)
				RecordErrorByComponent("ledger", "award_failed")
				RecordErrorByType("award_failed", "error")
				RecordErrorByEndpoint("/submissions/{id}/confirm", "POST", "conflict")
				RecordErrorLatency("ledger", "award_failed", 5.0)
			}, ShouldNotPanic)
		})

		Convey("When recording system metrics", func() {
			So(func() {
				UpdateSystemMemoryUsage(1024 * 1024 * 100)
				UpdateSystemGoroutineCount(42)
				RecordSystemGCPauseTime(1.0)
			}, ShouldNotPanic)
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		RecordAward(1)
		families, err := GetRegistry().Gather()

		Convey("Then it exposes only ecotogether metrics", func() {
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
			for _, f := range families {
				So(strings.HasPrefix(f.GetName(), "ecotogether_"), ShouldBeTrue)
			}
		})
	})
}
