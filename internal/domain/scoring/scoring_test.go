package scoring_test

import (
	"testing"

	"github.com/okian/ecotogether/internal/domain/model"
	scoring "github.com/okian/ecotogether/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEngine_Score(t *testing.T) {
	Convey("Given a default scoring engine", t, func() {
		engine := scoring.NewEngine()

		Convey("When both photo and video qualify", func() {
			d := engine.Score(scoring.Input{Confidence: 60.0, FromCamera: true, MotionValid: true})

			Convey("Then the combo total overrides the naive sum", func() {
				So(d, ShouldResemble, model.ScoreDecision{PhotoPoints: 1, VideoPoints: 10, TotalPoints: 15})
				So(d.TotalPoints, ShouldNotEqual, d.PhotoPoints+d.VideoPoints)
			})
		})

		Convey("When only the photo qualifies", func() {
			d := engine.Score(scoring.Input{Confidence: 60.0, FromCamera: true})

			Convey("Then one point is awarded", func() {
				So(d, ShouldResemble, model.ScoreDecision{PhotoPoints: 1, TotalPoints: 1})
			})
		})

		Convey("When only the video qualifies", func() {
			d := engine.Score(scoring.Input{Confidence: 0, FromCamera: false, MotionValid: true})

			Convey("Then ten points are awarded", func() {
				So(d, ShouldResemble, model.ScoreDecision{VideoPoints: 10, TotalPoints: 10})
			})
		})

		Convey("When confidence is just below the threshold", func() {
			d := engine.Score(scoring.Input{Confidence: 59.9, FromCamera: true})

			Convey("Then nothing is awardable", func() {
				So(d.TotalPoints, ShouldEqual, 0)
				So(d.Awardable(), ShouldBeFalse)
			})
		})

		Convey("When the photo is not from a camera", func() {
			Convey("Then no confidence earns photo points", func() {
				for _, c := range []float64{0, 59.9, 60, 75, 99.99, 100} {
					So(engine.Score(scoring.Input{Confidence: c}).PhotoPoints, ShouldEqual, 0)
				}
			})
		})

		Convey("When sweeping confidence for camera photos", func() {
			Convey("Then photo points are a step function at 60 inclusive", func() {
				for c := 0.0; c <= 100.0; c += 0.5 {
					want := 0
					if c >= 60.0 {
						want = 1
					}
					So(engine.Score(scoring.Input{Confidence: c, FromCamera: true}).PhotoPoints, ShouldEqual, want)
				}
			})
		})

		Convey("Then every decision total is one of 0, 1, 10, 15", func() {
			for _, cam := range []bool{false, true} {
				for _, motion := range []bool{false, true} {
					for _, c := range []float64{0, 59.9, 60, 100} {
						total := engine.Score(scoring.Input{Confidence: c, FromCamera: cam, MotionValid: motion}).TotalPoints
						So(total, ShouldBeIn, []int{0, 1, 10, 15})
					}
				}
			}
		})
	})
}

func TestEngine_Options(t *testing.T) {
	Convey("Given an engine with a custom threshold and points", t, func() {
		engine := scoring.NewEngine(
			scoring.WithConfidenceThreshold(80),
			scoring.WithPoints(2, 20, 30),
		)

		Convey("Then the new threshold applies", func() {
			So(engine.ConfidenceThreshold(), ShouldEqual, 80)
			So(engine.Score(scoring.Input{Confidence: 79.9, FromCamera: true}).TotalPoints, ShouldEqual, 0)
			So(engine.Score(scoring.Input{Confidence: 80, FromCamera: true}).TotalPoints, ShouldEqual, 2)
			So(engine.Score(scoring.Input{Confidence: 80, FromCamera: true, MotionValid: true}).TotalPoints, ShouldEqual, 30)
		})
	})

	Convey("Given invalid options", t, func() {
		engine := scoring.NewEngine(
			scoring.WithConfidenceThreshold(150),
			scoring.WithPoints(0, 10, 15),
		)

		Convey("Then defaults are kept", func() {
			So(engine.ConfidenceThreshold(), ShouldEqual, scoring.DefaultConfidenceThreshold)
			So(engine.Score(scoring.Input{Confidence: 60, FromCamera: true, MotionValid: true}).TotalPoints, ShouldEqual, 15)
		})
	})
}
