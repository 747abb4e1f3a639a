package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	. "github.com/smartystreets/goconvey/convey"
)

type recordingTransport struct {
	events []*sentry.Event
}

func (r *recordingTransport) Configure(sentry.ClientOptions)          {}
func (r *recordingTransport) SendEvent(e *sentry.Event)               { r.events = append(r.events, e) }
func (r *recordingTransport) Flush(_ time.Duration) bool              { return true }
func (r *recordingTransport) FlushWithContext(_ context.Context) bool { return true }
func (r *recordingTransport) Close()                                  {}

func TestInitSentry(t *testing.T) {
	Convey("Given no DSN", t, func() {
		flush, err := InitSentry("", "test", "dev")

		Convey("Then init is a no-op", func() {
			So(err, ShouldBeNil)
			So(flush, ShouldNotBeNil)
			So(func() { flush() }, ShouldNotPanic)
		})
	})

	Convey("Given a malformed DSN", t, func() {
		_, err := InitSentry("not a dsn", "test", "dev")

		Convey("Then init fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestCaptureErr(t *testing.T) {
	Convey("Given a hub with a recording transport", t, func() {
		transport := &recordingTransport{}
		client, err := sentry.NewClient(sentry.ClientOptions{
			Dsn:       "https://public@example.com/1",
			Transport: transport,
		})
		So(err, ShouldBeNil)
		hub := sentry.NewHub(client, sentry.NewScope())
		ctx := sentry.SetHubOnContext(context.Background(), hub)

		Convey("When capturing an error with tags", func() {
			CaptureErr(ctx, errors.New("ledger down"), map[string]string{"op": "award"})

			Convey("Then one tagged event is sent", func() {
				So(len(transport.events), ShouldEqual, 1)
				So(transport.events[0].Tags["op"], ShouldEqual, "award")
			})
		})

		Convey("When capturing nil", func() {
			CaptureErr(ctx, nil, nil)
			So(len(transport.events), ShouldEqual, 0)
		})
	})
}
