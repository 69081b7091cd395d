package chat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tallybot/tally/internal/domain/model"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDecodeEvent(t *testing.T) {
	Convey("Given frames arriving on the stream", t, func() {
		const channel = "C123"
		const trigger = "tally"

		Convey("When the text matches the trigger exactly", func() {
			event, ok, err := decodeEvent([]byte(`{"type":"message","channel":"C123","user":"U1","text":"tally"}`), channel, trigger)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(event, ShouldResemble, model.Event{Kind: model.Qualifying, UserID: "U1"})
		})

		Convey("When the text is anything else", func() {
			event, ok, err := decodeEvent([]byte(`{"type":"message","channel":"C123","user":"U1","text":"tally!"}`), channel, trigger)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(event.Kind, ShouldEqual, model.NonQualifying)
		})

		Convey("When the message is from another channel", func() {
			_, ok, err := decodeEvent([]byte(`{"type":"message","channel":"C999","user":"U1","text":"tally"}`), channel, trigger)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("When the frame is not a message", func() {
			_, ok, err := decodeEvent([]byte(`{"type":"presence_change","user":"U1"}`), channel, trigger)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("When the message has no user id", func() {
			_, _, err := decodeEvent([]byte(`{"type":"message","channel":"C123","text":"tally"}`), channel, trigger)
			So(errors.Is(err, ErrMissingUser), ShouldBeTrue)
		})

		Convey("When the frame is not valid JSON", func() {
			_, _, err := decodeEvent([]byte(`{nope`), channel, trigger)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestResolveMetadata(t *testing.T) {
	Convey("Given a hello frame", t, func() {
		hello := helloFrame{
			Type: "hello",
			Users: []userInfo{
				{ID: "U1", Name: "alice"},
				{ID: "U2", Name: "bob"},
				{ID: "", Name: "ghost"},
			},
			Channels: []channelInfo{
				{ID: "C1", Name: "checkins"},
				{ID: "C2", Name: "general"},
			},
		}

		Convey("When both channels resolve", func() {
			meta, err := resolveMetadata(hello, "checkins", "general")
			So(err, ShouldBeNil)
			So(meta.QualifyingChannelID, ShouldEqual, "C1")
			So(meta.ReportChannelID, ShouldEqual, "C2")
			So(meta.Directory, ShouldResemble, map[string]string{"U1": "alice", "U2": "bob"})
		})

		Convey("When the watched channel is missing", func() {
			_, err := resolveMetadata(hello, "nope", "general")
			So(errors.Is(err, ErrChannelNotFound), ShouldBeTrue)
		})

		Convey("When the report channel is missing", func() {
			_, err := resolveMetadata(hello, "checkins", "nope")
			So(errors.Is(err, ErrChannelNotFound), ShouldBeTrue)
		})
	})
}

func TestHTTPSender(t *testing.T) {
	Convey("Given a post-message endpoint", t, func() {
		var gotAuth, gotBody string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			buf := make([]byte, r.ContentLength)
			_, _ = r.Body.Read(buf)
			gotBody = string(buf)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		sender := NewHTTPSender(srv.URL, "secret")

		Convey("When sending a message", func() {
			err := sender.Send(context.Background(), "C2", "hello")

			Convey("Then the request carries the token and payload", func() {
				So(err, ShouldBeNil)
				So(gotAuth, ShouldEqual, "Bearer secret")
				So(gotBody, ShouldContainSubstring, `"channel":"C2"`)
				So(gotBody, ShouldContainSubstring, `"text":"hello"`)
			})
		})
	})

	Convey("Given a failing endpoint", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		Convey("Then Send surfaces the failure", func() {
			err := NewHTTPSender(srv.URL, "secret").Send(context.Background(), "C2", "hello")
			So(err, ShouldNotBeNil)
		})
	})
}
