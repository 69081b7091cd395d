package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tallybot/tally/internal/adapters/http/api"
	"github.com/tallybot/tally/internal/domain/model"
	"github.com/tallybot/tally/pkg/logger"

	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeRecords serves a fixed history or a fixed error.
type fakeRecords struct {
	records []model.ScoreRecord
	err     error
}

func (f *fakeRecords) LoadAll(_ context.Context) ([]model.ScoreRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

// fakeSender records mirrored messages.
type fakeSender struct {
	mu      sync.Mutex
	channel string
	text    string
	sends   int
	err     error
}

func (f *fakeSender) Send(_ context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	f.channel = channelID
	f.text = text
	return f.err
}

func (f *fakeSender) Sends() (int, string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends, f.channel, f.text
}

type fakeStats struct{}

func (fakeStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"queue_size": 0}
}

func testHistory() []model.ScoreRecord {
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return []model.ScoreRecord{
		model.NewSuccess("U1", true, true, ts),
		model.NewSuccess("U2", false, true, ts.Add(time.Minute)),
		model.NewSuccess("U1", false, false, ts.Add(2*time.Minute)),
		model.NewFailure("U3", ts.Add(3*time.Minute)),
	}
}

func testMeta() model.Metadata {
	return model.Metadata{
		Directory:           map[string]string{"U1": "alice", "U2": "bob"},
		QualifyingChannelID: "C-checkins",
		ReportChannelID:     "C-general",
	}
}

func newTestServer(records api.RecordSource, sender *fakeSender) *http.ServeMux {
	var s *api.Server
	if sender != nil {
		s = api.NewServer(records, sender, testMeta(), fakeStats{})
	} else {
		s = api.NewServer(records, nil, testMeta(), fakeStats{})
	}
	mux := http.NewServeMux()
	s.Register(context.Background(), mux)
	return mux
}

func TestScoreboardEndpoint(t *testing.T) {
	Convey("Given a server over a populated history", t, func() {
		mux := newTestServer(&fakeRecords{records: testHistory()}, nil)

		Convey("When the scoreboard is requested with GET", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scoreboard", nil))

			Convey("Then it renders names and totals as plain text", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "text/plain")
				So(rec.Body.String(), ShouldEqual, "alice\t\t4\nbob\t\t2")
			})
		})

		Convey("When the scoreboard is requested with POST", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scoreboard", nil))

			Convey("Then the slash-command shape gets the same board", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldEqual, "alice\t\t4\nbob\t\t2")
			})
		})

		Convey("When an unsupported method is used", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/scoreboard", nil))

			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given a server over an empty history", t, func() {
		mux := newTestServer(&fakeRecords{}, nil)

		Convey("When the scoreboard is requested", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scoreboard", nil))

			Convey("Then the placeholder is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldEqual, "No scores yet!")
			})
		})
	})

	Convey("Given a server whose store reads fail", t, func() {
		mux := newTestServer(&fakeRecords{err: errors.New("connection refused")}, nil)

		Convey("When the scoreboard is requested", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scoreboard", nil))

			Convey("Then the request fails rather than serving stale data", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
				So(rec.Body.String(), ShouldContainSubstring, "score history unavailable")
			})
		})
	})
}

func TestScoreboardMirror(t *testing.T) {
	Convey("Given a server with a report-channel sender", t, func() {
		sender := &fakeSender{}
		mux := newTestServer(&fakeRecords{records: testHistory()}, sender)

		Convey("When the scoreboard is requested", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scoreboard", nil))

			Convey("Then the board is mirrored to the report channel", func() {
				sends, channel, text := sender.Sends()
				So(sends, ShouldEqual, 1)
				So(channel, ShouldEqual, "C-general")
				So(text, ShouldEqual, "alice\t\t4\nbob\t\t2")
			})
		})

		Convey("When the mirror send fails", func() {
			sender.err = errors.New("api rate limited")

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scoreboard", nil))

			Convey("Then the HTTP response is unaffected", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldEqual, "alice\t\t4\nbob\t\t2")
			})
		})
	})
}

func TestStatsEndpoint(t *testing.T) {
	Convey("Given a registered server", t, func() {
		mux := newTestServer(&fakeRecords{}, nil)

		Convey("When stats are requested", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(rec.Body.String(), ShouldContainSubstring, "queue_size")
		})

		Convey("When stats are requested with POST", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stats", nil))

			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestHealthEndpoint(t *testing.T) {
	Convey("Given a registered server", t, func() {
		mux := newTestServer(&fakeRecords{}, nil)

		Convey("When health is requested", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			Convey("Then the metrics registry is served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "tally_checkin")
			})
		})
	})
}
