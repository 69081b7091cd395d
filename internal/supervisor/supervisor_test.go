package supervisor_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tallybot/tally/internal/adapters/chat"
	"github.com/tallybot/tally/internal/domain/model"
	"github.com/tallybot/tally/internal/supervisor"
	"github.com/tallybot/tally/pkg/logger"

	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var errDialFailed = errors.New("dial failed")

// fakeConnector scripts a sequence of Connect outcomes.
type fakeConnector struct {
	mu       sync.Mutex
	attempts int
	meta     model.Metadata
	conns    []chat.Conn
	err      error
}

func (c *fakeConnector) Connect(_ context.Context) (chat.Conn, model.Metadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if len(c.conns) > 0 {
		conn := c.conns[0]
		c.conns = c.conns[1:]
		return conn, c.meta, nil
	}
	return nil, model.Metadata{}, c.err
}

func (c *fakeConnector) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// fakeConn emits the scripted events through the sink and then reports a
// dropped connection.
type fakeConn struct {
	events []model.Event
}

func (c *fakeConn) Run(_ context.Context, sink func(model.Event)) error {
	for _, e := range c.events {
		sink(e)
	}
	return chat.ErrConnectionClosed
}

func (c *fakeConn) Close() error { return nil }

// collectSink records every enqueued event.
type collectSink struct {
	mu     sync.Mutex
	events []model.Event
	full   bool
}

func (s *collectSink) Enqueue(_ context.Context, e model.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.events = append(s.events, e)
	return true
}

func (s *collectSink) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestHandoff(t *testing.T) {
	Convey("Given a fresh handoff", t, func() {
		h := supervisor.NewHandoff()

		Convey("When Put is called twice", func() {
			h.Put(model.Metadata{QualifyingChannelID: "C1"})
			h.Put(model.Metadata{QualifyingChannelID: "C2"})

			Convey("Then the first value wins", func() {
				meta, err := h.Get(context.Background())
				So(err, ShouldBeNil)
				So(meta.QualifyingChannelID, ShouldEqual, "C1")
			})

			Convey("Then repeated Gets return the cached value", func() {
				first, err := h.Get(context.Background())
				So(err, ShouldBeNil)
				second, err := h.Get(context.Background())
				So(err, ShouldBeNil)
				So(second, ShouldResemble, first)
			})
		})

		Convey("When Get runs before any Put", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			Convey("Then it blocks until the context expires", func() {
				_, err := h.Get(ctx)
				So(err, ShouldEqual, context.DeadlineExceeded)
			})
		})
	})
}

func TestRunStreamRetriesWithFixedDelay(t *testing.T) {
	Convey("Given a connector that always fails", t, func() {
		connector := &fakeConnector{err: errDialFailed}
		h := supervisor.NewHandoff()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var sleeps atomic.Int64
		sleep := func(sctx context.Context, d time.Duration) error {
			So(d, ShouldEqual, 10*time.Second)
			if sleeps.Add(1) == 4 {
				cancel()
				return sctx.Err()
			}
			return nil
		}

		sup := supervisor.New(connector, h,
			supervisor.WithRetryDelay(10*time.Second),
			supervisor.WithSleep(sleep))

		Convey("When the stream loop runs", func() {
			err := sup.RunStream(ctx, &collectSink{})

			Convey("Then it makes exactly one attempt per retry delay", func() {
				So(err, ShouldEqual, context.Canceled)
				So(connector.Attempts(), ShouldEqual, 4)
				So(sup.StreamReconnects(), ShouldEqual, 4)
			})
		})
	})
}

func TestRunStreamPumpsEventsAndHandsOffMetadata(t *testing.T) {
	Convey("Given a connector that succeeds once then fails", t, func() {
		meta := model.Metadata{
			Directory:           map[string]string{"U1": "alice"},
			QualifyingChannelID: "C-checkins",
			ReportChannelID:     "C-general",
		}
		conn := &fakeConn{events: []model.Event{
			{Kind: model.Qualifying, UserID: "U1"},
			{Kind: model.NonQualifying, UserID: "U2"},
		}}
		connector := &fakeConnector{meta: meta, conns: []chat.Conn{conn}, err: errDialFailed}
		h := supervisor.NewHandoff()
		sink := &collectSink{}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sleep := func(sctx context.Context, _ time.Duration) error {
			cancel()
			return sctx.Err()
		}

		sup := supervisor.New(connector, h, supervisor.WithSleep(sleep))

		Convey("When the stream loop runs", func() {
			err := sup.RunStream(ctx, sink)
			So(err, ShouldEqual, context.Canceled)

			Convey("Then the metadata reaches the handoff", func() {
				got, gerr := h.Get(context.Background())
				So(gerr, ShouldBeNil)
				So(got, ShouldResemble, meta)
			})

			Convey("Then every inbound event reached the sink in order", func() {
				events := sink.Events()
				So(events, ShouldHaveLength, 2)
				So(events[0].UserID, ShouldEqual, "U1")
				So(events[0].Kind, ShouldEqual, model.Qualifying)
				So(events[1].UserID, ShouldEqual, "U2")
			})
		})
	})
}

func TestRunListenerWaitsForHandoff(t *testing.T) {
	Convey("Given a listener behind an empty handoff", t, func() {
		h := supervisor.NewHandoff()
		sup := supervisor.New(&fakeConnector{err: errDialFailed}, h)

		Convey("When the handoff never fills", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			var served atomic.Bool
			err := sup.RunListener(ctx, func(context.Context, model.Metadata) error {
				served.Store(true)
				return nil
			})

			Convey("Then serve never runs", func() {
				So(err, ShouldEqual, context.DeadlineExceeded)
				So(served.Load(), ShouldBeFalse)
			})
		})
	})
}

func TestRunListenerRestartsServe(t *testing.T) {
	Convey("Given a listener whose serve function keeps failing", t, func() {
		h := supervisor.NewHandoff()
		h.Put(model.Metadata{ReportChannelID: "C-general"})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var serves atomic.Int64
		serve := func(_ context.Context, meta model.Metadata) error {
			So(meta.ReportChannelID, ShouldEqual, "C-general")
			serves.Add(1)
			return errors.New("bind: address in use")
		}

		sleep := func(sctx context.Context, _ time.Duration) error {
			if serves.Load() >= 3 {
				cancel()
				return sctx.Err()
			}
			return nil
		}

		sup := supervisor.New(&fakeConnector{err: errDialFailed}, h,
			supervisor.WithSleep(sleep))

		Convey("When the listener loop runs", func() {
			err := sup.RunListener(ctx, serve)

			Convey("Then serve is restarted after each failure", func() {
				So(err, ShouldEqual, context.Canceled)
				So(serves.Load(), ShouldEqual, 3)
				So(sup.ListenerReconnects(), ShouldEqual, 3)
			})
		})
	})
}
