package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/tallybot/tally/internal/domain/model"
	"github.com/tallybot/tally/pkg/logger"
	"github.com/tallybot/tally/pkg/metrics"
)

// Default websocket connector configuration.
const (
	defaultDialTimeout = 10 * time.Second
	defaultTrigger     = "tally"
)

// helloFrame is the first frame the platform sends after the websocket
// upgrade: the user directory and the channel listing.
type helloFrame struct {
	Type     string        `json:"type"`
	Users    []userInfo    `json:"users"`
	Channels []channelInfo `json:"channels"`
}

type userInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type channelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// messageFrame is an inbound chat message.
type messageFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	User    string `json:"user"`
	Text    string `json:"text"`
}

// WSConnector dials the platform's streaming endpoint.
type WSConnector struct {
	url           string
	token         string
	trigger       string
	listenChannel string
	reportChannel string
	dialTimeout   time.Duration
	logger        logger.Logger
}

// WSOption applies a configuration option to the WSConnector.
type WSOption func(*WSConnector)

// WithTrigger sets the check-in trigger word.
func WithTrigger(trigger string) WSOption {
	return func(c *WSConnector) {
		if trigger != "" {
			c.trigger = trigger
		}
	}
}

// WithChannels sets the names of the watched and report channels.
func WithChannels(listen, report string) WSOption {
	return func(c *WSConnector) {
		if listen != "" {
			c.listenChannel = listen
		}
		if report != "" {
			c.reportChannel = report
		}
	}
}

// WithDialTimeout bounds the websocket dial.
func WithDialTimeout(d time.Duration) WSOption {
	return func(c *WSConnector) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the connector.
func WithLogger(log logger.Logger) WSOption {
	return func(c *WSConnector) {
		if log != nil {
			c.logger = log
		}
	}
}

// NewWSConnector creates a connector for the given streaming URL and token.
func NewWSConnector(url, token string, opts ...WSOption) *WSConnector {
	c := &WSConnector{
		url:           url,
		token:         token,
		trigger:       defaultTrigger,
		listenChannel: "checkins",
		reportChannel: "general",
		dialTimeout:   defaultDialTimeout,
		logger:        logger.Get().Named("chat"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect dials the stream, waits for the hello frame, and resolves the
// connection metadata from it.
func (c *WSConnector) Connect(ctx context.Context) (Conn, model.Metadata, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, model.Metadata{}, fmt.Errorf("dial stream: %w", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		_ = conn.Close(websocket.StatusProtocolError, "no hello")
		return nil, model.Metadata{}, fmt.Errorf("read hello frame: %w", err)
	}

	var hello helloFrame
	if err := json.Unmarshal(data, &hello); err != nil || hello.Type != "hello" {
		_ = conn.Close(websocket.StatusProtocolError, "bad hello")
		return nil, model.Metadata{}, ErrNoHello
	}

	meta, err := resolveMetadata(hello, c.listenChannel, c.reportChannel)
	if err != nil {
		_ = conn.Close(websocket.StatusProtocolError, "bad metadata")
		return nil, model.Metadata{}, err
	}

	c.logger.Info(ctx, "stream connected",
		logger.String("qualifying_channel", meta.QualifyingChannelID),
		logger.String("report_channel", meta.ReportChannelID),
		logger.Int("users", len(meta.Directory)),
	)

	return &wsConn{
		conn:                conn,
		qualifyingChannelID: meta.QualifyingChannelID,
		trigger:             c.trigger,
		logger:              c.logger,
	}, meta, nil
}

// resolveMetadata builds connection metadata from the hello frame,
// resolving the configured channel names to ids.
func resolveMetadata(hello helloFrame, listenName, reportName string) (model.Metadata, error) {
	directory := make(map[string]string, len(hello.Users))
	for _, u := range hello.Users {
		if u.ID == "" {
			continue
		}
		directory[u.ID] = u.Name
	}

	meta := model.Metadata{Directory: directory}
	for _, ch := range hello.Channels {
		switch ch.Name {
		case listenName:
			meta.QualifyingChannelID = ch.ID
		case reportName:
			meta.ReportChannelID = ch.ID
		}
	}

	if meta.QualifyingChannelID == "" {
		return model.Metadata{}, fmt.Errorf("%w: %s", ErrChannelNotFound, listenName)
	}
	if meta.ReportChannelID == "" {
		return model.Metadata{}, fmt.Errorf("%w: %s", ErrChannelNotFound, reportName)
	}
	return meta, nil
}

// wsConn is a live streaming connection.
type wsConn struct {
	conn                *websocket.Conn
	qualifyingChannelID string
	trigger             string
	logger              logger.Logger
}

// Run blocks reading frames and translating them into events until the
// connection drops or ctx is cancelled.
func (c *wsConn) Run(ctx context.Context, sink func(model.Event)) error {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("stream read: %w", err)
		}

		event, ok, err := decodeEvent(data, c.qualifyingChannelID, c.trigger)
		if err != nil {
			// Malformed message: discard, never let it reach the dispatcher.
			c.logger.Warn(ctx, "discarding malformed message", logger.Error(err))
			metrics.RecordEventDiscarded()
			continue
		}
		if !ok {
			continue
		}
		sink(event)
	}
}

// Close tears down the connection.
func (c *wsConn) Close() error {
	if err := c.conn.Close(websocket.StatusNormalClosure, "done"); err != nil {
		return fmt.Errorf("close stream: %w", err)
	}
	return nil
}

// decodeEvent translates a raw frame into an event. ok is false for frames
// that are not check-in attempts (other frame types, other channels). An
// error means the frame was a watched-channel message but malformed.
func decodeEvent(data []byte, qualifyingChannelID, trigger string) (model.Event, bool, error) {
	var msg messageFrame
	if err := json.Unmarshal(data, &msg); err != nil {
		return model.Event{}, false, fmt.Errorf("decode frame: %w", err)
	}

	if msg.Type != "message" || msg.Channel != qualifyingChannelID {
		return model.Event{}, false, nil
	}

	if msg.User == "" {
		return model.Event{}, false, ErrMissingUser
	}

	kind := model.NonQualifying
	if msg.Text == trigger {
		kind = model.Qualifying
	}

	return model.Event{Kind: kind, UserID: msg.User}, true, nil
}
