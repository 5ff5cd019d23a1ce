package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/launcher/internal/infrastructure/monitoring"
)

const (
	minReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay = 30 * time.Second
)

// Stream reads backend event frames from a websocket and publishes them on a bus
type Stream struct {
	url     string
	bus     *Bus
	dialer  *websocket.Dialer
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewStream creates a stream for url
func NewStream(url string, bus *Bus, clock clockwork.Clock, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		url:    url,
		bus:    bus,
		dialer: websocket.DefaultDialer,
		clock:  clock,
		logger: logger,
	}
}

// WithMetrics adds metrics tracking to the stream
func (s *Stream) WithMetrics(metrics *monitoring.Metrics) *Stream {
	s.metrics = metrics
	return s
}

// Run connects and pumps events until ctx is cancelled, reconnecting with
// exponential backoff whenever the connection drops.
func (s *Stream) Run(ctx context.Context) error {
	delay := minReconnectDelay

	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delay = minReconnectDelay
		}

		s.logger.Warn("Event stream disconnected",
			zap.String("url", s.url),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// session runs one connection; connected reports whether the dial succeeded
func (s *Stream) session(ctx context.Context) (connected bool, err error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial event stream: %w", err)
	}
	defer conn.Close()

	s.logger.Info("Event stream connected", zap.String("url", s.url))

	// unblock ReadMessage on cancellation
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return true, errors.New("closed by backend")
			}
			return true, fmt.Errorf("read event frame: %w", err)
		}
		s.dispatch(data)
	}
}

func (s *Stream) dispatch(data []byte) {
	var frame Frame
	if err := sonic.Unmarshal(data, &frame); err != nil {
		s.logger.Warn("Malformed event frame", zap.Error(err))
		return
	}

	ev, err := frame.Decode()
	if err != nil {
		s.logger.Debug("Dropping event", zap.String("event", frame.Event), zap.Error(err))
		return
	}

	s.metrics.RecordEvent(frame.Event)
	s.bus.Publish(ev)
}
