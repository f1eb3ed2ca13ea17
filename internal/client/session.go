// Package client is the reconciling client library: a websocket session,
// a preview state mirror fed by server sync messages, and a speculative
// buffer that tracks in-flight placements against the server's ack
// watermark.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxelbrush.dev/internal/protocol"
	"voxelbrush.dev/internal/sim/brush"
)

// Handlers dispatches server messages. Nil handlers drop the message.
type Handlers struct {
	OnBrushState       func(protocol.BrushStateMsg)
	OnDimensionPreview func(protocol.DimensionPreviewMsg)
	OnPlaceAck         func(protocol.PlaceAckMsg)
	OnEvents           func(protocol.EventsMsg)
	OnError            func(protocol.ErrorMsg)
}

type Session struct {
	conn    *websocket.Conn
	welcome protocol.WelcomeMsg
	logger  *log.Logger

	// Tick estimation: WELCOME anchors it, server events re-anchor it.
	anchorTick uint64
	anchorAt   time.Time
}

// Dial connects, performs the HELLO/WELCOME handshake, and validates that
// both ends agree on the protocol version and the discrete orientation set.
func Dial(url, name string, logger *log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       name,
		Client:          "voxelbrush-client",
	}
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read WELCOME: %w", err)
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("decode WELCOME: %w", err)
	}
	if base.Type == protocol.TypeError {
		var em protocol.ErrorMsg
		_ = json.Unmarshal(msg, &em)
		_ = conn.Close()
		return nil, fmt.Errorf("server rejected join: %s %s", em.Code, em.Message)
	}
	if base.Type != protocol.TypeWelcome {
		_ = conn.Close()
		return nil, fmt.Errorf("expected WELCOME, got %s", base.Type)
	}
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &welcome); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("decode WELCOME: %w", err)
	}
	if welcome.ProtocolVersion != protocol.Version {
		_ = conn.Close()
		return nil, fmt.Errorf("protocol version mismatch: server=%s client=%s", welcome.ProtocolVersion, protocol.Version)
	}
	if welcome.WorldParams.OrientationCount != brush.OrientationCount {
		_ = conn.Close()
		return nil, fmt.Errorf("orientation set mismatch: server=%d client=%d", welcome.WorldParams.OrientationCount, brush.OrientationCount)
	}

	return &Session{
		conn:       conn,
		welcome:    welcome,
		logger:     logger,
		anchorTick: welcome.Tick,
		anchorAt:   time.Now(),
	}, nil
}

// EstimatedTick extrapolates the server tick from the last anchor. Acts are
// accepted within a small staleness window, so drift self-corrects as soon
// as an EVENTS message re-anchors.
func (s *Session) EstimatedTick() uint64 {
	rate := s.welcome.WorldParams.TickRateHz
	if rate <= 0 {
		return s.anchorTick
	}
	elapsed := time.Since(s.anchorAt)
	return s.anchorTick + uint64(elapsed/(time.Second/time.Duration(rate)))
}

// NoteTick re-anchors the estimate with a tick observed from the server.
func (s *Session) NoteTick(t uint64) {
	s.anchorTick = t
	s.anchorAt = time.Now()
}

func (s *Session) Welcome() protocol.WelcomeMsg { return s.welcome }
func (s *Session) AgentID() string              { return s.welcome.AgentID }
func (s *Session) Close() error                 { return s.conn.Close() }

// Run reads until the connection closes, dispatching each message. Unknown
// message types are logged and skipped.
func (s *Session) Run(h Handlers) error {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			s.logger.Printf("undecodable message: %v", err)
			continue
		}
		switch base.Type {
		case protocol.TypeBrushState:
			var m protocol.BrushStateMsg
			if json.Unmarshal(msg, &m) == nil && h.OnBrushState != nil {
				h.OnBrushState(m)
			}
		case protocol.TypeDimensionPreview:
			var m protocol.DimensionPreviewMsg
			if json.Unmarshal(msg, &m) == nil && h.OnDimensionPreview != nil {
				h.OnDimensionPreview(m)
			}
		case protocol.TypePlaceAck:
			var m protocol.PlaceAckMsg
			if json.Unmarshal(msg, &m) == nil && h.OnPlaceAck != nil {
				h.OnPlaceAck(m)
			}
		case protocol.TypeEvents:
			var m protocol.EventsMsg
			if json.Unmarshal(msg, &m) == nil {
				s.NoteTick(m.Tick)
				if h.OnEvents != nil {
					h.OnEvents(m)
				}
			}
		case protocol.TypeError:
			var m protocol.ErrorMsg
			if json.Unmarshal(msg, &m) == nil && h.OnError != nil {
				h.OnError(m)
			}
		default:
			s.logger.Printf("unhandled message type %s", base.Type)
		}
	}
}

// SendAct fills in the envelope fields and sends the act.
func (s *Session) SendAct(tick uint64, instants []protocol.InstantReq, places []protocol.PlaceReq) error {
	return s.conn.WriteJSON(protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		AgentID:         s.welcome.AgentID,
		Instants:        instants,
		Places:          places,
	})
}

// SendAck reports the client-side reconciliation watermark back to the
// server.
func (s *Session) SendAck(lastAppliedSeq int64) error {
	return s.conn.WriteJSON(protocol.PlaceAckMsg{
		Type:            protocol.TypePlaceAck,
		ProtocolVersion: protocol.Version,
		LastAppliedSeq:  lastAppliedSeq,
	})
}

// NewInstantID returns a correlation id for an instant request.
func NewInstantID(kind string) string {
	return fmt.Sprintf("I_%s_%s", kind, uuid.NewString()[:8])
}
