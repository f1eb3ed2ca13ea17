// Package ws bridges websocket clients onto the world's channels. One
// reader loop and one writer goroutine per connection; the world never
// touches a conn directly.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"voxelbrush.dev/internal/protocol"
	"voxelbrush.dev/internal/sim/world"
)

const clientQueueSize = 16

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		agentID, out := s.handshake(conn)
		if agentID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		s.readLoop(conn, agentID)
		cancel()
		s.world.Leave() <- agentID
	}
}

func (s *Server) readLoop(conn *websocket.Conn, agentID string) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			s.closeWithError(conn, protocol.ErrProtoBadRequest, "undecodable message")
			return
		}
		switch base.Type {
		case protocol.TypeAct:
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				s.closeWithError(conn, protocol.ErrProtoBadRequest, "malformed ACT")
				return
			}
			if act.ProtocolVersion != protocol.Version {
				s.closeWithError(conn, protocol.ErrProtoUnsupported, "bad protocol_version")
				return
			}
			s.world.Inbox() <- world.ActionEnvelope{AgentID: agentID, Act: act}

		case protocol.TypePlaceAck:
			var ack protocol.PlaceAckMsg
			if err := json.Unmarshal(msg, &ack); err != nil {
				s.closeWithError(conn, protocol.ErrProtoBadRequest, "malformed PLACE_ACK")
				return
			}
			s.world.Inbox() <- world.ActionEnvelope{AgentID: agentID, Ack: &ack}

		default:
			s.closeWithError(conn, protocol.ErrProtoUnsupported, "unexpected message type "+base.Type)
			return
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (agentID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.closeWithError(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		s.closeWithError(conn, protocol.ErrProtoBadRequest, "malformed HELLO")
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		s.closeWithError(conn, protocol.ErrProtoUnsupported, "bad protocol_version")
		return "", nil
	}

	out = make(chan []byte, clientQueueSize)
	respCh := make(chan world.JoinResponse, 1)
	s.world.Join() <- world.JoinRequest{Name: hello.AgentName, Out: out, Resp: respCh}
	resp := <-respCh
	if resp.Err != "" {
		s.closeWithError(conn, resp.Err, "join rejected")
		return "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.world.Leave() <- resp.Welcome.AgentID
		return "", nil
	}
	if s.log != nil {
		s.log.Printf("agent %s joined (%s)", resp.Welcome.AgentID, hello.AgentName)
	}
	return resp.Welcome.AgentID, out
}

// closeWithError sends an ERROR message, then the close frame. Best effort;
// the connection is going away either way.
func (s *Server) closeWithError(conn *websocket.Conn, code, message string) {
	_ = writeJSON(conn, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
