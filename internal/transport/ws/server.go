// Package ws serves decode requests over a websocket. A client sends one
// decode request and receives streamed progress events (one per grid
// column while tiles are read) followed by exactly one terminal done or
// error message.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"terramap/internal/cursor"
	"terramap/internal/defs"
	"terramap/internal/export"
	"terramap/internal/playermap"
	"terramap/internal/worldfile"
)

// Error codes carried by terminal error messages.
const (
	ErrCodeBadRequest    = "E_BAD_REQUEST"
	ErrCodeTooNew        = "E_VERSION_TOO_NEW"
	ErrCodeTooOld        = "E_VERSION_TOO_OLD"
	ErrCodeBadMagic      = "E_BAD_MAGIC"
	ErrCodeBadFileType   = "E_BAD_FILE_TYPE"
	ErrCodeBadSectionOff = "E_BAD_SECTION_OFFSET"
	ErrCodeTruncated     = "E_TRUNCATED"
	ErrCodeCorrupt       = "E_CORRUPT"
	ErrCodeDecompress    = "E_DECOMPRESS"
	ErrCodeCanceled      = "E_CANCELED"
	ErrCodeInternal      = "E_INTERNAL"
)

type DecodeRequest struct {
	Type      string `json:"type"`
	WorldPath string `json:"world_path"`
	// Optional player save path; enables the explored overlay.
	PlayerPath string `json:"player_path,omitempty"`
}

type progressMsg struct {
	Type  string `json:"type"`
	Stage string `json:"stage"`
	Pct   int    `json:"pct"`
}

type doneMsg struct {
	Type    string         `json:"type"`
	Summary export.Summary `json:"summary"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Server struct {
	defs *defs.Tables
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(tables *defs.Tables, logger *log.Logger) *Server {
	return &Server{
		defs: tables,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8 * 1024,
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

		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req DecodeRequest
		if err := json.Unmarshal(raw, &req); err != nil || req.Type != "decode" || req.WorldPath == "" {
			s.write(conn, errorMsg{Type: "error", Code: ErrCodeBadRequest, Message: "expected a decode request with world_path"})
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Read pump: only there to notice the client going away.
		go func() {
			_ = conn.SetReadDeadline(time.Time{})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		s.serveDecode(ctx, conn, req)
	}
}

func (s *Server) serveDecode(ctx context.Context, conn *websocket.Conn, req DecodeRequest) {
	// Progress events are dropped rather than allowed to stall the
	// decode when the client reads slowly.
	events := make(chan progressMsg, 64)
	dec := &worldfile.Decoder{
		Defs: s.defs,
		Progress: func(stage string, pct int) {
			select {
			case events <- progressMsg{Type: "progress", Stage: stage, Pct: pct}:
			default:
			}
		},
	}

	type result struct {
		w   *worldfile.World
		err error
	}
	done := make(chan result, 1)
	go func() {
		w, err := dec.Decode(ctx, req.WorldPath)
		if err == nil && req.PlayerPath != "" {
			err = playermap.Overlay(w, req.PlayerPath)
		}
		done <- result{w, err}
	}()

	for {
		select {
		case ev := <-events:
			if !s.write(conn, ev) {
				return
			}
		case res := <-done:
			s.drain(conn, events)
			if res.err != nil {
				s.log.Printf("decode %s: %v", req.WorldPath, res.err)
				s.write(conn, errorMsg{Type: "error", Code: ErrorCode(res.err), Message: res.err.Error()})
				return
			}
			s.write(conn, doneMsg{Type: "done", Summary: export.Summarize(res.w)})
			return
		}
	}
}

// drain flushes progress events queued before the decode finished so the
// terminal message is always last.
func (s *Server) drain(conn *websocket.Conn, events chan progressMsg) {
	for {
		select {
		case ev := <-events:
			if !s.write(conn, ev) {
				return
			}
		default:
			return
		}
	}
}

func (s *Server) write(conn *websocket.Conn, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b) == nil
}

// ErrorCode maps a decode failure onto its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, worldfile.ErrTooNew):
		return ErrCodeTooNew
	case errors.Is(err, worldfile.ErrTooOld):
		return ErrCodeTooOld
	case errors.Is(err, worldfile.ErrBadMagic):
		return ErrCodeBadMagic
	case errors.Is(err, worldfile.ErrBadFileType):
		return ErrCodeBadFileType
	case errors.Is(err, worldfile.ErrBadSectionOffset):
		return ErrCodeBadSectionOff
	case errors.Is(err, worldfile.ErrCorrupt):
		return ErrCodeCorrupt
	case errors.Is(err, cursor.ErrUnexpectedEOF):
		return ErrCodeTruncated
	case errors.Is(err, playermap.ErrDecompress):
		return ErrCodeDecompress
	case errors.Is(err, context.Canceled):
		return ErrCodeCanceled
	default:
		return ErrCodeInternal
	}
}
