package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/domain"
	"classroom-quiz-service/internal/follower"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type WSHandler struct {
	service      *app.GameService
	upgrader     websocket.Upgrader
	pollInterval time.Duration
	clock        clockwork.Clock
}

func NewWSHandler(service *app.GameService, pollInterval time.Duration, clock clockwork.Clock) *WSHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &WSHandler{
		service:      service,
		pollInterval: pollInterval,
		clock:        clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID     string `json:"questionId"`
	SelectedOption int    `json:"selectedOption"`
	ResponseTimeMs int64  `json:"responseTimeMs"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Kind: domain.KindOf(err).String()}}
}

// ServeWS upgrades a participant's connection and pushes a fresh snapshot on
// every session change, falling back to periodic polling.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participantId")
	if participantID == "" {
		if s, err := readSessionCookie(r); err == nil {
			participantID = s.ParticipantID
		}
	}
	if participantID == "" {
		http.Error(w, "missing participantId", http.StatusBadRequest)
		return
	}
	// resolve before upgrading so unknown ids get a plain 404
	if _, err := h.service.GetSessionSnapshot(r.Context(), participantID); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	followerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Str("participant_id", participantID).Msg("ws write error")
				cancel()
				return
			}
		}
	}()

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-ctx.Done():
		}
	}

	f := follower.New(h.service, h.service, participantID,
		follower.WithClock(h.clock),
		follower.WithPollInterval(h.pollInterval),
	)
	go func() {
		defer close(followerDone)
		err := f.Run(ctx, func(s domain.Snapshot) {
			push(outboundMessage[any]{Type: "snapshot", Payload: s})
		})
		if err != nil {
			push(errorMessage(err))
			cancel()
		}
	}()

	go func() {
		<-ctx.Done()
		// unblock ReadJSON when the follower or writer gives up
		_ = conn.SetReadDeadline(time.Now())
	}()

	h.readLoop(ctx, conn, participantID, push)

	cancel()
	<-followerDone
	close(send)
	<-writerDone
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, participantID string, push func(outboundMessage[any])) {
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload", Kind: domain.KindInvalid.String()}})
				continue
			}
			result, err := h.service.SubmitAnswer(ctx, participantID, payload.QuestionID, payload.SelectedOption, payload.ResponseTimeMs)
			if err != nil {
				push(errorMessage(err))
				continue
			}
			push(outboundMessage[any]{Type: "answerResult", Payload: result})
		case "leave":
			if err := h.service.LeaveGame(ctx, participantID); err != nil {
				push(errorMessage(err))
			}
			return
		default:
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type", Kind: domain.KindInvalid.String()}})
		}
	}
}
