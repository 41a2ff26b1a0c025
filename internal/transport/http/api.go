package http

import (
	"errors"
	"net/http"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/domain"
	"github.com/rs/zerolog/log"
)

// API serves the host and participant JSON endpoints.
type API struct {
	service *app.GameService
	auth    *TokenVerifier
}

func NewAPI(service *app.GameService, auth *TokenVerifier) *API {
	return &API{service: service, auth: auth}
}

// Register mounts every route on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", a.auth.RequireTeacher(a.createSession))
	mux.HandleFunc("GET /api/sessions/{id}", a.auth.RequireTeacher(a.getSession))
	mux.HandleFunc("POST /api/sessions/{id}/start", a.auth.RequireTeacher(a.startGame))
	mux.HandleFunc("POST /api/sessions/{id}/advance", a.auth.RequireTeacher(a.advanceQuestion))
	mux.HandleFunc("POST /api/sessions/{id}/end", a.auth.RequireTeacher(a.endGame))
	mux.HandleFunc("GET /api/sessions/{id}/leaderboard", a.auth.RequireTeacher(a.leaderboard))

	mux.HandleFunc("POST /api/game/join", a.joinGame)
	mux.HandleFunc("POST /api/game/answers", a.submitAnswer)
	mux.HandleFunc("GET /api/game/participants/{id}", a.participantSnapshot)
	mux.HandleFunc("GET /api/game/participants/{id}/results", a.participantResults)
	mux.HandleFunc("GET /api/game/session", a.resumeSession)
	mux.HandleFunc("POST /api/game/leave", a.leaveGame)
}

type createSessionRequest struct {
	BlockID string `json:"blockId"`
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(w, r, &req); err != nil || req.BlockID == "" {
		writeError(w, r, errBadRequest)
		return
	}
	session, err := a.service.CreateSession(r.Context(), teacherFrom(r.Context()), req.BlockID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.service.GetSession(r.Context(), teacherFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) startGame(w http.ResponseWriter, r *http.Request) {
	tr, err := a.service.StartGame(r.Context(), teacherFrom(r.Context()), r.PathValue("id"))
	a.writeTransition(w, r, tr, err)
}

type advanceRequest struct {
	Override bool `json:"override"`
}

func (a *API) advanceQuestion(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	tr, err := a.service.AdvanceQuestion(r.Context(), teacherFrom(r.Context()), r.PathValue("id"), req.Override)
	a.writeTransition(w, r, tr, err)
}

func (a *API) endGame(w http.ResponseWriter, r *http.Request) {
	tr, err := a.service.EndGame(r.Context(), teacherFrom(r.Context()), r.PathValue("id"))
	a.writeTransition(w, r, tr, err)
}

func (a *API) writeTransition(w http.ResponseWriter, r *http.Request, tr app.Transition, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	session, err := a.service.GetSession(r.Context(), teacherFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := a.service.Leaderboard(r.Context(), session.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type joinRequest struct {
	Pin      string `json:"pin"`
	Nickname string `json:"nickname"`
}

type joinResponse struct {
	ParticipantID string               `json:"participantId"`
	SessionID     string               `json:"sessionId"`
	Status        domain.SessionStatus `json:"status"`
	Participant   domain.Participant   `json:"participant"`
}

func (a *API) joinGame(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeBody(w, r, &req); err != nil || req.Pin == "" {
		writeError(w, r, errBadRequest)
		return
	}
	participant, session, err := a.service.JoinGame(r.Context(), req.Pin, req.Nickname)
	if err != nil {
		writeError(w, r, err)
		return
	}
	setSessionCookie(w, cookieSession{
		ParticipantID: participant.ID,
		SessionID:     session.ID,
		Nickname:      participant.Nickname,
		Pin:           session.PinCode,
	})
	writeJSON(w, http.StatusCreated, joinResponse{
		ParticipantID: participant.ID,
		SessionID:     session.ID,
		Status:        session.Status,
		Participant:   participant,
	})
}

type answerRequest struct {
	ParticipantID  string `json:"participantId"`
	QuestionID     string `json:"questionId"`
	SelectedOption *int   `json:"selectedOption"`
	ResponseTimeMs *int64 `json:"responseTimeMs"`
}

func (a *API) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ParticipantID == "" {
		if s, err := readSessionCookie(r); err == nil {
			req.ParticipantID = s.ParticipantID
		}
	}
	if req.ParticipantID == "" || req.QuestionID == "" || req.SelectedOption == nil || req.ResponseTimeMs == nil {
		writeError(w, r, errBadRequest)
		return
	}
	result, err := a.service.SubmitAnswer(r.Context(), req.ParticipantID, req.QuestionID, *req.SelectedOption, *req.ResponseTimeMs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) participantSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := a.service.GetSessionSnapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) participantResults(w http.ResponseWriter, r *http.Request) {
	results, err := a.service.Results(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// resumeSession rebuilds the participant's state from the session cookie
// after a page reload.
func (a *API) resumeSession(w http.ResponseWriter, r *http.Request) {
	cookie, err := readSessionCookie(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Kind: "unauthorized"})
		return
	}
	snap, err := a.service.GetSessionSnapshot(r.Context(), cookie.ParticipantID)
	if errors.Is(err, domain.ErrParticipantNotFound) {
		clearSessionCookie(w)
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "session expired", Kind: "unauthorized"})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type leaveRequest struct {
	ParticipantID string `json:"participantId"`
}

func (a *API) leaveGame(w http.ResponseWriter, r *http.Request) {
	var req leaveRequest
	if r.ContentLength != 0 {
		_ = decodeBody(w, r, &req)
	}
	if req.ParticipantID == "" {
		if s, err := readSessionCookie(r); err == nil {
			req.ParticipantID = s.ParticipantID
		}
	}
	clearSessionCookie(w)
	if req.ParticipantID != "" {
		if err := a.service.LeaveGame(r.Context(), req.ParticipantID); err != nil && !errors.Is(err, domain.ErrParticipantNotFound) {
			log.Warn().Err(err).Str("participant_id", req.ParticipantID).Msg("leave game")
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
