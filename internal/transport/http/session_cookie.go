package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

const (
	sessionCookieName = "game_session"
	sessionCookieTTL  = 24 * time.Hour
)

// cookieSession is what a participant's browser holds between reloads.
type cookieSession struct {
	ParticipantID string `json:"participantId"`
	SessionID     string `json:"sessionId"`
	Nickname      string `json:"nickname"`
	Pin           string `json:"pin"`
}

var errNoSessionCookie = errors.New("no active game session")

func setSessionCookie(w http.ResponseWriter, s cookieSession) {
	data, _ := json.Marshal(s)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    base64.StdEncoding.EncodeToString(data),
		Path:     "/",
		MaxAge:   int(sessionCookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func readSessionCookie(r *http.Request) (cookieSession, error) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return cookieSession{}, errNoSessionCookie
	}
	data, err := base64.StdEncoding.DecodeString(c.Value)
	if err != nil {
		return cookieSession{}, errNoSessionCookie
	}
	var s cookieSession
	if err := json.Unmarshal(data, &s); err != nil || s.ParticipantID == "" {
		return cookieSession{}, errNoSessionCookie
	}
	return s, nil
}
