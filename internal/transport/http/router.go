package http

import (
	"net/http"

	"github.com/rs/cors"
)

// NewRouter assembles the public HTTP surface. Browsers call the API from the
// quiz front-end's origin, so CORS is applied to every route.
func NewRouter(api *API, ws *WSHandler, allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /ws", ws.ServeWS)
	api.Register(mux)

	// the session cookie only travels with credentialed requests, which
	// browsers refuse for a wildcard origin
	credentials := len(allowedOrigins) > 0
	if !credentials {
		allowedOrigins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Client-Info", "Apikey"},
		AllowCredentials: credentials,
	}).Handler(mux)
}
