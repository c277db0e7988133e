package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"chatline/pkg/api/handlers"
	"chatline/pkg/channel"
	"chatline/pkg/store"
)

// Router assembles the full HTTP surface: the REST endpoints the
// browser client calls, the websocket upgrade, health probes and the
// operational endpoints.
func Router(hub *channel.Hub) http.Handler {
	r := mux.NewRouter()

	handlers.RegisterSign(r)
	handlers.RegisterUsers(r)
	handlers.RegisterMessages(r)

	r.HandleFunc("/ws", hub.ServeWS)

	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", readyzHandler).Methods(http.MethodGet)

	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	r.Path("/openapi.yaml").Handler(http.FileServer(http.Dir("./docs")))
	r.Path("/metrics").Handler(promhttp.Handler())

	return r
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// readyzHandler reports ready only once the store is open.
func readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !store.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
