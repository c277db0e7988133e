package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"chatline/pkg/logger"
	"chatline/pkg/models"
	"chatline/pkg/store"
	"chatline/pkg/telemetry"
)

// RegisterSign registers the combined login/register endpoint onto the
// provided router.
func RegisterSign(r *mux.Router) {
	r.HandleFunc("/sign", signHandler).Methods(http.MethodPost)
}

// signHandler handles POST /sign. An unknown userName registers a new
// account; a known one is a login and the password must match. Either
// way a successful response carries only the user id.
func signHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserName string `json:"userName"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil ||
		payload.UserName == "" || payload.Password == "" {
		telemetry.SignAttempts.WithLabelValues("invalid").Inc()
		writeMessage(w, http.StatusBadRequest, "userName and password are required")
		return
	}

	u, err := store.GetUserByName(payload.UserName)
	switch {
	case errors.Is(err, store.ErrNotFound):
		hash, herr := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
		if herr != nil {
			telemetry.SignAttempts.WithLabelValues("error").Inc()
			writeMessage(w, http.StatusInternalServerError, "could not create user")
			return
		}
		u = models.StoredUser{
			ID:           uuid.NewString(),
			Name:         payload.UserName,
			PasswordHash: string(hash),
			CreatedTS:    time.Now().UTC().UnixNano(),
		}
		if err := store.CreateUser(u); err != nil {
			telemetry.SignAttempts.WithLabelValues("error").Inc()
			logger.Error("user_create_failed", "name", payload.UserName, "error", err)
			writeMessage(w, http.StatusInternalServerError, "could not create user")
			return
		}
		telemetry.SignAttempts.WithLabelValues("registered").Inc()
		logger.Info("user_registered", "name", payload.UserName, "user_id", u.ID)
	case err != nil:
		telemetry.SignAttempts.WithLabelValues("error").Inc()
		logger.Error("user_lookup_failed", "name", payload.UserName, "error", err)
		writeMessage(w, http.StatusInternalServerError, "lookup failed")
		return
	default:
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(payload.Password)) != nil {
			telemetry.SignAttempts.WithLabelValues("rejected").Inc()
			logger.Warn("sign_rejected", "name", payload.UserName, "remote", r.RemoteAddr)
			writeMessage(w, http.StatusUnauthorized, "Password is incorrect")
			return
		}
		telemetry.SignAttempts.WithLabelValues("accepted").Inc()
		logger.Info("user_signed_in", "name", payload.UserName, "user_id", u.ID)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"userId": u.ID})
}
