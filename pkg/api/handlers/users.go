package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatline/pkg/logger"
	"chatline/pkg/models"
	"chatline/pkg/store"
)

// RegisterUsers registers the contact-list endpoint onto the provided
// router.
func RegisterUsers(r *mux.Router) {
	r.HandleFunc("/user-list/{selfId}", userListHandler).Methods(http.MethodGet)
}

// userListHandler handles GET /user-list/{selfId}: every registered
// user except the caller, name-ordered.
func userListHandler(w http.ResponseWriter, r *http.Request) {
	selfID := mux.Vars(r)["selfId"]
	users, err := store.ListUsers()
	if err != nil {
		logger.Error("user_list_failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "could not list users")
		return
	}
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.ID == selfID {
			continue
		}
		out = append(out, u)
	}
	writeData(w, out)
}
