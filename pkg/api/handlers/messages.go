package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatline/pkg/logger"
	"chatline/pkg/store"
)

// RegisterMessages registers the conversation-history endpoint onto
// the provided router.
func RegisterMessages(r *mux.Router) {
	r.HandleFunc("/message-list/{selfId}/{peerId}", messageListHandler).Methods(http.MethodGet)
}

// messageListHandler handles GET /message-list/{selfId}/{peerId}: the
// direct conversation between the two ids in send order. Messages from
// the caller are flagged sendByYou so the client renders them on its
// own side.
func messageListHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	selfID, peerID := vars["selfId"], vars["peerId"]
	msgs, err := store.ListMessages(selfID, peerID)
	if err != nil {
		logger.Error("message_list_failed", "self", selfID, "peer", peerID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "could not list messages")
		return
	}
	for i := range msgs {
		msgs[i].SendByYou = msgs[i].From == selfID
	}
	writeData(w, msgs)
}
