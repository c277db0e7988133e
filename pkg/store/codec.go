package store

import (
	"encoding/json"

	"chatline/pkg/models"
)

func marshalUser(u models.StoredUser) ([]byte, error) {
	return json.Marshal(u)
}

func unmarshalUser(data []byte) (models.StoredUser, error) {
	var u models.StoredUser
	err := json.Unmarshal(data, &u)
	return u, err
}

func marshalMessage(m models.Message) ([]byte, error) {
	// sendByYou is per-caller; the history endpoint fills it on read
	m.SendByYou = false
	return json.Marshal(m)
}

func unmarshalMessage(data []byte) (models.Message, error) {
	var m models.Message
	err := json.Unmarshal(data, &m)
	return m, err
}
