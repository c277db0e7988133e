package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"chatline/pkg/models"
)

// RESTClient wraps the three one-shot queries the core makes: login,
// contact list and conversation history. Results replace state, never
// merge into it.
type RESTClient struct {
	base string
	http *http.Client
}

func NewRESTClient(base string, hc *http.Client) *RESTClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &RESTClient{base: base, http: hc}
}

// Sign logs in, registering the name on first use. A rejection comes
// back as an AuthError carrying the server's message.
func (r *RESTClient) Sign(ctx context.Context, userName, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"userName": userName, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+"/sign", bytes.NewReader(body))
	if err != nil {
		return "", &TransportError{Op: "sign", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.http.Do(req)
	if err != nil {
		return "", &TransportError{Op: "sign", Err: err}
	}
	defer resp.Body.Close()
	var out struct {
		UserID  string `json:"userId"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &TransportError{Op: "sign", Err: err}
	}
	if resp.StatusCode != http.StatusOK || out.UserID == "" {
		msg := out.Message
		if msg == "" {
			msg = fmt.Sprintf("login rejected (%d)", resp.StatusCode)
		}
		return "", &AuthError{Message: msg}
	}
	return out.UserID, nil
}

// UserList fetches every reachable user for selfID.
func (r *RESTClient) UserList(ctx context.Context, selfID string) ([]models.User, error) {
	var out struct {
		Data []models.User `json:"data"`
	}
	if err := r.getJSON(ctx, "/user-list/"+selfID, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// MessageList fetches the ordered direct history between two ids.
func (r *RESTClient) MessageList(ctx context.Context, selfID, peerID string) ([]models.Message, error) {
	var out struct {
		Data []models.Message `json:"data"`
	}
	if err := r.getJSON(ctx, "/message-list/"+selfID+"/"+peerID, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (r *RESTClient) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+path, nil)
	if err != nil {
		return &TransportError{Op: "get " + path, Err: err}
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return &TransportError{Op: "get " + path, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &TransportError{Op: "get " + path, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &TransportError{Op: "get " + path, Err: err}
	}
	return nil
}
