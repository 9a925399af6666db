package http

import (
	"net/http"

	"github.com/Strob0t/CodeMentor/internal/domain/chat"
)

// CreateChat handles POST /api/v1/chats
func (h *Handlers) CreateChat(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[chat.CreateRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	c, err := h.Chats.Create(r.Context(), callerID(r), req)
	if err != nil {
		writeDomainError(w, err, "create chat")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ListChats handles GET /api/v1/chats
func (h *Handlers) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.Chats.ListByUser(r.Context(), callerID(r))
	if err != nil {
		writeDomainError(w, err, "list chats")
		return
	}
	if chats == nil {
		chats = []chat.Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

// GetChat handles GET /api/v1/chats/{id}
func (h *Handlers) GetChat(w http.ResponseWriter, r *http.Request) {
	c, err := h.Chats.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteChat handles DELETE /api/v1/chats/{id}
func (h *Handlers) DeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := h.Chats.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListChatMessages handles GET /api/v1/chats/{id}/messages
func (h *Handlers) ListChatMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.Chats.History(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// ListChatUnits handles GET /api/v1/chats/{id}/units. Clients call this to
// rebuild their rendering state from canonical history after a reconnect.
func (h *Handlers) ListChatUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Chats.Units(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}
	if units == nil {
		units = []chat.Unit{}
	}
	writeJSON(w, http.StatusOK, units)
}

type submitTurnResponse struct {
	TurnID string `json:"turn_id"`
	ChatID string `json:"chat_id"`
}

// SubmitTurn handles POST /api/v1/chats/{id}/turns. The turn is accepted and
// processed in the background; incremental output arrives over the WebSocket
// as chat.turn.* events. Admission failures surface on those events too, so
// a 202 here only means the chat exists and the turn was taken in.
func (h *Handlers) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[chat.SubmitTurnRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.Content, "content") {
		return
	}

	turn, err := h.Chats.SubmitTurn(r.Context(), urlParam(r, "id"), callerID(r), req.Content)
	if err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}
	writeJSON(w, http.StatusAccepted, submitTurnResponse{TurnID: turn.ID, ChatID: turn.ChatID})
}

type describeImageResponse struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// DescribeImage handles POST /api/v1/chats/{id}/describe-image. The response
// blocks until the vision model answers; the description becomes a pending
// interaction folded into the next turn.
func (h *Handlers) DescribeImage(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[chat.DescribeImageRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}

	d, err := h.Chats.DescribeImage(r.Context(), urlParam(r, "id"), callerID(r), req.Image)
	if err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}

	text, err := d.Text.Wait(r.Context())
	if err != nil {
		writeDomainError(w, err, "describe image")
		return
	}
	writeJSON(w, http.StatusOK, describeImageResponse{ID: d.ID, Text: text})
}
