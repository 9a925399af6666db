package http

import (
	"net/http"

	"github.com/Strob0t/CodeMentor/internal/domain/chat"
)

type challengeResponse struct {
	ID     string               `json:"id"`
	Status chat.ChallengeStatus `json:"status"`
	Unit   chat.Unit            `json:"unit"`
}

// IssueChallenge handles POST /api/v1/chats/{id}/challenge. The response
// blocks for the simulated out-of-band delivery delay and reports the
// pre-issuance status, matching the sub-flow contract.
func (h *Handlers) IssueChallenge(w http.ResponseWriter, r *http.Request) {
	res, err := h.Chats.IssueChallenge(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}

	unit, err := res.Display.Wait(r.Context())
	if err != nil {
		writeDomainError(w, err, "issue challenge")
		return
	}
	status, _ := res.Status.Wait(r.Context())
	writeJSON(w, http.StatusOK, challengeResponse{ID: res.ID, Status: status, Unit: unit})
}

// ValidateChallenge handles POST /api/v1/chats/{id}/challenge/validate.
func (h *Handlers) ValidateChallenge(w http.ResponseWriter, r *http.Request) {
	res, err := h.Chats.ValidateChallenge(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}

	unit, err := res.Display.Wait(r.Context())
	if err != nil {
		writeDomainError(w, err, "validate challenge")
		return
	}
	status, err := res.Status.Wait(r.Context())
	if err != nil {
		writeDomainError(w, err, "validate challenge")
		return
	}
	writeJSON(w, http.StatusOK, challengeResponse{ID: res.ID, Status: status, Unit: unit})
}

type challengeStatusResponse struct {
	Status chat.ChallengeStatus `json:"status"`
}

// GetChallengeStatus handles GET /api/v1/chats/{id}/challenge
func (h *Handlers) GetChallengeStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Chats.ChallengeStatus(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}
	writeJSON(w, http.StatusOK, challengeStatusResponse{Status: status})
}
