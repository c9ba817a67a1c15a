package web

import (
	"encoding/json"
	"net/http"

	"github.com/rvangils/accountd/internal/account"
)

// response is the JSON envelope written for every endpoint. Data is
// only set for outcomes that carry a sanitized account.
type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) writeOutcome(w http.ResponseWriter, r *http.Request, out account.Outcome) {
	if err := out.Err(); err != nil {
		s.deps.Logger.Error("workflow failed",
			"url", r.URL.String(),
			"code", out.Code,
			"error", err,
		)
	}

	resp := response{
		Status:  string(out.Status),
		Message: out.Message,
	}
	if out.Account != nil {
		resp.Data = out.Account
	}

	s.writeResponse(w, statusCodeFor(out), resp)
}

func (s *Server) writeResponse(w http.ResponseWriter, statusCode int, resp response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.deps.Logger.Error("failed to write response", "error", err)
	}
}

// statusCodeFor maps a workflow outcome to an HTTP status code. Clients
// should treat the JSON status field as authoritative, the HTTP code is
// a courtesy for generic tooling.
func statusCodeFor(out account.Outcome) int {
	if out.Status != account.StatusFailed {
		return http.StatusOK
	}

	switch out.Code {
	case account.CodeHashingFailure,
		account.CodePersistenceFailure,
		account.CodeNotificationFailure:
		return http.StatusInternalServerError
	case account.CodeDuplicateEmail,
		account.CodeAccountNotVerified:
		return http.StatusConflict
	case account.CodeInvalidToken,
		account.CodeInvalidCredentials,
		account.CodeInvalidPassword,
		account.CodeEmailNotVerified:
		return http.StatusUnauthorized
	case account.CodeNoSuchPendingVerification,
		account.CodeNoSuchPendingReset,
		account.CodeNoSuchAccount:
		return http.StatusNotFound
	case account.CodeVerificationExpired,
		account.CodeResetExpired:
		return http.StatusGone
	default:
		return http.StatusBadRequest
	}
}
