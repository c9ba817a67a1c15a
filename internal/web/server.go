package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/rvangils/accountd/internal/account"
)

// ServerDeps are the dependencies for the server.
type ServerDeps struct {
	Logger  *slog.Logger
	Service *account.Service
}

type Server struct {
	deps *ServerDeps
	mux  *http.ServeMux
}

func NewServer(deps *ServerDeps) *Server {
	s := &Server{
		deps: deps,
		mux:  http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /user/signup", s.signup)
	s.mux.HandleFunc("GET /user/verify/{accountID}/{token}", s.verify)
	s.mux.HandleFunc("POST /user/signin", s.signin)
	s.mux.HandleFunc("POST /user/requestPasswordReset", s.requestPasswordReset)
	s.mux.HandleFunc("POST /user/resetPassword", s.resetPassword)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var reg account.Registration
	if !s.readJSON(w, r, &reg) {
		return
	}

	s.writeOutcome(w, r, s.deps.Service.Register(r.Context(), reg))
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(r.PathValue("accountID"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, response{
			Status:  string(account.StatusFailed),
			Message: "Invalid verification link",
		})
		return
	}

	s.writeOutcome(w, r, s.deps.Service.Verify(r.Context(), account.Verification{
		AccountID: accountID,
		Token:     r.PathValue("token"),
	}))
}

func (s *Server) signin(w http.ResponseWriter, r *http.Request) {
	var creds account.Credentials
	if !s.readJSON(w, r, &creds) {
		return
	}

	s.writeOutcome(w, r, s.deps.Service.Login(r.Context(), creds))
}

func (s *Server) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req account.ResetRequest
	if !s.readJSON(w, r, &req) {
		return
	}

	s.writeOutcome(w, r, s.deps.Service.RequestPasswordReset(r.Context(), req))
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var reset account.PasswordReset
	if !s.readJSON(w, r, &reset) {
		return
	}

	s.writeOutcome(w, r, s.deps.Service.CompletePasswordReset(r.Context(), reset))
}

// readJSON decodes the request body into dst. On failure it writes a
// failed response and reports false.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		s.writeResponse(w, http.StatusBadRequest, response{
			Status:  string(account.StatusFailed),
			Message: "Malformed request body",
		})
		return false
	}

	return true
}
