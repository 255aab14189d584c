package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/AsiwajuPseudo/contracts/internal/contracts"
	"github.com/AsiwajuPseudo/contracts/internal/docstore"
	"github.com/AsiwajuPseudo/contracts/pkg/canonhash"
	"github.com/AsiwajuPseudo/contracts/pkg/httpx"
)

// Server is the thin HTTP surface over the contracts service. The acting
// principal arrives in the X-User-Id header; handlers validate shape, call
// the service and translate its errors.
type Server struct {
	svc *contracts.Service
	log zerolog.Logger
}

func NewServer(svc *contracts.Service, log zerolog.Logger) *Server {
	return &Server{svc: svc, log: log}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogger(s.log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/contracts", func(api chi.Router) {
		api.Post("/", s.createContract)
		api.Get("/", s.listContracts)

		api.Route("/{contract_id}", func(cr chi.Router) {
			cr.Get("/", s.getContract)
			cr.Delete("/", s.deleteContract)
			cr.Post("/approve", s.approveContract)
			cr.Get("/export", s.exportContract)

			cr.Post("/collaborators", s.addCollaborator)
			cr.Delete("/collaborators/{user_id}", s.removeCollaborator)
			cr.Put("/collaborators/{user_id}", s.updateRole)

			cr.Post("/invitations", s.invite)
			cr.Get("/invitations", s.listInvitations)

			cr.Post("/clauses", s.addClause)
			cr.Route("/clauses/{clause_id}", func(cl chi.Router) {
				cl.Put("/", s.updateClause)
				cl.Delete("/", s.deleteClause)
				cl.Post("/move", s.moveClause)
				cl.Post("/comments", s.addComment)
				cl.Get("/comments", s.listComments)
				cl.Delete("/comments/{comment_id}", s.deleteComment)
				cl.Post("/explain", s.explainClause)
				cl.Post("/ask", s.askAboutClause)
			})
		})
	})
	return r
}

// principal extracts the acting user. Operations without a principal are
// rejected before touching the core.
func principal(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get("X-User-Id"))
	return id, id != ""
}

func requirePrincipal(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := principal(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "MISSING_PRINCIPAL", "X-User-Id header is required")
	}
	return userID, ok
}

func (s *Server) createContract(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "title is required")
		return
	}
	c, err := s.svc.Create(r.Context(), userID, req.Title, req.Description)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"request_id": httpx.NewRequestID(), "contract_id": c.ID})
}

func (s *Server) listContracts(w http.ResponseWriter, r *http.Request) {
	filter := docstore.ListFilter{
		CreatorID:      r.URL.Query().Get("creator_id"),
		CollaboratorID: r.URL.Query().Get("collaborator_id"),
	}
	metas, err := s.svc.List(r.Context(), filter)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "contracts": metas})
}

func (s *Server) getContract(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	c, err := s.svc.Get(r.Context(), chi.URLParam(r, "contract_id"), userID)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "contract": c})
}

func (s *Server) deleteContract(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if err := s.svc.Delete(r.Context(), chi.URLParam(r, "contract_id"), userID); err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "deleted": true})
}

func (s *Server) approveContract(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	c, err := s.svc.Approve(r.Context(), chi.URLParam(r, "contract_id"), userID)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "status": c.Status})
}

func (s *Server) exportContract(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	out, err := s.svc.Export(r.Context(), chi.URLParam(r, "contract_id"), userID, format)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	contentType := "text/plain; charset=utf-8"
	if format == "html" {
		contentType = "text/html; charset=utf-8"
	}
	w.Header().Set("content-type", contentType)
	w.Header().Set("etag", `"`+canonhash.SumBytes(out)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) addClause(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		ShortTitle string `json:"short_title"`
		FullText   string `json:"full_text"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	if req.ShortTitle == "" || req.FullText == "" {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "short_title and full_text are required")
		return
	}
	clauseID, err := s.svc.AddClause(r.Context(), chi.URLParam(r, "contract_id"), userID, req.ShortTitle, req.FullText)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"request_id": httpx.NewRequestID(), "clause_id": clauseID})
}

func (s *Server) updateClause(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		ShortTitle string `json:"short_title"`
		FullText   string `json:"full_text"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	if req.FullText == "" {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "full_text is required")
		return
	}
	err := s.svc.UpdateClause(r.Context(), chi.URLParam(r, "contract_id"), chi.URLParam(r, "clause_id"), userID, req.ShortTitle, req.FullText)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "updated": true})
}

func (s *Server) deleteClause(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	err := s.svc.DeleteClause(r.Context(), chi.URLParam(r, "contract_id"), chi.URLParam(r, "clause_id"), userID)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "deleted": true})
}

func (s *Server) moveClause(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		NewIndex int `json:"new_index"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	err := s.svc.MoveClause(r.Context(), chi.URLParam(r, "contract_id"), chi.URLParam(r, "clause_id"), userID, req.NewIndex)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "moved": true})
}

func (s *Server) addCollaborator(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		CollaboratorID string `json:"collaborator_id"`
		Role           string `json:"role"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	err := s.svc.AddCollaborator(r.Context(), chi.URLParam(r, "contract_id"), userID, req.CollaboratorID, req.Role)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "added": true})
}

func (s *Server) removeCollaborator(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	err := s.svc.RemoveCollaborator(r.Context(), chi.URLParam(r, "contract_id"), userID, chi.URLParam(r, "user_id"))
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "removed": true})
}

func (s *Server) updateRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	err := s.svc.UpdateRole(r.Context(), chi.URLParam(r, "contract_id"), userID, chi.URLParam(r, "user_id"), req.Role)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "updated": true})
}

func (s *Server) invite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	if !strings.Contains(req.Email, "@") {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "a valid email is required")
		return
	}
	inv, err := s.svc.InviteByEmail(r.Context(), chi.URLParam(r, "contract_id"), userID, req.Email, req.Role)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	if inv == nil {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "added": true})
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"request_id": httpx.NewRequestID(), "invitation": inv})
}

func (s *Server) listInvitations(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	invs, err := s.svc.Invitations(r.Context(), chi.URLParam(r, "contract_id"), userID)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "invitations": invs})
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "text is required")
		return
	}
	commentID, err := s.svc.AddComment(r.Context(), chi.URLParam(r, "contract_id"), chi.URLParam(r, "clause_id"), userID, req.Text)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"request_id": httpx.NewRequestID(), "comment_id": commentID})
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	comments, err := s.svc.Comments(r.Context(), chi.URLParam(r, "contract_id"), chi.URLParam(r, "clause_id"), userID)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "comments": comments})
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	err := s.svc.DeleteComment(r.Context(),
		chi.URLParam(r, "contract_id"), chi.URLParam(r, "clause_id"), chi.URLParam(r, "comment_id"), userID)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "deleted": true})
}

func (s *Server) explainClause(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	explanation, err := s.svc.ExplainClause(r.Context(), chi.URLParam(r, "contract_id"), chi.URLParam(r, "clause_id"), userID)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "explanation": explanation})
}

func (s *Server) askAboutClause(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		SessionID string `json:"session_id"`
		Question  string `json:"question"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.Question) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "session_id and question are required")
		return
	}
	answer, err := s.svc.AskAboutClause(r.Context(),
		chi.URLParam(r, "contract_id"), chi.URLParam(r, "clause_id"), userID, req.SessionID, req.Question)
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "answer": answer})
}
