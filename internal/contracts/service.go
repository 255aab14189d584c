// Package contracts implements every contract-mutating operation. Each
// operation follows the same shape: load the document, check existence,
// authorize the acting principal, mutate the in-memory copy, persist the
// whole document. Authorization failures happen before any mutation, so a
// rejected operation never changes persisted state.
package contracts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/AsiwajuPseudo/contracts/internal/docstore"
	"github.com/AsiwajuPseudo/contracts/internal/history"
	"github.com/AsiwajuPseudo/contracts/pkg/domain"
)

// Indexer receives the denormalized side effects of mutations. Index
// writes happen after the document save succeeds and are best-effort: the
// document store is authoritative, a failed index write is logged and the
// operation still succeeds.
type Indexer interface {
	CreateContract(ctx context.Context, id, title, creatorID string, status domain.Status, createdAt time.Time) error
	DeleteContract(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status domain.Status) error
	AddPermission(ctx context.Context, permissionID, contractID, userID string, role domain.Role) error
	RemovePermission(ctx context.Context, contractID, userID string) error
	UpdatePermission(ctx context.Context, contractID, userID string, role domain.Role) error
	AddInvitation(ctx context.Context, inv domain.Invitation) error
	ListInvitations(ctx context.Context, contractID string) ([]domain.Invitation, error)
}

// Directory resolves principals to display profiles.
type Directory interface {
	LookupUserByID(ctx context.Context, userID string) (domain.Profile, error)
	LookupUserByEmail(ctx context.Context, email string) (domain.Profile, error)
}

// Renderer produces an export of a contract document.
type Renderer interface {
	Render(c *domain.Contract, format string) ([]byte, error)
}

// Assistant is the narrow interface to the external AI assist service.
type Assistant interface {
	Explain(ctx context.Context, text string) (string, error)
	Answer(ctx context.Context, text string, turns []history.Turn, question string) (string, error)
}

// HistoryStore keeps per-(contract, clause, session) conversation turns.
type HistoryStore interface {
	Turns(ctx context.Context, key history.Key) ([]history.Turn, error)
	Append(ctx context.Context, key history.Key, turns ...history.Turn) error
	Drop(ctx context.Context, key history.Key) error
}

// Deps wires the service. Index, Renderer, Assistant and History may be nil
// when the corresponding surface is not served; Users is required.
type Deps struct {
	Docs      *docstore.Store
	Index     Indexer
	Users     Directory
	Renderer  Renderer
	Assistant Assistant
	History   HistoryStore
	Logger    zerolog.Logger
	Now       func() time.Time
}

type Service struct {
	docs      *docstore.Store
	index     Indexer
	users     Directory
	renderer  Renderer
	assistant Assistant
	history   HistoryStore
	log       zerolog.Logger
	now       func() time.Time
}

func New(d Deps) *Service {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		docs:      d.Docs,
		index:     d.Index,
		users:     d.Users,
		renderer:  d.Renderer,
		assistant: d.Assistant,
		history:   d.History,
		log:       d.Logger,
		now:       d.Now,
	}
}

// Create builds a new Draft contract for the creator. The creator must
// resolve in the directory; an unknown principal cannot own contracts.
func (s *Service) Create(ctx context.Context, creatorID, title, description string) (*domain.Contract, error) {
	profile, err := s.users.LookupUserByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("resolve creator: %w", err)
	}
	c := domain.NewContract(creatorID, profile.Name, title, description, s.now())
	if err := s.docs.Create(c); err != nil {
		return nil, err
	}
	s.indexWrite(ctx, c.ID, "create", func() error {
		return s.index.CreateContract(ctx, c.ID, c.Title, c.CreatorID, c.Status, c.CreationDate)
	})
	return c, nil
}

// Get returns the full document to any principal with view access.
func (s *Service) Get(ctx context.Context, contractID, userID string) (*domain.Contract, error) {
	c, err := s.docs.Load(contractID)
	if err != nil {
		return nil, err
	}
	if err := domain.Authorize(c, userID, domain.CapView); err != nil {
		return nil, err
	}
	return c, nil
}

// AddClause appends a clause with its initial version.
func (s *Service) AddClause(ctx context.Context, contractID, userID, shortTitle, fullText string) (string, error) {
	c, err := s.docs.Load(contractID)
	if err != nil {
		return "", err
	}
	if err := domain.Authorize(c, userID, domain.CapEditClauses); err != nil {
		return "", err
	}
	publisher := s.profileOrID(ctx, userID)
	clauseID := c.AddClause(shortTitle, fullText, userID, publisher, s.now())
	if err := s.docs.Save(c); err != nil {
		return "", err
	}
	return clauseID, nil
}

// UpdateClause prepends a new version; shortTitle optionally renames.
func (s *Service) UpdateClause(ctx context.Context, contractID, clauseID, userID, shortTitle, fullText string) error {
	c, err := s.docs.Load(contractID)
	if err != nil {
		return err
	}
	if err := domain.Authorize(c, userID, domain.CapEditClauses); err != nil {
		return err
	}
	publisher := s.profileOrID(ctx, userID)
	if err := c.UpdateClause(clauseID, shortTitle, fullText, userID, publisher, s.now()); err != nil {
		return err
	}
	return s.docs.Save(c)
}

// DeleteClause removes a clause with all of its versions and comments.
func (s *Service) DeleteClause(ctx context.Context, contractID, clauseID, userID string) error {
	c, err := s.docs.Load(contractID)
	if err != nil {
		return err
	}
	if err := domain.Authorize(c, userID, domain.CapEditClauses); err != nil {
		return err
	}
	if err := c.DeleteClause(clauseID); err != nil {
		return err
	}
	return s.docs.Save(c)
}

// MoveClause relocates a clause; out-of-range targets clamp to the end.
func (s *Service) MoveClause(ctx context.Context, contractID, clauseID, userID string, newIndex int) error {
	c, err := s.docs.Load(contractID)
	if err != nil {
		return err
	}
	if err := domain.Authorize(c, userID, domain.CapEditClauses); err != nil {
		return err
	}
	if err := c.MoveClause(clauseID, newIndex); err != nil {
		return err
	}
	return s.docs.Save(c)
}

// AddCollaborator attaches a known user as a collaborator. Creator-only.
func (s *Service) AddCollaborator(ctx context.Context, contractID, actorID, collaboratorID, roleStr string) error {
	role, err := domain.ParseRole(roleStr)
	if err != nil {
		return err
	}
	c, err := s.docs.Load(contractID)
	if err != nil {
		return err
	}
	if err := domain.Authorize(c, actorID, domain.CapManageCollaborators); err != nil {
		return err
	}
	profile, err := s.users.LookupUserByID(ctx, collaboratorID)
	if err != nil {
		return fmt.Errorf("resolve collaborator: %w", err)
	}
	if err := c.AddCollaborator(profile.UserID, profile.Name, profile.Email, role, s.now()); err != nil {
		return err
	}
	if err := s.docs.Save(c); err != nil {
		return err
	}
	s.indexWrite(ctx, c.ID, "add permission", func() error {
		return s.index.AddPermission(ctx, domain.NewPermissionID(), c.ID, profile.UserID, role)
	})
	return nil
}

// InviteByEmail attaches the user behind an email address, or records a
// pending invitation when the address is unknown. Creator-only. Returns the
// invitation when one was recorded, nil when the collaborator was attached
// directly.
func (s *Service) InviteByEmail(ctx context.Context, contractID, actorID, email, roleStr string) (*domain.Invitation, error) {
	role, err := domain.ParseRole(roleStr)
	if err != nil {
		return nil, err
	}
	c, err := s.docs.Load(contractID)
	if err != nil {
		return nil, err
	}
	if err := domain.Authorize(c, actorID, domain.CapManageCollaborators); err != nil {
		return nil, err
	}

	profile, err := s.users.LookupUserByEmail(ctx, email)
	switch {
	case err == nil:
		if err := c.AddCollaborator(profile.UserID, profile.Name, profile.Email, role, s.now()); err != nil {
			return nil, err
		}
		if err := s.docs.Save(c); err != nil {
			return nil, err
		}
		s.indexWrite(ctx, c.ID, "add permission", func() error {
			return s.index.AddPermission(ctx, domain.NewPermissionID(), c.ID, profile.UserID, role)
		})
		return nil, nil
	case errors.Is(err, domain.ErrNotFound):
		inv := domain.Invitation{
			ID:         domain.NewInvitationID(),
			ContractID: c.ID,
			Email:      email,
			Role:       role,
			Status:     domain.InvitationPending,
			CreatedAt:  s.now(),
		}
		if s.index == nil {
			return nil, fmt.Errorf("%w: invitations are not available", domain.ErrStorage)
		}
		if err := s.index.AddInvitation(ctx, inv); err != nil {
			return nil, err
		}
		return &inv, nil
	default:
		return nil, err
	}
}

// Invitations lists the invitations recorded for a contract.
func (s *Service) Invitations(ctx context.Context, contractID, userID string) ([]domain.Invitation, error) {
	c, err := s.docs.Load(contractID)
	if err != nil {
		return nil, err
	}
	if err := domain.Authorize(c, userID, domain.CapView); err != nil {
		return nil, err
	}
	if s.index == nil {
		return []domain.Invitation{}, nil
	}
	return s.index.ListInvitations(ctx, contractID)
}

// RemoveCollaborator detaches a collaborator. Creator-only.
func (s *Service) RemoveCollaborator(ctx context.Context, contractID, actorID, collaboratorID string) error {
	c, err := s.docs.Load(contractID)
	if err != nil {
		return err
	}
	if err := domain.Authorize(c, actorID, domain.CapManageCollaborators); err != nil {
		return err
	}
	if err := c.RemoveCollaborator(collaboratorID); err != nil {
		return err
	}
	if err := s.docs.Save(c); err != nil {
		return err
	}
	s.indexWrite(ctx, c.ID, "remove permission", func() error {
		return s.index.RemovePermission(ctx, c.ID, collaboratorID)
	})
	return nil
}

// UpdateRole changes a collaborator's role. Creator-only.
func (s *Service) UpdateRole(ctx context.Context, contractID, actorID, collaboratorID, roleStr string) error {
	role, err := domain.ParseRole(roleStr)
	if err != nil {
		return err
	}
	c, err := s.docs.Load(contractID)
	if err != nil {
		return err
	}
	if err := domain.Authorize(c, actorID, domain.CapManageCollaborators); err != nil {
		return err
	}
	if err := c.UpdateRole(collaboratorID, role); err != nil {
		return err
	}
	if err := s.docs.Save(c); err != nil {
		return err
	}
	s.indexWrite(ctx, c.ID, "update permission", func() error {
		return s.index.UpdatePermission(ctx, c.ID, collaboratorID, role)
	})
	return nil
}

// AddComment appends a comment to a clause. The creator and every
// collaborator may comment, whatever their role.
func (s *Service) AddComment(ctx context.Context, contractID, clauseID, userID, text string) (string, error) {
	c, err := s.docs.Load(contractID)
	if err != nil {
		return "", err
	}
	if err := domain.Authorize(c, userID, domain.CapComment); err != nil {
		return "", err
	}
	author := s.authorProfile(ctx, c, userID)
	commentID, err := c.AddComment(clauseID, userID, author.Email, author.Name, text, s.now())
	if err != nil {
		return "", err
	}
	if err := s.docs.Save(c); err != nil {
		return "", err
	}
	return commentID, nil
}

// Comments returns a clause's comments in insertion order.
func (s *Service) Comments(ctx context.Context, contractID, clauseID, userID string) ([]domain.Comment, error) {
	c, err := s.docs.Load(contractID)
	if err != nil {
		return nil, err
	}
	if err := domain.Authorize(c, userID, domain.CapView); err != nil {
		return nil, err
	}
	clause, ok := c.FindClause(clauseID)
	if !ok {
		return nil, fmt.Errorf("%w: clause %s", domain.ErrNotFound, clauseID)
	}
	return clause.Comments, nil
}

// DeleteComment removes a comment. Only its author or the contract creator
// may delete it.
func (s *Service) DeleteComment(ctx context.Context, contractID, clauseID, commentID, userID string) error {
	c, err := s.docs.Load(contractID)
	if err != nil {
		return err
	}
	comment, ok := c.FindComment(clauseID, commentID)
	if !ok {
		return fmt.Errorf("%w: comment %s", domain.ErrNotFound, commentID)
	}
	if err := domain.AuthorizeCommentDelete(c, comment, userID); err != nil {
		return err
	}
	if err := c.DeleteComment(clauseID, commentID); err != nil {
		return err
	}
	return s.docs.Save(c)
}

// Approve transitions the contract Draft -> Approved. Approvers and the
// creator may approve; approving an already approved contract succeeds
// without effect.
func (s *Service) Approve(ctx context.Context, contractID, userID string) (*domain.Contract, error) {
	c, err := s.docs.Load(contractID)
	if err != nil {
		return nil, err
	}
	if err := domain.Authorize(c, userID, domain.CapApprove); err != nil {
		return nil, err
	}
	if c.Status == domain.StatusApproved {
		return c, nil
	}
	c.Approve()
	if err := s.docs.Save(c); err != nil {
		return nil, err
	}
	s.indexWrite(ctx, c.ID, "set status", func() error {
		return s.index.SetStatus(ctx, c.ID, c.Status)
	})
	return c, nil
}

// Delete removes the whole document. Creator-only.
func (s *Service) Delete(ctx context.Context, contractID, userID string) error {
	c, err := s.docs.Load(contractID)
	if err != nil {
		return err
	}
	if !c.IsCreator(userID) {
		return fmt.Errorf("%w: only the creator may delete a contract", domain.ErrForbidden)
	}
	existed, err := s.docs.Delete(contractID)
	if err != nil {
		return err
	}
	if !existed {
		return fmt.Errorf("%w: contract %s", domain.ErrNotFound, contractID)
	}
	s.indexWrite(ctx, contractID, "delete", func() error {
		return s.index.DeleteContract(ctx, contractID)
	})
	return nil
}

// List returns the metadata of contracts matching the filter.
func (s *Service) List(ctx context.Context, filter docstore.ListFilter) ([]domain.Metadata, error) {
	return s.docs.ListAll(filter)
}

// Export renders the document for download.
func (s *Service) Export(ctx context.Context, contractID, userID, format string) ([]byte, error) {
	c, err := s.docs.Load(contractID)
	if err != nil {
		return nil, err
	}
	if err := domain.Authorize(c, userID, domain.CapView); err != nil {
		return nil, err
	}
	if s.renderer == nil {
		return nil, fmt.Errorf("%w: export is not available", domain.ErrInvalidArgument)
	}
	return s.renderer.Render(c, format)
}

// ExplainClause asks the assist service to explain the latest text of a
// clause.
func (s *Service) ExplainClause(ctx context.Context, contractID, clauseID, userID string) (string, error) {
	c, err := s.docs.Load(contractID)
	if err != nil {
		return "", err
	}
	if err := domain.Authorize(c, userID, domain.CapView); err != nil {
		return "", err
	}
	clause, ok := c.FindClause(clauseID)
	if !ok {
		return "", fmt.Errorf("%w: clause %s", domain.ErrNotFound, clauseID)
	}
	if s.assistant == nil {
		return "", fmt.Errorf("%w: assist is not available", domain.ErrInvalidArgument)
	}
	return s.assistant.Explain(ctx, clause.Versions[0].FullText)
}

// AskAboutClause runs one multi-turn Q&A exchange about a clause. The
// conversation is scoped per (contract, clause, session) and persisted in
// the history store with its expiry policy.
func (s *Service) AskAboutClause(ctx context.Context, contractID, clauseID, userID, sessionID, question string) (string, error) {
	c, err := s.docs.Load(contractID)
	if err != nil {
		return "", err
	}
	if err := domain.Authorize(c, userID, domain.CapView); err != nil {
		return "", err
	}
	clause, ok := c.FindClause(clauseID)
	if !ok {
		return "", fmt.Errorf("%w: clause %s", domain.ErrNotFound, clauseID)
	}
	if s.assistant == nil || s.history == nil {
		return "", fmt.Errorf("%w: assist is not available", domain.ErrInvalidArgument)
	}

	key := history.Key{ContractID: contractID, ClauseID: clauseID, SessionID: sessionID}
	turns, err := s.history.Turns(ctx, key)
	if err != nil {
		return "", err
	}
	answer, err := s.assistant.Answer(ctx, clause.Versions[0].FullText, turns, question)
	if err != nil {
		return "", err
	}
	if err := s.history.Append(ctx, key,
		history.Turn{Role: history.RoleUser, Content: question},
		history.Turn{Role: history.RoleAssistant, Content: answer},
	); err != nil {
		s.log.Warn().Err(err).Str("contract_id", contractID).Msg("append conversation history")
	}
	return answer, nil
}

// profileOrID resolves a display name, falling back to the raw id when the
// directory has no profile.
func (s *Service) profileOrID(ctx context.Context, userID string) string {
	p, err := s.users.LookupUserByID(ctx, userID)
	if err != nil {
		return userID
	}
	return p.Name
}

// authorProfile prefers the collaborator record already on the document,
// then the directory, then the bare id.
func (s *Service) authorProfile(ctx context.Context, c *domain.Contract, userID string) domain.Profile {
	if col, ok := c.FindCollaborator(userID); ok {
		return domain.Profile{UserID: userID, Name: col.Name, Email: col.Email}
	}
	p, err := s.users.LookupUserByID(ctx, userID)
	if err != nil {
		return domain.Profile{UserID: userID, Name: userID}
	}
	return p
}

// indexWrite runs an index side effect, logging instead of failing the
// operation: the document store is the source of truth.
func (s *Service) indexWrite(ctx context.Context, contractID, op string, fn func() error) {
	if s.index == nil {
		return
	}
	if err := fn(); err != nil {
		s.log.Warn().Err(err).Str("contract_id", contractID).Str("op", op).Msg("index update failed")
	}
}
