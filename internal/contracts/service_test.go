package contracts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/AsiwajuPseudo/contracts/internal/docstore"
	"github.com/AsiwajuPseudo/contracts/internal/history"
	"github.com/AsiwajuPseudo/contracts/internal/render"
	"github.com/AsiwajuPseudo/contracts/pkg/domain"
)

// fakeIndex records index side effects in memory.
type fakeIndex struct {
	statuses    map[string]domain.Status
	permissions map[string]map[string]domain.Role
	invitations []domain.Invitation
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		statuses:    map[string]domain.Status{},
		permissions: map[string]map[string]domain.Role{},
	}
}

func (f *fakeIndex) CreateContract(_ context.Context, id, _, _ string, status domain.Status, _ time.Time) error {
	f.statuses[id] = status
	return nil
}

func (f *fakeIndex) DeleteContract(_ context.Context, id string) error {
	delete(f.statuses, id)
	delete(f.permissions, id)
	return nil
}

func (f *fakeIndex) SetStatus(_ context.Context, id string, status domain.Status) error {
	f.statuses[id] = status
	return nil
}

func (f *fakeIndex) AddPermission(_ context.Context, _, contractID, userID string, role domain.Role) error {
	if f.permissions[contractID] == nil {
		f.permissions[contractID] = map[string]domain.Role{}
	}
	f.permissions[contractID][userID] = role
	return nil
}

func (f *fakeIndex) RemovePermission(_ context.Context, contractID, userID string) error {
	delete(f.permissions[contractID], userID)
	return nil
}

func (f *fakeIndex) UpdatePermission(_ context.Context, contractID, userID string, role domain.Role) error {
	if f.permissions[contractID] == nil {
		f.permissions[contractID] = map[string]domain.Role{}
	}
	f.permissions[contractID][userID] = role
	return nil
}

func (f *fakeIndex) AddInvitation(_ context.Context, inv domain.Invitation) error {
	f.invitations = append(f.invitations, inv)
	return nil
}

func (f *fakeIndex) ListInvitations(_ context.Context, contractID string) ([]domain.Invitation, error) {
	out := []domain.Invitation{}
	for _, inv := range f.invitations {
		if inv.ContractID == contractID {
			out = append(out, inv)
		}
	}
	return out, nil
}

// fakeDirectory resolves a fixed set of users.
type fakeDirectory struct{ users map[string]domain.Profile }

func (f *fakeDirectory) LookupUserByID(_ context.Context, userID string) (domain.Profile, error) {
	if p, ok := f.users[userID]; ok {
		return p, nil
	}
	return domain.Profile{}, domain.ErrNotFound
}

func (f *fakeDirectory) LookupUserByEmail(_ context.Context, email string) (domain.Profile, error) {
	for _, p := range f.users {
		if p.Email == email {
			return p, nil
		}
	}
	return domain.Profile{}, domain.ErrNotFound
}

// fakeAssistant echoes deterministic answers.
type fakeAssistant struct{ lastTurns []history.Turn }

func (f *fakeAssistant) Explain(_ context.Context, text string) (string, error) {
	return "explained: " + text, nil
}

func (f *fakeAssistant) Answer(_ context.Context, _ string, turns []history.Turn, question string) (string, error) {
	f.lastTurns = turns
	return "answer to: " + question, nil
}

type fixture struct {
	svc   *Service
	index *fakeIndex
	ai    *fakeAssistant
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	docs, err := docstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("docstore: %v", err)
	}
	idx := newFakeIndex()
	ai := &fakeAssistant{}
	dir := &fakeDirectory{users: map[string]domain.Profile{
		"usr_ada":  {UserID: "usr_ada", Name: "Ada", Email: "ada@example.com"},
		"usr_bob":  {UserID: "usr_bob", Name: "Bob", Email: "bob@example.com"},
		"usr_eve":  {UserID: "usr_eve", Name: "Eve", Email: "eve@example.com"},
		"usr_apu":  {UserID: "usr_apu", Name: "Apu", Email: "apu@example.com"},
		"usr_vera": {UserID: "usr_vera", Name: "Vera", Email: "vera@example.com"},
	}}
	svc := New(Deps{
		Docs:      docs,
		Index:     idx,
		Users:     dir,
		Renderer:  render.New(),
		Assistant: ai,
		History:   history.NewMemory(time.Hour),
	})
	return &fixture{svc: svc, index: idx, ai: ai, ctx: context.Background()}
}

// create seeds a contract by Ada with Bob=Editor, Vera=Viewer, Apu=Approver.
func (fx *fixture) createShared(t *testing.T) *domain.Contract {
	t.Helper()
	c, err := fx.svc.Create(fx.ctx, "usr_ada", "NDA", "mutual nda")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for user, role := range map[string]string{"usr_bob": "Editor", "usr_vera": "Viewer", "usr_apu": "Approver"} {
		if err := fx.svc.AddCollaborator(fx.ctx, c.ID, "usr_ada", user, role); err != nil {
			t.Fatalf("add collaborator %s: %v", user, err)
		}
	}
	return c
}

func TestCreateRequiresKnownCreator(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.svc.Create(fx.ctx, "usr_ghost", "x", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown creator, got %v", err)
	}

	c, err := fx.svc.Create(fx.ctx, "usr_ada", "NDA", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != domain.StatusDraft || c.CreatorName != "Ada" || len(c.Clauses) != 0 {
		t.Fatalf("unexpected new contract: %+v", c)
	}
	if fx.index.statuses[c.ID] != domain.StatusDraft {
		t.Fatalf("index row missing after create")
	}
}

func TestClauseLifecycleScenario(t *testing.T) {
	fx := newFixture(t)
	c := fx.createShared(t)

	clauseID, err := fx.svc.AddClause(fx.ctx, c.ID, "usr_ada", "Confidentiality", "Do not share.")
	if err != nil {
		t.Fatalf("add clause: %v", err)
	}
	if err := fx.svc.UpdateClause(fx.ctx, c.ID, clauseID, "usr_bob", "", "Do not share without consent."); err != nil {
		t.Fatalf("update clause: %v", err)
	}

	got, err := fx.svc.Get(fx.ctx, c.ID, "usr_ada")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	clause, ok := got.FindClause(clauseID)
	if !ok {
		t.Fatalf("clause vanished")
	}
	if clause.Versions[0].FullText != "Do not share without consent." {
		t.Fatalf("versions[0] = %q", clause.Versions[0].FullText)
	}
	if clause.Versions[1].FullText != "Do not share." {
		t.Fatalf("versions[1] = %q", clause.Versions[1].FullText)
	}
	if clause.Versions[0].PublisherName != "Bob" {
		t.Fatalf("publisher not resolved from directory: %q", clause.Versions[0].PublisherName)
	}
}

func TestViewerCannotEditClauses(t *testing.T) {
	fx := newFixture(t)
	c := fx.createShared(t)

	if _, err := fx.svc.AddClause(fx.ctx, c.ID, "usr_vera", "X", "x"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("viewer addClause: expected ErrForbidden, got %v", err)
	}

	got, _ := fx.svc.Get(fx.ctx, c.ID, "usr_ada")
	if len(got.Clauses) != 0 {
		t.Fatalf("forbidden operation mutated the document")
	}
}

func TestStrangerHasNoAccess(t *testing.T) {
	fx := newFixture(t)
	c := fx.createShared(t)
	if _, err := fx.svc.Get(fx.ctx, c.ID, "usr_eve"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := fx.svc.Get(fx.ctx, "ctr_missing", "usr_eve"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing contract must be NotFound before Forbidden, got %v", err)
	}
}

func TestMoveClauseClamps(t *testing.T) {
	fx := newFixture(t)
	c := fx.createShared(t)
	a, _ := fx.svc.AddClause(fx.ctx, c.ID, "usr_bob", "A", "a")
	_, _ = fx.svc.AddClause(fx.ctx, c.ID, "usr_bob", "B", "b")

	if err := fx.svc.MoveClause(fx.ctx, c.ID, a, "usr_bob", 50); err != nil {
		t.Fatalf("move: %v", err)
	}
	got, _ := fx.svc.Get(fx.ctx, c.ID, "usr_bob")
	if got.Clauses[1].ID != a {
		t.Fatalf("clause not clamped to end")
	}

	if err := fx.svc.MoveClause(fx.ctx, c.ID, "cls_missing", "usr_bob", 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCollaboratorManagementIsCreatorOnly(t *testing.T) {
	fx := newFixture(t)
	c := fx.createShared(t)

	if err := fx.svc.AddCollaborator(fx.ctx, c.ID, "usr_bob", "usr_eve", "Viewer"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("editor added collaborator: %v", err)
	}
	if err := fx.svc.RemoveCollaborator(fx.ctx, c.ID, "usr_bob", "usr_vera"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("editor removed collaborator: %v", err)
	}
	if err := fx.svc.UpdateRole(fx.ctx, c.ID, "usr_bob", "usr_vera", "Editor"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("editor changed role: %v", err)
	}

	got, _ := fx.svc.Get(fx.ctx, c.ID, "usr_ada")
	if len(got.Collaborators) != 3 {
		t.Fatalf("forbidden management mutated collaborators: %+v", got.Collaborators)
	}
	col, _ := got.FindCollaborator("usr_vera")
	if col.Role != domain.RoleViewer {
		t.Fatalf("role changed by forbidden call")
	}
}

func TestAddCollaboratorValidation(t *testing.T) {
	fx := newFixture(t)
	c := fx.createShared(t)

	if err := fx.svc.AddCollaborator(fx.ctx, c.ID, "usr_ada", "usr_bob", "Viewer"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate collaborator: expected ErrConflict, got %v", err)
	}
	if err := fx.svc.AddCollaborator(fx.ctx, c.ID, "usr_ada", "usr_eve", "Owner"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("bad role: expected ErrInvalidArgument, got %v", err)
	}
	if err := fx.svc.AddCollaborator(fx.ctx, c.ID, "usr_ada", "usr_ghost", "Viewer"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown user: expected ErrNotFound, got %v", err)
	}
}

func TestRoleChangeAndRemovalUpdateIndex(t *testing.T) {
	fx := newFixture(t)
	c := fx.createShared(t)

	if err := fx.svc.UpdateRole(fx.ctx, c.ID, "usr_ada", "usr_vera", "Editor"); err != nil {
		t.Fatalf("update role: %v", err)
	}
	if fx.index.permissions[c.ID]["usr_vera"] != domain.RoleEditor {
		t.Fatalf("index permission not updated")
	}

	if err := fx.svc.RemoveCollaborator(fx.ctx, c.ID, "usr_ada", "usr_vera"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := fx.index.permissions[c.ID]["usr_vera"]; ok {
		t.Fatalf("index permission not removed")
	}
	if err := fx.svc.RemoveCollaborator(fx.ctx, c.ID, "usr_ada", "usr_vera"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("re-remove: expected ErrNotFound, got %v", err)
	}
}

func TestCommentsFollowAuthorshipRules(t *testing.T) {
	fx := newFixture(t)
	c := fx.createShared(t)
	clauseID, _ := fx.svc.AddClause(fx.ctx, c.ID, "usr_bob", "Term", "Two years.")

	// Every collaborator may comment, including the Viewer.
	commentID, err := fx.svc.AddComment(fx.ctx, c.ID, clauseID, "usr_vera", "looks long")
	if err != nil {
		t.Fatalf("viewer comment: %v", err)
	}
	if _, err := fx.svc.AddComment(fx.ctx, c.ID, clauseID, "usr_eve", "drive-by"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("stranger comment: expected ErrForbidden, got %v", err)
	}

	// Only the author or the creator may delete.
	if err := fx.svc.DeleteComment(fx.ctx, c.ID, clauseID, commentID, "usr_bob"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("non-author delete: expected ErrForbidden, got %v", err)
	}
	if err := fx.svc.DeleteComment(fx.ctx, c.ID, clauseID, commentID, "usr_vera"); err != nil {
		t.Fatalf("author delete: %v", err)
	}

	commentID, _ = fx.svc.AddComment(fx.ctx, c.ID, clauseID, "usr_vera", "again")
	if err := fx.svc.DeleteComment(fx.ctx, c.ID, clauseID, commentID, "usr_ada"); err != nil {
		t.Fatalf("creator delete: %v", err)
	}

	comments, err := fx.svc.Comments(fx.ctx, c.ID, clauseID, "usr_vera")
	if err != nil || len(comments) != 0 {
		t.Fatalf("comments left behind: %v %v", comments, err)
	}
}

func TestApprovePolicy(t *testing.T) {
	fx := newFixture(t)
	c := fx.createShared(t)

	if _, err := fx.svc.Approve(fx.ctx, c.ID, "usr_bob"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("editor approve: expected ErrForbidden, got %v", err)
	}

	got, err := fx.svc.Approve(fx.ctx, c.ID, "usr_apu")
	if err != nil {
		t.Fatalf("approver approve: %v", err)
	}
	if got.Status != domain.StatusApproved {
		t.Fatalf("status = %s", got.Status)
	}
	if fx.index.statuses[c.ID] != domain.StatusApproved {
		t.Fatalf("index status not mirrored")
	}

	// Re-approval is an explicit no-op success.
	if _, err := fx.svc.Approve(fx.ctx, c.ID, "usr_apu"); err != nil {
		t.Fatalf("re-approve: %v", err)
	}

	// The creator holds the uniform bypass and may approve too.
	c2, _ := fx.svc.Create(fx.ctx, "usr_ada", "second", "")
	if _, err := fx.svc.Approve(fx.ctx, c2.ID, "usr_ada"); err != nil {
		t.Fatalf("creator approve: %v", err)
	}
}

func TestDeleteContractIsCreatorOnly(t *testing.T) {
	fx := newFixture(t)
	c := fx.createShared(t)

	if err := fx.svc.Delete(fx.ctx, c.ID, "usr_bob"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("editor delete: expected ErrForbidden, got %v", err)
	}
	if err := fx.svc.Delete(fx.ctx, c.ID, "usr_ada"); err != nil {
		t.Fatalf("creator delete: %v", err)
	}
	if err := fx.svc.Delete(fx.ctx, c.ID, "usr_ada"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("re-delete: expected ErrNotFound, got %v", err)
	}
	if _, ok := fx.index.statuses[c.ID]; ok {
		t.Fatalf("index row survived delete")
	}
}

func TestListFiltersByCreatorAndCollaborator(t *testing.T) {
	fx := newFixture(t)
	mine := fx.createShared(t)
	if _, err := fx.svc.Create(fx.ctx, "usr_bob", "bob's own", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	byCreator, err := fx.svc.List(fx.ctx, docstore.ListFilter{CreatorID: "usr_ada"})
	if err != nil || len(byCreator) != 1 || byCreator[0].ID != mine.ID {
		t.Fatalf("creator filter: %+v %v", byCreator, err)
	}
	byCollab, err := fx.svc.List(fx.ctx, docstore.ListFilter{CollaboratorID: "usr_bob"})
	if err != nil || len(byCollab) != 1 || byCollab[0].ID != mine.ID {
		t.Fatalf("collaborator filter: %+v %v", byCollab, err)
	}
	all, err := fx.svc.List(fx.ctx, docstore.ListFilter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("list all: %+v %v", all, err)
	}
}

func TestInviteByEmail(t *testing.T) {
	fx := newFixture(t)
	c := fx.createShared(t)

	// Known address attaches the collaborator directly.
	inv, err := fx.svc.InviteByEmail(fx.ctx, c.ID, "usr_ada", "eve@example.com", "Viewer")
	if err != nil || inv != nil {
		t.Fatalf("known email: inv=%v err=%v", inv, err)
	}
	got, _ := fx.svc.Get(fx.ctx, c.ID, "usr_ada")
	if _, ok := got.FindCollaborator("usr_eve"); !ok {
		t.Fatalf("known email did not attach collaborator")
	}

	// Unknown address records a pending invitation.
	inv, err = fx.svc.InviteByEmail(fx.ctx, c.ID, "usr_ada", "new@example.com", "Editor")
	if err != nil {
		t.Fatalf("unknown email: %v", err)
	}
	if inv == nil || inv.Status != domain.InvitationPending || inv.Role != domain.RoleEditor {
		t.Fatalf("unexpected invitation: %+v", inv)
	}

	listed, err := fx.svc.Invitations(fx.ctx, c.ID, "usr_ada")
	if err != nil || len(listed) != 1 || listed[0].Email != "new@example.com" {
		t.Fatalf("invitations listing: %+v %v", listed, err)
	}

	// Non-creators may not invite.
	if _, err := fx.svc.InviteByEmail(fx.ctx, c.ID, "usr_bob", "x@example.com", "Viewer"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("editor invite: expected ErrForbidden, got %v", err)
	}
}

func TestExportRendersLatestText(t *testing.T) {
	fx := newFixture(t)
	c := fx.createShared(t)
	clauseID, _ := fx.svc.AddClause(fx.ctx, c.ID, "usr_bob", "Confidentiality", "Do not share.")
	_ = fx.svc.UpdateClause(fx.ctx, c.ID, clauseID, "usr_bob", "", "Do not share without consent.")

	out, err := fx.svc.Export(fx.ctx, c.ID, "usr_vera", "text")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !containsAll(string(out), "NDA", "Do not share without consent.") {
		t.Fatalf("export missing content:\n%s", out)
	}

	if _, err := fx.svc.Export(fx.ctx, c.ID, "usr_eve", "text"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("stranger export: expected ErrForbidden, got %v", err)
	}
}

func TestAssistConversationAccumulates(t *testing.T) {
	fx := newFixture(t)
	c := fx.createShared(t)
	clauseID, _ := fx.svc.AddClause(fx.ctx, c.ID, "usr_bob", "Term", "Two years.")

	explanation, err := fx.svc.ExplainClause(fx.ctx, c.ID, clauseID, "usr_vera")
	if err != nil || explanation != "explained: Two years." {
		t.Fatalf("explain: %q %v", explanation, err)
	}

	if _, err := fx.svc.AskAboutClause(fx.ctx, c.ID, clauseID, "usr_vera", "sess_1", "why two?"); err != nil {
		t.Fatalf("first ask: %v", err)
	}
	if _, err := fx.svc.AskAboutClause(fx.ctx, c.ID, clauseID, "usr_vera", "sess_1", "can it renew?"); err != nil {
		t.Fatalf("second ask: %v", err)
	}
	// The second call sees the first exchange.
	if len(fx.ai.lastTurns) != 2 || fx.ai.lastTurns[0].Content != "why two?" {
		t.Fatalf("history not threaded: %+v", fx.ai.lastTurns)
	}

	// A different session starts clean.
	if _, err := fx.svc.AskAboutClause(fx.ctx, c.ID, clauseID, "usr_vera", "sess_2", "fresh"); err != nil {
		t.Fatalf("new session ask: %v", err)
	}
	if len(fx.ai.lastTurns) != 0 {
		t.Fatalf("sessions are not isolated: %+v", fx.ai.lastTurns)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
