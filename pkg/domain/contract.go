package domain

import (
	"fmt"
	"time"
)

// Status of a contract. The only defined transition is Draft -> Approved.
type Status string

const (
	StatusDraft    Status = "Draft"
	StatusApproved Status = "Approved"
)

// Contract is the aggregate root. It exclusively owns every nested
// collaborator, clause, version and comment; nothing is shared across
// contracts. All structural invariants are enforced by the methods below,
// never by callers poking at fields.
type Contract struct {
	ID            string         `json:"id"`
	CreatorID     string         `json:"creatorId"`
	CreatorName   string         `json:"creatorName"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Status        Status         `json:"status"`
	CreationDate  time.Time      `json:"creationDate"`
	Collaborators []Collaborator `json:"collaborators"`
	Clauses       []Clause       `json:"clauses"`

	// Rev is the persistence revision checked by the document store on
	// save, turning lost updates into detectable conflicts.
	Rev int64 `json:"rev"`
}

// Collaborator is a non-creator principal with a granted role.
// At most one collaborator per user id exists on a contract.
type Collaborator struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	AddedDate time.Time `json:"addedDate"`
}

// Clause is a named, independently versioned section. Versions are ordered
// newest-first and the slice is never empty.
type Clause struct {
	ID         string          `json:"id"`
	ShortTitle string          `json:"shortTitle"`
	Versions   []ClauseVersion `json:"versions"`
	Comments   []Comment       `json:"comments"`
}

// ClauseVersion is an immutable snapshot of a clause's text.
type ClauseVersion struct {
	Date          time.Time `json:"date"`
	FullText      string    `json:"fullText"`
	PublisherID   string    `json:"publisherId"`
	PublisherName string    `json:"publisherName"`
}

// Comment is immutable once written; it can only be removed.
type Comment struct {
	ID           string    `json:"id"`
	AuthorUserID string    `json:"authorUserId"`
	AuthorEmail  string    `json:"authorEmail"`
	AuthorName   string    `json:"authorName"`
	Text         string    `json:"text"`
	Date         time.Time `json:"date"`
}

// Metadata is the projection returned by listings; it never carries clause
// bodies.
type Metadata struct {
	ID            string         `json:"id"`
	CreatorID     string         `json:"creatorId"`
	CreatorName   string         `json:"creatorName"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Status        Status         `json:"status"`
	CreationDate  time.Time      `json:"creationDate"`
	Collaborators []Collaborator `json:"collaborators"`
}

// NewContract creates a Draft contract with no clauses or collaborators.
func NewContract(creatorID, creatorName, title, description string, now time.Time) *Contract {
	return &Contract{
		ID:            NewContractID(),
		CreatorID:     creatorID,
		CreatorName:   creatorName,
		Title:         title,
		Description:   description,
		Status:        StatusDraft,
		CreationDate:  now,
		Collaborators: []Collaborator{},
		Clauses:       []Clause{},
	}
}

// Metadata returns the listing projection of the contract.
func (c *Contract) Metadata() Metadata {
	return Metadata{
		ID:            c.ID,
		CreatorID:     c.CreatorID,
		CreatorName:   c.CreatorName,
		Title:         c.Title,
		Description:   c.Description,
		Status:        c.Status,
		CreationDate:  c.CreationDate,
		Collaborators: c.Collaborators,
	}
}

// FindClause returns a pointer into the clause slice, valid until the next
// structural mutation.
func (c *Contract) FindClause(clauseID string) (*Clause, bool) {
	for i := range c.Clauses {
		if c.Clauses[i].ID == clauseID {
			return &c.Clauses[i], true
		}
	}
	return nil, false
}

// FindCollaborator returns the collaborator record for a user id.
func (c *Contract) FindCollaborator(userID string) (*Collaborator, bool) {
	for i := range c.Collaborators {
		if c.Collaborators[i].UserID == userID {
			return &c.Collaborators[i], true
		}
	}
	return nil, false
}

// IsCreator reports whether userID created this contract.
func (c *Contract) IsCreator(userID string) bool { return userID == c.CreatorID }

// AddClause appends a clause with its initial version and returns the new
// clause id.
func (c *Contract) AddClause(shortTitle, fullText, publisherID, publisherName string, now time.Time) string {
	clause := Clause{
		ID:         NewClauseID(),
		ShortTitle: shortTitle,
		Versions: []ClauseVersion{{
			Date:          now,
			FullText:      fullText,
			PublisherID:   publisherID,
			PublisherName: publisherName,
		}},
		Comments: []Comment{},
	}
	c.Clauses = append(c.Clauses, clause)
	return clause.ID
}

// UpdateClause prepends a new version to the clause, keeping full history.
// An empty shortTitle leaves the current title untouched.
func (c *Contract) UpdateClause(clauseID, shortTitle, fullText, publisherID, publisherName string, now time.Time) error {
	clause, ok := c.FindClause(clauseID)
	if !ok {
		return fmt.Errorf("%w: clause %s", ErrNotFound, clauseID)
	}
	version := ClauseVersion{
		Date:          now,
		FullText:      fullText,
		PublisherID:   publisherID,
		PublisherName: publisherName,
	}
	clause.Versions = append([]ClauseVersion{version}, clause.Versions...)
	if shortTitle != "" {
		clause.ShortTitle = shortTitle
	}
	return nil
}

// DeleteClause removes a clause together with its versions and comments.
func (c *Contract) DeleteClause(clauseID string) error {
	for i := range c.Clauses {
		if c.Clauses[i].ID == clauseID {
			c.Clauses = append(c.Clauses[:i], c.Clauses[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: clause %s", ErrNotFound, clauseID)
}

// MoveClause relocates a clause to newIndex. Indexes outside [0, len) clamp
// to the end of the sequence; range is never an error.
func (c *Contract) MoveClause(clauseID string, newIndex int) error {
	from := -1
	for i := range c.Clauses {
		if c.Clauses[i].ID == clauseID {
			from = i
			break
		}
	}
	if from == -1 {
		return fmt.Errorf("%w: clause %s", ErrNotFound, clauseID)
	}
	clause := c.Clauses[from]
	rest := append(c.Clauses[:from:from], c.Clauses[from+1:]...)
	if newIndex < 0 || newIndex > len(rest) {
		newIndex = len(rest)
	}
	c.Clauses = append(rest[:newIndex:newIndex], append([]Clause{clause}, rest[newIndex:]...)...)
	return nil
}

// AddCollaborator attaches a collaborator. The creator cannot be added and
// duplicate user ids are a conflict.
func (c *Contract) AddCollaborator(userID, name, email string, role Role, now time.Time) error {
	if userID == c.CreatorID {
		return fmt.Errorf("%w: creator is implicitly a collaborator", ErrConflict)
	}
	if _, ok := c.FindCollaborator(userID); ok {
		return fmt.Errorf("%w: user %s is already a collaborator", ErrConflict, userID)
	}
	c.Collaborators = append(c.Collaborators, Collaborator{
		UserID:    userID,
		Name:      name,
		Email:     email,
		Role:      role,
		AddedDate: now,
	})
	return nil
}

// RemoveCollaborator detaches a collaborator by user id.
func (c *Contract) RemoveCollaborator(userID string) error {
	for i := range c.Collaborators {
		if c.Collaborators[i].UserID == userID {
			c.Collaborators = append(c.Collaborators[:i], c.Collaborators[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: collaborator %s", ErrNotFound, userID)
}

// UpdateRole changes the role of an existing collaborator.
func (c *Contract) UpdateRole(userID string, role Role) error {
	col, ok := c.FindCollaborator(userID)
	if !ok {
		return fmt.Errorf("%w: collaborator %s", ErrNotFound, userID)
	}
	col.Role = role
	return nil
}

// AddComment appends a comment to a clause and returns the comment id.
func (c *Contract) AddComment(clauseID string, authorUserID, authorEmail, authorName, text string, now time.Time) (string, error) {
	clause, ok := c.FindClause(clauseID)
	if !ok {
		return "", fmt.Errorf("%w: clause %s", ErrNotFound, clauseID)
	}
	comment := Comment{
		ID:           NewCommentID(),
		AuthorUserID: authorUserID,
		AuthorEmail:  authorEmail,
		AuthorName:   authorName,
		Text:         text,
		Date:         now,
	}
	clause.Comments = append(clause.Comments, comment)
	return comment.ID, nil
}

// FindComment locates a comment within a clause.
func (c *Contract) FindComment(clauseID, commentID string) (*Comment, bool) {
	clause, ok := c.FindClause(clauseID)
	if !ok {
		return nil, false
	}
	for i := range clause.Comments {
		if clause.Comments[i].ID == commentID {
			return &clause.Comments[i], true
		}
	}
	return nil, false
}

// DeleteComment removes a comment from a clause.
func (c *Contract) DeleteComment(clauseID, commentID string) error {
	clause, ok := c.FindClause(clauseID)
	if !ok {
		return fmt.Errorf("%w: clause %s", ErrNotFound, clauseID)
	}
	for i := range clause.Comments {
		if clause.Comments[i].ID == commentID {
			clause.Comments = append(clause.Comments[:i], clause.Comments[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: comment %s", ErrNotFound, commentID)
}

// Approve transitions Draft -> Approved. Approving an already approved
// contract is a no-op; there is no reverse transition.
func (c *Contract) Approve() {
	if c.Status == StatusDraft {
		c.Status = StatusApproved
	}
}
