package domain

import "github.com/google/uuid"

// Opaque identifiers carry a short type prefix so logs and index rows stay
// readable. The UUID part guarantees uniqueness; nothing orders on them.

func NewContractID() string { return "ctr_" + uuid.NewString() }
func NewClauseID() string   { return "cls_" + uuid.NewString() }
func NewCommentID() string  { return "cmt_" + uuid.NewString() }

func NewInvitationID() string { return "inv_" + uuid.NewString() }
func NewPermissionID() string { return "perm_" + uuid.NewString() }
