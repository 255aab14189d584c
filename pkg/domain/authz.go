package domain

import "fmt"

// Authorize is the single policy decision for every mutation: may userID
// exercise cap on this contract? The creator passes every check, including
// approval — the bypass is deliberately uniform so no operation needs a
// special case. Non-creators must hold a role that grants the capability.
//
// Comment deletion has an extra authorship rule and uses AuthorizeCommentDelete.
func Authorize(c *Contract, userID string, cap Capability) error {
	if c.IsCreator(userID) {
		return nil
	}
	col, ok := c.FindCollaborator(userID)
	if !ok {
		return fmt.Errorf("%w: user %s has no access to contract %s", ErrForbidden, userID, c.ID)
	}
	if !col.Role.grants(cap) {
		return fmt.Errorf("%w: role %s does not grant %s", ErrForbidden, col.Role, cap)
	}
	return nil
}

// AuthorizeCommentDelete allows only the comment's author or the contract
// creator to delete a comment.
func AuthorizeCommentDelete(c *Contract, comment *Comment, userID string) error {
	if c.IsCreator(userID) || comment.AuthorUserID == userID {
		return nil
	}
	return fmt.Errorf("%w: only the author or the creator may delete a comment", ErrForbidden)
}
