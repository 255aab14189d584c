// Package history stores assist conversation turns scoped per contract,
// clause and caller session. Conversations are throwaway state: every
// implementation carries an explicit expiry policy so an abandoned session
// cannot accumulate unbounded history.
package history

// Key identifies one conversation.
type Key struct {
	ContractID string
	ClauseID   string
	SessionID  string
}

// Turn is a single exchanged message.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
