package model

import "time"

// InteractionType is the kind of engagement a user had with content.
type InteractionType string

const (
	InteractionView    InteractionType = "view"
	InteractionLike    InteractionType = "like"
	InteractionShare   InteractionType = "share"
	InteractionSave    InteractionType = "save"
	InteractionComment InteractionType = "comment"
)

// ParseInteractionType validates s as an InteractionType.
func ParseInteractionType(s string) (InteractionType, bool) {
	switch t := InteractionType(s); t {
	case InteractionView, InteractionLike, InteractionShare,
		InteractionSave, InteractionComment:
		return t, true
	}
	return "", false
}

// InteractionRecord is a single recorded interaction.
type InteractionRecord struct {
	ID         string          `json:"id"`
	ContentID  string          `json:"content_id"`
	Type       InteractionType `json:"type"`
	Timestamp  time.Time       `json:"timestamp"`
	DurationMs int64           `json:"duration_ms,omitempty"`
}

// Preferences holds everything learned about a user.
type Preferences struct {
	Theme string `json:"theme,omitempty"`

	// Interests are topic labels, usually predicted from viewed content.
	Interests []string `json:"interests"`

	// ViewedContent lists distinct content IDs in first-view order.
	ViewedContent []string `json:"viewed_content"`

	// Interactions holds the most recent interaction records, oldest first.
	Interactions []InteractionRecord `json:"interactions,omitempty"`

	// TotalInteractions counts every interaction ever recorded, including
	// those trimmed from Interactions.
	TotalInteractions int `json:"total_interactions"`

	LastExplorationPath []string `json:"last_exploration_path,omitempty"`
}

// User is a visitor along with the source they arrived from.
type User struct {
	ID          string      `json:"id"`
	Source      Source      `json:"source"`
	Preferences Preferences `json:"preferences"`
}
