package domain

import "time"

// Comment is a free-text note left on a ticket.
type Comment struct {
	AuthorID   string    `json:"author_id"`
	AuthorRole Role      `json:"author_role"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
