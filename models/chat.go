package models

import "time"

// ChatRecord is one persisted question/answer interaction.
type ChatRecord struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CacheHit  bool      `json:"cache_hit"`
	Sources   []string  `json:"sources"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedbackRecord is a user rating of a past answer. Ratings of 4 or higher
// (or Helpful) promote the answer into preference memory.
type FeedbackRecord struct {
	TenantID  string    `json:"tenant_id"`
	ChatID    string    `json:"chat_id"`
	Rating    int       `json:"rating"`
	Helpful   bool      `json:"helpful"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
