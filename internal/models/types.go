package models

import (
	"time"
)

// Turn is a single role-tagged message in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// User is a known bot user. Created on first interaction, never deleted.
type User struct {
	ID             int64
	Username       string
	FirstName      string
	JoinedAt       time.Time
	QuestionsCount int
	Blocked        bool
}

// Question is a persisted question/answer pair. Rating is attached later
// through the inline keyboard and overwrites any previous value.
type Question struct {
	ID        int64
	UserID    int64
	Question  string
	Answer    string
	Rating    *int
	CreatedAt time.Time
}

// UserStats is what /stats shows for one user.
type UserStats struct {
	UserID         int64
	QuestionsCount int
	JoinedAt       time.Time
}

// TopUser is one row of the global leaderboard.
type TopUser struct {
	UserID         int64
	FirstName      string
	QuestionsCount int
}

// GlobalStats is what /admin shows.
type GlobalStats struct {
	TotalUsers     int
	TotalQuestions int
	AvgRating      float64
	TopUsers       []TopUser
}

// BroadcastResult holds the tallies of one fan-out run.
type BroadcastResult struct {
	Sent   int
	Failed int
}
