package domain

import "time"

// Role identifies who produced a message in the run log.
type Role string

const (
	RoleAI     Role = "ai"
	RoleHuman  Role = "human"
	RoleSystem Role = "system"
)

// Message is one entry of the append-only run conversation log.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// AIMessage creates a message attributed to the team.
func AIMessage(content string) Message {
	return Message{Role: RoleAI, Content: content, At: time.Now().UTC()}
}

// HumanMessage creates a message attributed to the human reviewer.
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content, At: time.Now().UTC()}
}
