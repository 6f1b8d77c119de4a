package domain

// Message is a single persisted question/answer turn.
type Message struct {
	PK             string
	SK             string
	ConversationID string
	Question       string
	Answer         string
	Steps          int
	Charted        bool
	Status         string
	TTL            int64
}

// ConversationMeta stores aggregate conversation state.
type ConversationMeta struct {
	PK             string
	SK             string
	ConversationID string
	LastActivity   string
	Turns          int
	TTL            int64
}

// Turn is a completed question/answer exchange ready to be stored.
type Turn struct {
	ConversationID string
	Question       string
	Answer         string
	Steps          int
	Charted        bool
	// Turns is the conversation's turn count including this one.
	Turns int
}
