package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxChatMessageLength = 4000
	maxChatSenderLength  = 255
)

var (
	ErrEmptyChatMessage   = errors.New("chat message cannot be empty")
	ErrChatMessageTooLong = errors.New("chat message is too long")
	ErrChatSenderTooLong  = errors.New("chat sender is too long")
)

// ChatMessage is the payload of a chat-message envelope. SenderID is filled
// from the envelope on receipt and never trusted from the payload.
type ChatMessage struct {
	ID         uuid.UUID `json:"id"`
	SenderID   string    `json:"-"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewChatMessage(senderName, content string) ChatMessage {
	return ChatMessage{
		ID:         uuid.New(),
		SenderName: strings.TrimSpace(senderName),
		Content:    strings.TrimSpace(content),
		Timestamp:  time.Now().UTC(),
	}
}

func (m *ChatMessage) Validate() error {
	m.Content = strings.TrimSpace(m.Content)
	if m.Content == "" {
		return ErrEmptyChatMessage
	}
	if utf8.RuneCountInString(m.Content) > maxChatMessageLength {
		return ErrChatMessageTooLong
	}
	m.SenderName = strings.TrimSpace(m.SenderName)
	if utf8.RuneCountInString(m.SenderName) > maxChatSenderLength {
		return ErrChatSenderTooLong
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return nil
}
