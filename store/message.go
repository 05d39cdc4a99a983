package store

import (
	"strconv"
	"strings"
)

// Message is one stored group-chat utterance. ID doubles as the message's
// public deep link and is derived from (ChatID, MessageID), so re-ingesting
// the same logical message overwrites instead of duplicating.
type Message struct {
	ID        string `gorm:"primaryKey;size:128;column:id"`
	ChatID    int64  `gorm:"index:idx_chat_time,priority:1;not null;column:chat_id"`
	Timestamp int64  `gorm:"index:idx_chat_time,priority:2;not null;column:timestamp"`
	UserName  string `gorm:"size:255;column:user_name"`
	Content   string `gorm:"type:text;column:content"`
	MessageID int64  `gorm:"not null;column:message_id"`
	ChatTitle string `gorm:"size:255;column:chat_title"`
}

func (Message) TableName() string {
	return "messages"
}

// MessageLink builds the t.me deep link for a message. Supergroup chat ids
// carry a -100 prefix that the t.me/c form does not use.
func MessageLink(chatID, messageID int64) string {
	id := strconv.FormatInt(chatID, 10)
	if strings.HasPrefix(id, "-100") {
		id = id[len("-100"):]
	} else {
		id = strings.TrimPrefix(id, "-")
	}
	id = strings.TrimLeft(id, "0")
	return "https://t.me/c/" + id + "/" + strconv.FormatInt(messageID, 10)
}

// MessageKey is the stable identity of a message in the store.
func MessageKey(chatID, messageID int64) string {
	return MessageLink(chatID, messageID)
}
