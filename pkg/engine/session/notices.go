package session

import (
	"time"

	"tourist-overwatch/pkg/shared"
)

// Notice is a transient message for the operator: confirmations of
// accepted actions and reports of refused ones.
type Notice struct {
	ID      uint64    `json:"id"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// noticeBoard is only touched from the session loop.
type noticeBoard struct {
	capacity int
	seq      uint64
	items    []Notice
}

func newNoticeBoard(capacity int) *noticeBoard {
	if capacity <= 0 {
		capacity = 32
	}
	return &noticeBoard{capacity: capacity}
}

func (b *noticeBoard) post(level, message string, at time.Time) Notice {
	b.seq++
	n := Notice{ID: b.seq, Level: level, Message: message, At: at}
	b.items = append(b.items, n)
	if over := len(b.items) - b.capacity; over > 0 {
		b.items = append([]Notice(nil), b.items[over:]...)
	}
	return n
}

func (b *noticeBoard) drain() []Notice {
	out := b.items
	b.items = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}

func (b *noticeBoard) success(message string, at time.Time) Notice {
	return b.post(shared.NoticeSuccess, message, at)
}

func (b *noticeBoard) warning(message string, at time.Time) Notice {
	return b.post(shared.NoticeWarning, message, at)
}
