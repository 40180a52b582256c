package session

import "time"

// NoticeLevel grades a surfaced notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice is a dismissable, non-blocking message for the presentation
// layer: transient action failures, soft auto-advance errors and the
// like. Session-fatal failures never travel this channel; they fail the
// session start instead.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	Detail  string      `json:"detail,omitempty"`
	At      time.Time   `json:"at"`
}
