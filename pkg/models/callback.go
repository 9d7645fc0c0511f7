package models

// CallbackAction type of callback action
type CallbackAction string

const (
	CallbackTrust          CallbackAction = "tr"
	CallbackDeleteSpam     CallbackAction = "ds"
	CallbackRestore        CallbackAction = "rs"
	CallbackPurge          CallbackAction = "pg"
	CallbackPurgeAll       CallbackAction = "pa"
	CallbackPurgeAllCancel CallbackAction = "pc"
	CallbackCopyCode       CallbackAction = "cc"
	CallbackMarkRead       CallbackAction = "mr"
	CallbackDeleteMessage  CallbackAction = "dm"
)

// CallbackData structure for inline button callback
type CallbackData struct {
	Action    CallbackAction `json:"a"`
	ID        int64          `json:"i,omitempty"` // spam, message or thread id depending on action
	CodeIndex int            `json:"c,omitempty"`
}
