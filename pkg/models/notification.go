package models

// NotificationAction is a button attached to a notification
type NotificationAction struct {
	Label    string
	Callback CallbackData
}

// Notification is what the pipeline asks the notification system to show
type Notification struct {
	Title  string
	Body   string
	Sender string
	// MessageID is the active store id of a delivered message, 0 for spam
	MessageID int64
	Codes     []DetectedCode
	Actions   []NotificationAction
}

// DetectedCode represents a detected verification code
type DetectedCode struct {
	Type  string `json:"type"`  // "otp", "verification", "pin", "code"
	Value string `json:"value"` // The code itself
}
