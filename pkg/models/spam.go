package models

// BlockedWord is a blocklist term
type BlockedWord struct {
	ID   int64  `db:"id"`
	Word string `db:"word"`
}

// SpamMessage is a message diverted away from the active store at intake
type SpamMessage struct {
	ID     int64  `db:"id"`
	Sender string `db:"sender"`
	Body   string `db:"body"`
	Date   int64  `db:"date"` // epoch millis
}

// TrustedNumber is a sender promoted out of the spam box
type TrustedNumber struct {
	PhoneNumber string `db:"phone_number"`
}

// Verdict is the classification result for a message body
type Verdict int

const (
	VerdictClean Verdict = iota
	VerdictSpam
)

func (v Verdict) String() string {
	if v == VerdictSpam {
		return "spam"
	}
	return "clean"
}
