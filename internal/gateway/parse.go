// Package gateway turns SMS forwarded to an email mailbox into delivery events.
package gateway

import (
	"errors"
	"fmt"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/mixelka/smsfirewall/internal/parser"
	"github.com/mixelka/smsfirewall/pkg/models"
)

// SenderHeader carries the original SMS sender on most gateways
const SenderHeader = "X-Sms-From"

var (
	errNoBody = errors.New("message has no body")
	// ErrNoText is returned when an email has no usable text part
	ErrNoText = errors.New("message has no text part")
)

// Fetched is one gateway email and the event parsed from it
type Fetched struct {
	UID   uint32
	Event models.DeliveryEvent
	Err   error
}

// ParseMessage converts a gateway email into a delivery event. Every inline
// text/plain part is one fragment. HTML is only used when there is no plain text.
func ParseMessage(r io.Reader, html *parser.HTMLParser) (models.DeliveryEvent, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return models.DeliveryEvent{}, fmt.Errorf("failed to create mail reader: %w", err)
	}
	defer mr.Close()

	sender := senderFrom(mr.Header)
	var timestamp int64
	if date, err := mr.Header.Date(); err == nil && !date.IsZero() {
		timestamp = date.UnixMilli()
	}

	var plain []string
	var htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.DeliveryEvent{}, fmt.Errorf("failed to read part: %w", err)
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case ct == "" || strings.HasPrefix(ct, "text/plain"):
			plain = append(plain, trimLineEnd(string(body)))
		case strings.HasPrefix(ct, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	if len(plain) == 0 && htmlBody != "" && html != nil {
		text, err := html.Parse(htmlBody)
		if err != nil {
			return models.DeliveryEvent{}, err
		}
		plain = append(plain, text)
	}
	if len(plain) == 0 {
		return models.DeliveryEvent{}, ErrNoText
	}

	fragments := make([]models.Fragment, len(plain))
	for i, body := range plain {
		fragments[i] = models.Fragment{Sender: sender, Body: body, Timestamp: timestamp}
	}
	return models.NewDeliveryEvent(fragments...), nil
}

// trimLineEnd drops the single line terminator a mail body ends with.
// Further blank lines are message content and stay.
func trimLineEnd(s string) string {
	if t, ok := strings.CutSuffix(s, "\r\n"); ok {
		return t
	}
	return strings.TrimSuffix(s, "\n")
}

func senderFrom(h mail.Header) string {
	if v := strings.TrimSpace(h.Get(SenderHeader)); v != "" {
		return v
	}

	addrs, err := h.AddressList("From")
	if err != nil || len(addrs) == 0 {
		return ""
	}
	local, _, _ := strings.Cut(addrs[0].Address, "@")
	return local
}
