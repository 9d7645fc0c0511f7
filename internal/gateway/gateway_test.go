package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mixelka/smsfirewall/internal/database"
	"github.com/mixelka/smsfirewall/internal/parser"
	"github.com/mixelka/smsfirewall/pkg/models"
)

const multipartEmail = "From: 905551234567@sms.example.net\r\n" +
	"To: me@example.com\r\n" +
	"Date: Tue, 14 Nov 2023 22:13:20 +0000\r\n" +
	"Subject: SMS\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Hot cas\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"ino night!\r\n" +
	"--XYZ--\r\n"

const htmlEmail = "From: Gateway <noreply@sms.example.net>\r\n" +
	"X-Sms-From: +905559876543\r\n" +
	"Date: Tue, 14 Nov 2023 22:13:20 +0000\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><div class=\"sms\">Kargonuz yola çıktı</div></body></html>\r\n"

func TestParseMultipart(t *testing.T) {
	event, err := ParseMessage(strings.NewReader(multipartEmail), parser.NewHTMLParser(""))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if len(event.Fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(event.Fragments))
	}

	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC).UnixMilli()
	for _, f := range event.Fragments {
		if f.Sender != "905551234567" || f.Timestamp != want {
			t.Fatalf("unexpected fragment %+v", f)
		}
	}
	if event.Fragments[0].Body+event.Fragments[1].Body != "Hot casino night!" {
		t.Fatalf("unexpected bodies %q %q", event.Fragments[0].Body, event.Fragments[1].Body)
	}
}

func TestParseKeepsLineBreaksBetweenParts(t *testing.T) {
	email := "From: 905551234567@sms.example.net\r\n" +
		"Content-Type: multipart/mixed; boundary=XYZ\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"bonus\r\n\r\n\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"points\r\n" +
		"--XYZ--\r\n"

	event, err := ParseMessage(strings.NewReader(email), nil)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if len(event.Fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(event.Fragments))
	}
	if event.Fragments[0].Body != "bonus\r\n" || event.Fragments[1].Body != "points" {
		t.Fatalf("unexpected bodies %q %q", event.Fragments[0].Body, event.Fragments[1].Body)
	}
}

func TestTrimLineEnd(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello", "hello"},
		{"hello\r\n", "hello"},
		{"hello\n", "hello"},
		{"hello\r\n\r\n", "hello\r\n"},
		{"hello\n\n", "hello\n"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := trimLineEnd(tt.in); got != tt.want {
			t.Errorf("trimLineEnd(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseHTMLWithSenderHeader(t *testing.T) {
	event, err := ParseMessage(strings.NewReader(htmlEmail), parser.NewHTMLParser(".sms"))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if len(event.Fragments) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(event.Fragments))
	}
	f := event.Fragments[0]
	if f.Sender != "+905559876543" || f.Body != "Kargonuz yola çıktı" {
		t.Fatalf("unexpected fragment %+v", f)
	}
}

func TestResolve(t *testing.T) {
	r := &Resolver{
		Reachable: func(address string) bool { return address == "mail.corp.example:993" },
		LookupMX:  func(string) ([]*net.MX, error) { return nil, errors.New("no mx") },
	}

	tests := []struct {
		email string
		want  string
	}{
		{"me@gmail.com", "imap.gmail.com:993"},
		{"me@corp.example", "mail.corp.example:993"},
		{"me@unknown.example", "imap.unknown.example:993"},
	}
	for _, tt := range tests {
		got, err := r.Resolve(tt.email)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.email, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}

	if _, err := r.Resolve("not-an-email"); err == nil {
		t.Fatal("expected error for invalid email")
	}
}

type fakeSource struct {
	items []Fetched
	err   error
	since []uint32
}

func (f *fakeSource) Mailbox() string { return "sms@example.com/INBOX" }

func (f *fakeSource) Fetch(ctx context.Context, sinceUID uint32) ([]Fetched, error) {
	f.since = append(f.since, sinceUID)
	var out []Fetched
	for _, it := range f.items {
		if it.UID > sinceUID {
			out = append(out, it)
		}
	}
	return out, f.err
}

func TestPollAdvancesCursor(t *testing.T) {
	ctx := context.Background()
	db, err := database.New(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	source := &fakeSource{items: []Fetched{
		{UID: 3, Event: models.NewDeliveryEvent(models.Fragment{Sender: "+1", Body: "a"})},
		{UID: 4, Err: ErrNoText},
		{UID: 7, Event: models.NewDeliveryEvent(models.Fragment{Sender: "+2", Body: "b"})},
	}}

	var got []models.DeliveryEvent
	m := NewManager(source, db, func(e models.DeliveryEvent) error { got = append(got, e); return nil }, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := m.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if n != 2 || len(got) != 2 {
		t.Fatalf("expected 2 events handed off, got %d/%d", n, len(got))
	}

	uid, _ := db.GetGatewayCursor(ctx, source.Mailbox())
	if uid != 7 {
		t.Fatalf("expected cursor 7, got %d", uid)
	}

	n, err = m.Poll(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second Poll = %d, %v", n, err)
	}
	if source.since[1] != 7 {
		t.Fatalf("expected second fetch since 7, got %d", source.since[1])
	}
}

func TestPollKeepsProgressOnFetchError(t *testing.T) {
	ctx := context.Background()
	db, err := database.New(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	source := &fakeSource{
		items: []Fetched{{UID: 5, Event: models.NewDeliveryEvent(models.Fragment{Body: "x"})}},
		err:   errors.New("connection reset"),
	}
	m := NewManager(source, db, func(models.DeliveryEvent) error { return nil }, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := m.Poll(ctx)
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if n != 1 {
		t.Fatalf("expected 1 handed off before the error, got %d", n)
	}
	uid, _ := db.GetGatewayCursor(ctx, source.Mailbox())
	if uid != 5 {
		t.Fatalf("expected cursor 5, got %d", uid)
	}
}

func TestPollStopsWhenHandlerRejects(t *testing.T) {
	ctx := context.Background()
	db, err := database.New(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	source := &fakeSource{items: []Fetched{
		{UID: 3, Event: models.NewDeliveryEvent(models.Fragment{Sender: "+1", Body: "a"})},
		{UID: 4, Event: models.NewDeliveryEvent(models.Fragment{Sender: "+2", Body: "b"})},
		{UID: 5, Event: models.NewDeliveryEvent(models.Fragment{Sender: "+3", Body: "c"})},
	}}

	queueClosed := errors.New("worker pool closed")
	calls := 0
	m := NewManager(source, db, func(e models.DeliveryEvent) error {
		calls++
		if calls == 2 {
			return queueClosed
		}
		return nil
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := m.Poll(ctx)
	if !errors.Is(err, queueClosed) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if n != 1 || calls != 2 {
		t.Fatalf("expected 1 handed off after 2 calls, got %d/%d", n, calls)
	}

	uid, _ := db.GetGatewayCursor(ctx, source.Mailbox())
	if uid != 3 {
		t.Fatalf("expected cursor to stay at 3, got %d", uid)
	}

	n, err = m.Poll(ctx)
	if err != nil || n != 2 {
		t.Fatalf("retry Poll = %d, %v", n, err)
	}
	if source.since[1] != 3 {
		t.Fatalf("expected retry fetch since 3, got %d", source.since[1])
	}
	uid, _ = db.GetGatewayCursor(ctx, source.Mailbox())
	if uid != 5 {
		t.Fatalf("expected cursor 5, got %d", uid)
	}
}
