package intake

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mixelka/smsfirewall/internal/database"
	"github.com/mixelka/smsfirewall/internal/parser"
	"github.com/mixelka/smsfirewall/internal/platform"
	"github.com/mixelka/smsfirewall/internal/settings"
	"github.com/mixelka/smsfirewall/internal/worker"
	"github.com/mixelka/smsfirewall/pkg/models"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n models.Notification) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return "n1", nil
}

func (r *recordingNotifier) Dismiss(ctx context.Context, id string) error { return nil }

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type brokenBlocklist struct {
	*database.DB
}

func (brokenBlocklist) BlockedTerms(ctx context.Context) ([]string, error) {
	return nil, errors.New("disk I/O error")
}

type testEnv struct {
	db       *database.DB
	messages *platform.SQLStore
	notifier *recordingNotifier
	prefs    *settings.Store
	logger   *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.New(filepath.Join(dir, "app.db"))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	messages, err := platform.NewSQLStore(ctx, filepath.Join(dir, "platform.db"), logger)
	if err != nil {
		t.Fatalf("NewSQLStore: %v", err)
	}
	t.Cleanup(func() { messages.Close() })

	return &testEnv{
		db:       db,
		messages: messages,
		notifier: &recordingNotifier{},
		prefs:    settings.New(settings.Defaults{NotificationContentVisible: true}),
		logger:   logger,
	}
}

func (e *testEnv) pipeline(store Store, pool *worker.Pool, opts Options) *Pipeline {
	return New(store, e.messages, e.notifier, e.prefs, parser.NewCodeDetector(), pool, opts, e.logger)
}

func event(sender string, ts int64, parts ...string) models.DeliveryEvent {
	var fragments []models.Fragment
	for _, p := range parts {
		fragments = append(fragments, models.Fragment{Sender: sender, Body: p, Timestamp: ts})
	}
	return models.NewDeliveryEvent(fragments...)
}

func TestSpamMultipartIsMergedBeforeClassification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.pipeline(env.db, nil, Options{})

	// "casino" only appears once the fragments are joined
	out, err := p.Process(ctx, event("+905551234567", 1700000000000, "Hot cas", "ino night!"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Verdict != models.VerdictSpam || out.MatchedTerm != "casino" {
		t.Fatalf("expected spam on casino, got %+v", out)
	}

	spam, _ := env.db.ListSpamMessages(ctx)
	if len(spam) != 1 {
		t.Fatalf("expected 1 spam row, got %d", len(spam))
	}
	if spam[0].Body != "Hot casino night!" || spam[0].Sender != "+905551234567" || spam[0].Date != 1700000000000 {
		t.Fatalf("unexpected spam row %+v", spam[0])
	}

	active, _ := env.messages.List(ctx)
	if len(active) != 0 {
		t.Fatalf("spam must not reach the inbox, got %d messages", len(active))
	}
	if env.notifier.count() != 0 {
		t.Fatal("spam must not raise a notification by default")
	}
}

func TestCleanDeliveryGoesToInbox(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.pipeline(env.db, nil, Options{})

	out, err := p.Process(ctx, event("+15550001111", 1000, "Your code: 1234"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Verdict != models.VerdictClean || out.MessageID == 0 {
		t.Fatalf("expected clean with message id, got %+v", out)
	}

	msg, err := env.messages.FindByID(ctx, out.MessageID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if msg.Direction != models.DirectionInbound || msg.Read || msg.Body != "Your code: 1234" || msg.Date != 1000 {
		t.Fatalf("unexpected inbox row %+v", msg)
	}

	spam, _ := env.db.ListSpamMessages(ctx)
	if len(spam) != 0 {
		t.Fatalf("clean message must not reach the spam box, got %d", len(spam))
	}

	if env.notifier.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", env.notifier.count())
	}
	n := env.notifier.sent[0]
	if n.Title != "+15550001111" || n.Body != "Your code: 1234" {
		t.Fatalf("unexpected notification %+v", n)
	}
	if len(n.Codes) != 1 || n.Codes[0].Value != "1234" {
		t.Fatalf("expected detected code 1234, got %+v", n.Codes)
	}
}

func TestHiddenNotificationContent(t *testing.T) {
	env := newTestEnv(t)
	env.prefs.SetNotificationContentVisible(false)
	p := env.pipeline(env.db, nil, Options{})

	if _, err := p.Process(context.Background(), event("+1", 1, "secret 4321")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	n := env.notifier.sent[0]
	if n.Title != "New message" || n.Body != "New message" || len(n.Codes) != 0 {
		t.Fatalf("expected hidden content, got %+v", n)
	}
}

func TestExactlyOneStorePerEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.pipeline(env.db, nil, Options{})

	bodies := []string{"hello", "BONUS inside", "meet at 5", "metin2 server", "bet", "lunch?"}
	for i, body := range bodies {
		if _, err := p.Process(ctx, event("+1", int64(i+1), body)); err != nil {
			t.Fatalf("Process(%q): %v", body, err)
		}
	}

	spam, _ := env.db.ListSpamMessages(ctx)
	active, _ := env.messages.List(ctx)
	if len(spam)+len(active) != len(bodies) {
		t.Fatalf("expected %d rows across stores, got spam=%d active=%d", len(bodies), len(spam), len(active))
	}
	seen := make(map[string]int)
	for _, s := range spam {
		seen[s.Body]++
	}
	for _, m := range active {
		seen[m.Body]++
	}
	for _, body := range bodies {
		if seen[body] != 1 {
			t.Fatalf("body %q stored %d times", body, seen[body])
		}
	}
}

func TestBlocklistFailureFailsOpen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.pipeline(brokenBlocklist{env.db}, nil, Options{})

	out, err := p.Process(ctx, event("+1", 1, "casino bonus"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Verdict != models.VerdictClean || out.MessageID == 0 {
		t.Fatalf("expected fail-open clean delivery, got %+v", out)
	}
}

func TestTrustedSenderBypassesBlocklist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.pipeline(env.db, nil, Options{TrustedBypass: true})

	if err := env.db.UpsertTrustedNumber(ctx, "+90555"); err != nil {
		t.Fatalf("UpsertTrustedNumber: %v", err)
	}
	out, err := p.Process(ctx, event("+90555", 1, "bonus points for you"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Verdict != models.VerdictClean || !out.Trusted {
		t.Fatalf("expected trusted clean, got %+v", out)
	}
}

func TestTrustedSenderStillClassifiedByDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.pipeline(env.db, nil, Options{})

	if err := env.db.UpsertTrustedNumber(ctx, "+90555"); err != nil {
		t.Fatalf("UpsertTrustedNumber: %v", err)
	}
	out, err := p.Process(ctx, event("+90555", 1, "bonus points for you"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Verdict != models.VerdictSpam || out.Trusted {
		t.Fatalf("expected spam verdict for trusted sender, got %+v", out)
	}

	active, _ := env.messages.List(ctx)
	if len(active) != 0 {
		t.Fatalf("expected nothing in inbox, got %d", len(active))
	}
}

func TestEmptySenderAndEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.pipeline(env.db, nil, Options{})

	out, err := p.Process(ctx, event("", 1, "hi"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Sender != UnknownSender {
		t.Fatalf("expected %q, got %q", UnknownSender, out.Sender)
	}

	if _, err := p.Process(ctx, models.DeliveryEvent{}); !errors.Is(err, ErrEmptyEvent) {
		t.Fatalf("expected ErrEmptyEvent, got %v", err)
	}
}

func TestNotifySpamAttachesTrustAction(t *testing.T) {
	env := newTestEnv(t)
	p := env.pipeline(env.db, nil, Options{NotifySpam: true})

	out, err := p.Process(context.Background(), event("+7", 1, "kazan now"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if env.notifier.count() != 1 {
		t.Fatalf("expected spam notification, got %d", env.notifier.count())
	}
	actions := env.notifier.sent[0].Actions
	if len(actions) != 1 || actions[0].Callback.Action != models.CallbackTrust || actions[0].Callback.ID != out.SpamID {
		t.Fatalf("unexpected actions %+v", actions)
	}
}

func TestHandleRunsOnIntakeQueue(t *testing.T) {
	env := newTestEnv(t)
	lifetime := worker.NewLifetime()
	pool := worker.NewPool(lifetime, 4, env.logger)
	done := make(chan struct{})
	go func() {
		pool.Run(context.Background())
		close(done)
	}()
	defer func() {
		pool.Close()
		<-done
	}()

	p := env.pipeline(env.db, pool, Options{})
	if err := p.Handle(event("+1", 1, "queued hello")); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := lifetime.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	active, _ := env.messages.List(context.Background())
	if len(active) != 1 || active[0].Body != "queued hello" {
		t.Fatalf("expected queued delivery in inbox, got %+v", active)
	}
}

func TestHandleReportsClosedQueue(t *testing.T) {
	env := newTestEnv(t)
	pool := worker.NewPool(worker.NewLifetime(), 4, env.logger)
	pool.Close()

	p := env.pipeline(env.db, pool, Options{})
	if err := p.Handle(event("+1", 1, "late hello")); !errors.Is(err, worker.ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}

	active, _ := env.messages.List(context.Background())
	if len(active) != 0 {
		t.Fatalf("expected nothing delivered, got %d", len(active))
	}
}

type fixedTerms struct {
	*database.DB
	terms []string
}

func (f fixedTerms) BlockedTerms(ctx context.Context) ([]string, error) {
	return f.terms, nil
}

func TestBettingAdIsCapturedAsSpam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.pipeline(fixedTerms{DB: env.db, terms: []string{"bahis", "bet"}}, nil, Options{})

	out, err := p.Process(ctx, event("+905550001122", 1700000000000, "Kazandınız! bahis sitesi"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Verdict != models.VerdictSpam {
		t.Fatalf("expected spam, got %+v", out)
	}

	active, _ := env.messages.List(ctx)
	if len(active) != 0 {
		t.Fatalf("expected no active store write, got %d rows", len(active))
	}
	spam, _ := env.db.ListSpamMessages(ctx)
	if len(spam) != 1 || spam[0].Body != "Kazandınız! bahis sitesi" {
		t.Fatalf("unexpected spam rows %+v", spam)
	}
	if env.notifier.count() != 0 {
		t.Fatalf("expected no notification, got %d", env.notifier.count())
	}
}

func TestShippingNoticeIsDelivered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.pipeline(fixedTerms{DB: env.db, terms: []string{"bahis"}}, nil, Options{})

	out, err := p.Process(ctx, event("KARGO", 1700000000000, "Kargonuz yola çıktı"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Verdict != models.VerdictClean {
		t.Fatalf("expected clean, got %+v", out)
	}

	active, _ := env.messages.List(ctx)
	if len(active) != 1 || !active[0].Inbound() || active[0].Body != "Kargonuz yola çıktı" {
		t.Fatalf("unexpected active rows %+v", active)
	}
	spam, _ := env.db.ListSpamMessages(ctx)
	if len(spam) != 0 {
		t.Fatalf("expected empty spam box, got %d", len(spam))
	}
	if env.notifier.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", env.notifier.count())
	}
}
