package gateway

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/mixelka/smsfirewall/internal/parser"
)

// ClientConfig configuration for the gateway IMAP client
type ClientConfig struct {
	Email       string
	Password    string
	Server      string // host:port
	Mailbox     string
	DialTimeout time.Duration
}

// Client fetches forwarded SMS from the gateway mailbox. Each Fetch uses
// its own connection.
type Client struct {
	config ClientConfig
	html   *parser.HTMLParser
	logger *slog.Logger
}

// NewClient creates a new gateway client
func NewClient(cfg ClientConfig, html *parser.HTMLParser, logger *slog.Logger) *Client {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	return &Client{
		config: cfg,
		html:   html,
		logger: logger.With("component", "gateway_client", "email", cfg.Email),
	}
}

// Mailbox returns a key identifying the polled mailbox
func (c *Client) Mailbox() string {
	return c.config.Email + "/" + c.config.Mailbox
}

func (c *Client) connect(ctx context.Context) (*client.Client, error) {
	dialer := &net.Dialer{Timeout: c.config.DialTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", c.config.Server, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create IMAP client: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		imapClient.Timeout = time.Until(deadline)
	}

	if err := imapClient.Login(c.config.Email, c.config.Password); err != nil {
		imapClient.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	return imapClient, nil
}

// Fetch returns messages with UID greater than sinceUID, oldest first
func (c *Client) Fetch(ctx context.Context, sinceUID uint32) ([]Fetched, error) {
	imapClient, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer imapClient.Logout()

	mbox, err := imapClient.Select(c.config.Mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", c.config.Mailbox, err)
	}
	if mbox.Messages == 0 || (mbox.UidNext > 0 && mbox.UidNext <= sinceUID+1) {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(sinceUID+1, 0) // 0 means *

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 32)
	done := make(chan error, 1)
	go func() {
		done <- imapClient.UidFetch(seqSet, items, messages)
	}()

	var fetched []Fetched
	for msg := range messages {
		// "n:*" always includes the last message, even below n
		if msg.Uid <= sinceUID {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			c.logger.Warn("message without body", "uid", msg.Uid)
			fetched = append(fetched, Fetched{UID: msg.Uid, Err: errNoBody})
			continue
		}
		event, err := ParseMessage(body, c.html)
		if err != nil {
			c.logger.Warn("failed to parse message", "uid", msg.Uid, "error", err)
		}
		fetched = append(fetched, Fetched{UID: msg.Uid, Event: event, Err: err})
	}

	if err := <-done; err != nil {
		return fetched, fmt.Errorf("failed to fetch: %w", err)
	}

	sort.Slice(fetched, func(i, j int) bool { return fetched[i].UID < fetched[j].UID })
	return fetched, nil
}

// Ping checks that the gateway mailbox is reachable
func (c *Client) Ping(ctx context.Context) error {
	imapClient, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer imapClient.Logout()

	if _, err := imapClient.Select(c.config.Mailbox, true); err != nil {
		return fmt.Errorf("failed to select %s: %w", c.config.Mailbox, err)
	}
	return nil
}
