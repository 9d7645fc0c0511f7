package gateway

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Mail providers commonly used as SMS-to-email gateway targets
var knownIMAPServers = map[string]string{
	"gmail.com":      "imap.gmail.com:993",
	"googlemail.com": "imap.gmail.com:993",
	"outlook.com":    "outlook.office365.com:993",
	"hotmail.com":    "outlook.office365.com:993",
	"live.com":       "outlook.office365.com:993",
	"yahoo.com":      "imap.mail.yahoo.com:993",
	"yandex.com":     "imap.yandex.com:993",
	"yandex.com.tr":  "imap.yandex.com.tr:993",
	"icloud.com":     "imap.mail.me.com:993",
	"zoho.com":       "imap.zoho.com:993",
	"fastmail.com":   "imap.fastmail.com:993",
	"gmx.com":        "imap.gmx.com:993",
	"proton.me":      "127.0.0.1:1143", // ProtonMail Bridge
}

// Resolver finds the IMAP server for a gateway address
type Resolver struct {
	// Reachable reports whether host:port accepts TCP connections
	Reachable func(address string) bool
	LookupMX  func(domain string) ([]*net.MX, error)
}

// NewResolver creates a resolver that probes the network
func NewResolver() *Resolver {
	return &Resolver{
		Reachable: func(address string) bool {
			conn, err := net.DialTimeout("tcp", address, 3*time.Second)
			if err != nil {
				return false
			}
			conn.Close()
			return true
		},
		LookupMX: net.LookupMX,
	}
}

// Resolve determines the IMAP server for an email address
func (r *Resolver) Resolve(email string) (string, error) {
	domain := domainOf(email)
	if domain == "" {
		return "", fmt.Errorf("invalid email format: %q", email)
	}

	if server, ok := knownIMAPServers[domain]; ok {
		return server, nil
	}

	for _, host := range []string{"imap." + domain, "mail." + domain, domain} {
		if r.Reachable(host + ":993") {
			return host + ":993", nil
		}
	}

	if server, ok := r.viaMX(domain); ok {
		return server, nil
	}

	return "imap." + domain + ":993", nil
}

// viaMX derives imap.<base> or mail.<base> from the primary MX host
func (r *Resolver) viaMX(domain string) (string, bool) {
	records, err := r.LookupMX(domain)
	if err != nil || len(records) == 0 {
		return "", false
	}

	mxHost := strings.TrimSuffix(records[0].Host, ".")
	_, base, ok := strings.Cut(mxHost, ".")
	if !ok {
		return "", false
	}
	for _, host := range []string{"imap." + base, "mail." + base} {
		if r.Reachable(host + ":993") {
			return host + ":993", true
		}
	}
	return "", false
}

func domainOf(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return strings.ToLower(parts[1])
}
