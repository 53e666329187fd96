// Package mailbox talks to Gmail over IMAP. The tool predates the Gmail
// API; recall works by searching the Message-ID header and expunging
// matches, which needs nothing beyond IMAP4rev1 plus Gmail's virtual
// folders.
package mailbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"
	"github.com/gappsops/message-recall/internal/domain/recall"
	"github.com/sirupsen/logrus"
)

const (
	imapDisabledAlert  = "IMAP access is disabled"
	invalidCredentials = "Invalid credentials"
	maxConnectAttempts = 2

	trashFolder = "[Gmail]/Trash"
)

// All messages live in All Mail except spam, so searching these two
// folders covers the whole mailbox.
var searchFolders = []string{"[Gmail]/All Mail", "[Gmail]/Spam"}

// TokenProvider supplies a per-user OAuth access token for IMAP
// authentication. forceRefresh bypasses any cached token.
type TokenProvider interface {
	AccessToken(ctx context.Context, userEmail string, forceRefresh bool) (string, error)
}

// Dialer opens Gmail mailboxes for individual domain users.
type Dialer struct {
	addr   string
	tokens TokenProvider
	log    *logrus.Entry
}

func NewDialer(addr string, tokens TokenProvider) *Dialer {
	return &Dialer{
		addr:   addr,
		tokens: tokens,
		log:    logrus.WithField("component", "mailbox"),
	}
}

// Dial connects and authenticates as userEmail. An invalid-credentials
// rejection gets one retry with a force-refreshed token; a domain with
// IMAP switched off surfaces as recall.ErrImapDisabled.
func (d *Dialer) Dial(ctx context.Context, userEmail string) (recall.Mailbox, error) {
	host := d.addr
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}

	var lastErr error
	forceRefresh := false
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		token, err := d.tokens.AccessToken(ctx, userEmail, forceRefresh)
		if err != nil {
			return nil, fmt.Errorf("get access token for %s: %w", userEmail, err)
		}

		client, err := imapclient.DialTLS(d.addr, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", d.addr, err)
		}

		err = client.Authenticate(sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
			Username: userEmail,
			Token:    token,
			Host:     host,
			Port:     993,
		}))
		if err == nil {
			d.log.WithField("user_email", userEmail).Debug("connected to imap")
			return &gmailMailbox{
				client:    client,
				userEmail: userEmail,
				found:     make(map[string][]imap.UID),
				log:       d.log.WithField("user_email", userEmail),
			}, nil
		}

		client.Close()
		lastErr = err
		if strings.Contains(err.Error(), imapDisabledAlert) {
			return nil, fmt.Errorf("%w: %s", recall.ErrImapDisabled, userEmail)
		}
		if strings.Contains(err.Error(), invalidCredentials) && attempt < maxConnectAttempts {
			d.log.WithField("user_email", userEmail).Info("imap rejected credentials, refreshing token")
			forceRefresh = true
			continue
		}
		break
	}
	return nil, fmt.Errorf("authenticate %s: %w", userEmail, lastErr)
}

type gmailMailbox struct {
	client    *imapclient.Client
	userEmail string
	// found caches the UIDs located per folder by the last
	// MessageExists call, consumed by PurgeMessage.
	found map[string][]imap.UID
	log   *logrus.Entry
}

func (m *gmailMailbox) MessageExists(ctx context.Context, messageID string) (bool, error) {
	exists := false
	for _, folder := range searchFolders {
		uids, err := m.searchFolder(folder, messageID)
		if err != nil {
			return false, err
		}
		m.found[folder] = uids
		if len(uids) > 0 {
			exists = true
			if len(uids) > 1 {
				m.log.WithField("folder", folder).Warnf("found %d matches", len(uids))
			}
		}
	}
	return exists, nil
}

func (m *gmailMailbox) PurgeMessage(ctx context.Context, messageID string) (bool, error) {
	// Move every located match into Trash first; messages are only
	// really deletable from there.
	for folder, uids := range m.found {
		if len(uids) == 0 {
			continue
		}
		if _, err := m.client.Select(folder, nil).Wait(); err != nil {
			return false, fmt.Errorf("select %s: %w", folder, err)
		}
		uidSet := imap.UIDSetNum(uids...)
		if _, err := m.client.Copy(uidSet, trashFolder).Wait(); err != nil {
			return false, fmt.Errorf("copy matches to trash from %s: %w", folder, err)
		}
		if err := m.client.Expunge().Close(); err != nil {
			return false, fmt.Errorf("expunge %s: %w", folder, err)
		}
	}

	trashUIDs, err := m.searchFolder(trashFolder, messageID)
	if err != nil {
		return false, err
	}
	if len(trashUIDs) == 0 {
		return false, nil
	}

	uidSet := imap.UIDSetNum(trashUIDs...)
	storeFlags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}
	if err := m.client.Store(uidSet, storeFlags, nil).Close(); err != nil {
		return false, fmt.Errorf("flag trash matches deleted: %w", err)
	}
	if err := m.client.Expunge().Close(); err != nil {
		return false, fmt.Errorf("expunge trash: %w", err)
	}

	m.log.Debugf("purged %d message(s)", len(trashUIDs))
	return true, nil
}

func (m *gmailMailbox) Close() error {
	if err := m.client.Logout().Wait(); err != nil {
		m.client.Close()
		return fmt.Errorf("imap logout: %w", err)
	}
	return m.client.Close()
}

func (m *gmailMailbox) searchFolder(folder, messageID string) ([]imap.UID, error) {
	if _, err := m.client.Select(folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("select %s: %w", folder, err)
	}

	criteria := &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{
			{Key: "Message-ID", Value: messageID},
		},
	}
	data, err := m.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", folder, err)
	}
	return data.AllUIDs(), nil
}
