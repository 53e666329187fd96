package recall

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/gappsops/message-recall/internal/domain/recall"
	"github.com/sirupsen/logrus"
)

// AdminChecker answers whether a user is a domain super-admin.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userEmail string) (bool, error)
}

// AdminStatusCache remembers recent admin checks.
type AdminStatusCache interface {
	IsAdmin(ctx context.Context, userEmail string) (isAdmin, ok bool, err error)
	SetAdmin(ctx context.Context, userEmail string, isAdmin bool) error
}

type Authorizer interface {
	// Authorize returns nil only for a super-admin of appsDomain.
	Authorize(ctx context.Context, userEmail string) error
}

type authorizer struct {
	appsDomain string
	directory  AdminChecker
	cache      AdminStatusCache
	log        *logrus.Entry
}

// NewAuthorizer gates every UI page: the tool purges mail from other
// people's mailboxes, so nothing short of a super-admin of the configured
// domain may see it.
func NewAuthorizer(appsDomain string, directory AdminChecker, cache AdminStatusCache) Authorizer {
	return &authorizer{
		appsDomain: appsDomain,
		directory:  directory,
		cache:      cache,
		log:        logrus.WithField("component", "authorizer"),
	}
}

func (a *authorizer) Authorize(ctx context.Context, userEmail string) error {
	userDomain, err := domain.OwnerDomain(userEmail)
	if err != nil || !strings.EqualFold(userDomain, a.appsDomain) {
		return ErrNotAuthorized
	}

	if isAdmin, ok, cacheErr := a.cache.IsAdmin(ctx, userEmail); cacheErr == nil && ok {
		if !isAdmin {
			return ErrNotAuthorized
		}
		return nil
	} else if cacheErr != nil {
		// A cache outage must not lock admins out; fall through to
		// the directory.
		a.log.WithError(cacheErr).Warn("admin cache unavailable")
	}

	isAdmin, err := a.directory.IsAdmin(ctx, userEmail)
	if err != nil {
		return fmt.Errorf("check admin status for %s: %w", userEmail, err)
	}
	if cacheErr := a.cache.SetAdmin(ctx, userEmail, isAdmin); cacheErr != nil {
		a.log.WithError(cacheErr).Warn("failed to cache admin status")
	}
	if !isAdmin {
		return ErrNotAuthorized
	}
	return nil
}
