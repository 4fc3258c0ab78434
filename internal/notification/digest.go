package notification

import (
	"context"
	"time"

	"crm_renewal_backend/internal/email"
	"crm_renewal_backend/internal/notification/inapp"
	"crm_renewal_backend/internal/notification/snooze"
	"crm_renewal_backend/platform/apperr"
	"crm_renewal_backend/platform/logger"
)

const opDigest = "notification.digest.run"

// AccountNamer resolves display names for the accounts in a digest.
type AccountNamer interface {
	AccountNames(ctx context.Context, ids []string) (map[string]string, error)
}

// Digest emails every active user a summary of at-risk renewals once a day.
// Unlike the feed, snoozes are applied at build time: an emailed digest
// cannot be filtered later, so suppression has to happen before delivery.
type Digest struct {
	cache   CacheReader
	users   userLister
	snoozes inapp.SnoozeReader
	names   AccountNamer
	sender  email.Sender
	clock   func() time.Time
	log     *logger.Logger
}

func NewDigest(users userLister, snoozes inapp.SnoozeReader, sender email.Sender, log *logger.Logger) *Digest {
	return &Digest{
		users:   users,
		snoozes: snoozes,
		sender:  sender,
		clock:   time.Now,
		log:     log,
	}
}

// SetCacheReader wires the at-risk cache. Set by the composition root.
func (d *Digest) SetCacheReader(cache CacheReader) { d.cache = cache }

// SetAccountNamer wires account display name resolution.
func (d *Digest) SetAccountNamer(names AccountNamer) { d.names = names }

// SetClock overrides the evaluation clock. Used by tests.
func (d *Digest) SetClock(clock func() time.Time) {
	if clock != nil {
		d.clock = clock
	}
}

// Run builds and sends the digest. Returns the number of emails sent. A
// failing recipient is logged and skipped.
func (d *Digest) Run(ctx context.Context) (int, error) {
	if d == nil || d.cache == nil || d.users == nil || d.sender == nil {
		return 0, apperr.Internal("digest not configured").WithOp(opDigest)
	}

	records, err := d.cache.ReadCache(ctx)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	users, err := d.users.ListActiveUsers(ctx)
	if err != nil {
		return 0, err
	}

	now := d.clock()
	var active []snooze.Snooze
	if d.snoozes != nil {
		if active, err = d.snoozes.ListActive(ctx); err != nil {
			if d.log != nil {
				d.log.Warn("snooze lookup failed, digest unfiltered", "error", err)
			}
			active = nil
		}
	}

	items := make([]email.DigestItem, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		accountID := rec.AccountID.String()
		if snooze.AnyActive(active, TypeRenewalReminder, accountID, now) {
			continue
		}
		items = append(items, email.DigestItem{
			AccountID:        accountID,
			EstimateNumber:   rec.ExpiringEstimateNumber,
			RenewalDate:      rec.RenewalDate,
			DaysUntilRenewal: rec.DaysUntilRenewal,
			HasDuplicates:    rec.HasDuplicates,
		})
		ids = append(ids, accountID)
	}
	if len(items) == 0 {
		return 0, nil
	}

	if d.names != nil {
		names, nameErr := d.names.AccountNames(ctx, ids)
		if nameErr != nil {
			if d.log != nil {
				d.log.Warn("account name lookup failed, digest uses ids", "error", nameErr)
			}
		} else {
			for i := range items {
				items[i].AccountName = names[items[i].AccountID]
			}
		}
	}

	sent := 0
	for _, u := range users {
		if u.Email == "" {
			continue
		}
		if sendErr := d.sender.SendRenewalDigest(ctx, u.Email, items); sendErr != nil {
			if d.log != nil {
				d.log.Warn("renewal digest send failed", "to", u.Email, "error", sendErr)
			}
			continue
		}
		sent++
	}

	if d.log != nil {
		d.log.Info("renewal_digest", "recipients", sent, "items", len(items))
	}

	return sent, nil
}
