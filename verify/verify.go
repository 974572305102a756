// ABOUTME: Batch verification pass over every contact
// ABOUTME: Checks email domains for MX records and stamps freshness before rewriting the set
package verify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/harperreed/cardsync/artifact"
	"github.com/harperreed/cardsync/db"
	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel DNS lookups.
const DefaultConcurrency = 8

// Resolver looks up mail exchangers. *net.Resolver satisfies it.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

type Options struct {
	DryRun bool
}

type Report struct {
	Checked   int
	Valid     int
	Invalid   int
	NoEmail   int
	Freshened int
	DryRun    bool
}

// Verifier runs the pass. Docs and Tracker are optional.
type Verifier struct {
	Store       *store.Store
	Docs        *artifact.Syncer
	Resolver    Resolver
	Tracker     *db.Tracker
	Concurrency int
	Logger      *zap.Logger
	Now         func() time.Time
}

func New(st *store.Store, docs *artifact.Syncer, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		Store:       st,
		Docs:        docs,
		Resolver:    net.DefaultResolver,
		Concurrency: DefaultConcurrency,
		Logger:      logger.Named("verify"),
		Now:         time.Now,
	}
}

// Run checks every contact and rewrites the set in one batch.
func (v *Verifier) Run(ctx context.Context, opts Options) (Report, error) {
	var report Report
	err := v.Tracker.Run(ctx, db.JobVerify, func() (string, error) {
		var err error
		report, err = v.run(ctx, opts)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("checked %d, valid %d, invalid %d, no email %d",
			report.Checked, report.Valid, report.Invalid, report.NoEmail), nil
	})
	return report, err
}

func (v *Verifier) run(ctx context.Context, opts Options) (Report, error) {
	v.Store.Invalidate()
	snapshot, err := v.Store.List(ctx)
	if err != nil {
		return Report{}, err
	}
	report := Report{Checked: len(snapshot), DryRun: opts.DryRun}
	if len(snapshot) == 0 {
		return report, nil
	}

	domains, err := v.checkDomains(ctx, snapshot)
	if err != nil {
		return report, err
	}

	today := v.Now().UTC().Format("2006-01-02")
	updated := make([]models.Contact, 0, len(snapshot))
	for _, c := range snapshot {
		c = c.Clone()
		c.EmailValid = emailResult(c.Email, domains)
		switch c.EmailValid {
		case models.EmailValid:
			report.Valid++
		case models.EmailInvalid:
			report.Invalid++
		default:
			report.NoEmail++
		}
		c.LastVerifiedAt = today
		if c.VerificationStatus == "" || c.VerificationStatus == models.VerificationUnknown {
			c.VerificationStatus = models.VerificationFresh
			report.Freshened++
		}
		c.Revision++
		updated = append(updated, c)
	}

	if opts.DryRun {
		return report, nil
	}
	if err := v.Store.ReplaceAll(ctx, updated, snapshot); err != nil {
		return report, err
	}
	if v.Docs != nil {
		for i, c := range updated {
			v.Docs.Written(ctx, snapshot[i].Name, c)
		}
	}
	v.Logger.Info("verification written", zap.Int("checked", report.Checked), zap.Int("invalid", report.Invalid))
	return report, nil
}

// checkDomains resolves each distinct email domain once.
func (v *Verifier) checkDomains(ctx context.Context, contacts []models.Contact) (map[string]bool, error) {
	seen := map[string]bool{}
	domainList := []string{}
	for _, c := range contacts {
		if d := domainOf(c.Email); d != "" && !seen[d] {
			seen[d] = true
			domainList = append(domainList, d)
		}
	}

	limit := v.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	var mu sync.Mutex
	results := make(map[string]bool, len(domainList))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, d := range domainList {
		g.Go(func() error {
			ok, err := v.hasMX(gctx, d)
			if err != nil {
				return err
			}
			mu.Lock()
			results[d] = ok
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// hasMX reports whether domain has mail exchangers. Lookup failures count as
// invalid; only a cancelled context is an error.
func (v *Verifier) hasMX(ctx context.Context, domain string) (bool, error) {
	records, err := v.Resolver.LookupMX(ctx, domain)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsTimeout {
			v.Logger.Warn("mx lookup timed out", zap.String("domain", domain))
		}
		return false, nil
	}
	return len(records) > 0, nil
}

func emailResult(email string, domains map[string]bool) models.EmailValidity {
	d := domainOf(email)
	if d == "" {
		return models.EmailNone
	}
	if domains[d] {
		return models.EmailValid
	}
	return models.EmailInvalid
}

func domainOf(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
