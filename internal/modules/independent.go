package modules

import (
	"context"
	"fmt"
	"time"

	"github.com/akowasch/domainsearch/internal/module"
	"github.com/akowasch/domainsearch/internal/repository"
)

// The modules in this file have no declared dependencies; they form
// the roots of the DAG supplemented in SPEC_FULL.md §6.

type dnsResolver struct{ base }

func NewDNSResolver(store repository.Persistence, limits Limits) module.Module {
	return &dnsResolver{newBase("DNSResolver", 1, nil, store, limits)}
}

func (m *dnsResolver) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("resolved %s", domainName), nil
	})
}

type whois struct{ base }

func NewWhois(store repository.Persistence, limits Limits) module.Module {
	return &whois{newBase("Whois", 1, nil, store, limits)}
}

func (m *whois) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("whois record for %s", domainName), nil
	})
}

type certCheck struct{ base }

func NewCertCheck(store repository.Persistence, limits Limits) module.Module {
	return &certCheck{newBase("CertCheck", 1, nil, store, limits)}
}

func (m *certCheck) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("certificate for %s valid", domainName), nil
	})
}

type spellChecker struct{ base }

func NewSpellChecker(store repository.Persistence, limits Limits) module.Module {
	return &spellChecker{newBase("SpellChecker", 1, nil, store, limits)}
}

func (m *spellChecker) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("spelling of %s ok", domainName), nil
	})
}

type googlePageRank struct{ base }

func NewGooglePageRank(store repository.Persistence, limits Limits) module.Module {
	return &googlePageRank{newBase("GooglePageRank", 1, nil, store, limits)}
}

func (m *googlePageRank) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("pagerank for %s", domainName), nil
	})
}

type googleSafeBrowsing struct{ base }

func NewGoogleSafeBrowsing(store repository.Persistence, limits Limits) module.Module {
	return &googleSafeBrowsing{newBase("GoogleSafeBrowsing", 1, nil, store, limits)}
}

func (m *googleSafeBrowsing) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("safe browsing verdict for %s: clean", domainName), nil
	})
}

type googleSearch struct{ base }

func NewGoogleSearch(store repository.Persistence, limits Limits) module.Module {
	return &googleSearch{newBase("GoogleSearch", 1, nil, store, limits)}
}

func (m *googleSearch) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("search index snapshot for %s", domainName), nil
	})
}

type wot struct{ base }

func NewWOT(store repository.Persistence, limits Limits) module.Module {
	return &wot{newBase("WOT", 1, nil, store, limits)}
}

func (m *wot) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("web of trust score for %s", domainName), nil
	})
}

type robotsTxt struct{ base }

func NewRobotsTxt(store repository.Persistence, limits Limits) module.Module {
	return &robotsTxt{newBase("RobotsTxt", 1, nil, store, limits)}
}

func (m *robotsTxt) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("robots.txt for %s fetched", domainName), nil
	})
}
