package modules

import (
	"context"
	"fmt"
	"time"

	"github.com/akowasch/domainsearch/internal/module"
	"github.com/akowasch/domainsearch/internal/repository"
)

// The modules in this file declare dependencies, per the DAG
// SPEC_FULL.md §6 supplements: ASN/GeoIP/IPVoid/VirusTotal/MXToolbox/
// Nmap/Traceroute depend on DNSResolver; DomainAge depends on Whois;
// Typo depends on SpellChecker. MXToolbox, Nmap and Traceroute are the
// default norun set (config.Config.Norun), so they are registered but
// typically excluded at startup.

type asn struct{ base }

func NewASN(store repository.Persistence, limits Limits) module.Module {
	return &asn{newBase("ASN", 1, []string{"DNSResolver"}, store, limits)}
}

func (m *asn) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("asn lookup for %s", domainName), nil
	})
}

type geoIP struct{ base }

func NewGeoIP(store repository.Persistence, limits Limits) module.Module {
	return &geoIP{newBase("GeoIP", 1, []string{"DNSResolver"}, store, limits)}
}

func (m *geoIP) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("geoip for %s", domainName), nil
	})
}

type ipVoid struct{ base }

func NewIPVoid(store repository.Persistence, limits Limits) module.Module {
	return &ipVoid{newBase("IPVoid", 1, []string{"DNSResolver"}, store, limits)}
}

func (m *ipVoid) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("ip reputation for %s", domainName), nil
	})
}

type virusTotal struct{ base }

func NewVirusTotal(store repository.Persistence, limits Limits) module.Module {
	return &virusTotal{newBase("VirusTotal", 1, []string{"DNSResolver"}, store, limits)}
}

func (m *virusTotal) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("virustotal verdict for %s", domainName), nil
	})
}

type mxToolbox struct{ base }

func NewMXToolbox(store repository.Persistence, limits Limits) module.Module {
	return &mxToolbox{newBase("MXToolbox", 1, []string{"DNSResolver"}, store, limits)}
}

func (m *mxToolbox) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("mx records for %s", domainName), nil
	})
}

type nmap struct{ base }

func NewNmap(store repository.Persistence, limits Limits) module.Module {
	return &nmap{newBase("Nmap", 1, []string{"DNSResolver"}, store, limits)}
}

func (m *nmap) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("port scan for %s", domainName), nil
	})
}

type traceroute struct{ base }

func NewTraceroute(store repository.Persistence, limits Limits) module.Module {
	return &traceroute{newBase("Traceroute", 1, []string{"DNSResolver"}, store, limits)}
}

func (m *traceroute) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("traceroute to %s", domainName), nil
	})
}

type domainAge struct{ base }

func NewDomainAge(store repository.Persistence, limits Limits) module.Module {
	return &domainAge{newBase("DomainAge", 1, []string{"Whois"}, store, limits)}
}

func (m *domainAge) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("domain age for %s", domainName), nil
	})
}

type typo struct{ base }

func NewTypo(store repository.Persistence, limits Limits) module.Module {
	return &typo{newBase("Typo", 1, []string{"SpellChecker"}, store, limits)}
}

func (m *typo) Run(ctx context.Context, requestID int64, domainName string, attempt int) error {
	return m.runProbe(ctx, requestID, func() (string, error) {
		time.Sleep(probeDelay)
		return fmt.Sprintf("typosquat check for %s", domainName), nil
	})
}

// Registrations returns every module in the fixed set, name paired
// with factory, for ModuleRegistry construction (cmd/scanner wires
// this against the configured norun set).
func Registrations(store repository.Persistence, limits Limits) []module.Registration {
	return []module.Registration{
		{Name: "DNSResolver", Factory: func() module.Module { return NewDNSResolver(store, limits) }},
		{Name: "Whois", Factory: func() module.Module { return NewWhois(store, limits) }},
		{Name: "CertCheck", Factory: func() module.Module { return NewCertCheck(store, limits) }},
		{Name: "SpellChecker", Factory: func() module.Module { return NewSpellChecker(store, limits) }},
		{Name: "GooglePageRank", Factory: func() module.Module { return NewGooglePageRank(store, limits) }},
		{Name: "GoogleSafeBrowsing", Factory: func() module.Module { return NewGoogleSafeBrowsing(store, limits) }},
		{Name: "GoogleSearch", Factory: func() module.Module { return NewGoogleSearch(store, limits) }},
		{Name: "WOT", Factory: func() module.Module { return NewWOT(store, limits) }},
		{Name: "RobotsTxt", Factory: func() module.Module { return NewRobotsTxt(store, limits) }},
		{Name: "ASN", Factory: func() module.Module { return NewASN(store, limits) }},
		{Name: "GeoIP", Factory: func() module.Module { return NewGeoIP(store, limits) }},
		{Name: "IPVoid", Factory: func() module.Module { return NewIPVoid(store, limits) }},
		{Name: "VirusTotal", Factory: func() module.Module { return NewVirusTotal(store, limits) }},
		{Name: "MXToolbox", Factory: func() module.Module { return NewMXToolbox(store, limits) }},
		{Name: "Nmap", Factory: func() module.Module { return NewNmap(store, limits) }},
		{Name: "Traceroute", Factory: func() module.Module { return NewTraceroute(store, limits) }},
		{Name: "DomainAge", Factory: func() module.Module { return NewDomainAge(store, limits) }},
		{Name: "Typo", Factory: func() module.Module { return NewTypo(store, limits) }},
	}
}
