// Package networkcheck runs the pod's DNS/port/IP-connectivity diagnostics:
// the checks an admin needs to pass before XMPP clients and federating
// servers can actually reach the pod.
package networkcheck

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Status is a single check's terminal or in-flight state. The concrete
// values a given check can reach depend on its kind: DNS checks reach
// Valid/PartiallyValid/Invalid/Error, port checks reach Open/Closed, IP
// connectivity checks reach Success/Failure/Missing. Queued and Checking
// are shared by every kind.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusChecking Status = "checking"

	// DNS-record check outcomes.
	StatusValid          Status = "valid"
	StatusPartiallyValid Status = "partially_valid"
	StatusInvalid        Status = "invalid"
	StatusError          Status = "error"

	// Port-reachability check outcomes.
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"

	// IP-connectivity check outcomes.
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusMissing Status = "missing"
)

// Failing reports whether a terminal status counts as a failure for
// retry and all-checks-passed purposes.
func (s Status) Failing() bool {
	switch s {
	case StatusInvalid, StatusError, StatusClosed, StatusFailure, StatusMissing:
		return true
	}
	return false
}

// Terminal reports whether s is a final state rather than Queued/Checking.
func (s Status) Terminal() bool {
	return s != StatusQueued && s != StatusChecking
}

// Result is one check's result at a point in its lifecycle, emitted once
// per transition (Queued, then Checking, then a terminal status, possibly
// repeated on retry).
type Result struct {
	Kind      string    `json:"kind"`
	Target    string    `json:"target"`
	Status    Status    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	Expected  string    `json:"expected,omitempty"`
	Found     string    `json:"found,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Outcome is what a Check.Run call classifies itself as, before the
// runner stamps it into a timestamped Result.
type Outcome struct {
	Status   Status
	Detail   string
	Expected string
	Found    string
}

// Check is a single probe the runner can schedule, retry, and report on.
type Check interface {
	// Kind identifies the check's category, e.g. "dns:a", "port:c2s",
	// "ip:s2s:ipv6" — stable across retries of the same check.
	Kind() string
	// Target is the human-readable hostname/port this check probes.
	Target() string
	Run(ctx context.Context) Outcome
}

// DNSRecordType names which record a DNSCheck queries, independent of the
// miekg/dns numeric type constant so callers outside this package never
// need to import it.
type DNSRecordType int

const (
	RecordA DNSRecordType = iota
	RecordAAAA
	RecordSRV
)

// DNSCheck queries a single DNS record and compares what it finds against
// the value the pod's configuration says should be there.
type DNSCheck struct {
	Hostname     string
	RecordType   DNSRecordType
	ResolverAddr string

	// Expected is the value the record should resolve to: an IP address
	// literal for A/AAAA, or "port target" (e.g. "5269 xmpp.example.com.")
	// for SRV, where target is compared case-insensitively as an FQDN.
	Expected string
}

func NewDNSCheck(hostname string, recordType DNSRecordType, resolverAddr, expected string) *DNSCheck {
	return &DNSCheck{Hostname: hostname, RecordType: recordType, ResolverAddr: resolverAddr, Expected: expected}
}

func (c *DNSCheck) Kind() string {
	switch c.RecordType {
	case RecordA:
		return "dns:a"
	case RecordAAAA:
		return "dns:aaaa"
	case RecordSRV:
		return "dns:srv"
	default:
		return "dns:unknown"
	}
}

func (c *DNSCheck) Target() string { return c.Hostname }

func (c *DNSCheck) dnsType() uint16 {
	switch c.RecordType {
	case RecordA:
		return dns.TypeA
	case RecordAAAA:
		return dns.TypeAAAA
	case RecordSRV:
		return dns.TypeSRV
	default:
		return dns.TypeNone
	}
}

// Run queries the record and classifies it against Expected. A found
// record equal to Expected in every user-visible field is Valid; one that
// matches on essential fields (SRV target+port; the address itself for
// A/AAAA) but differs on a secondary field (SRV priority/weight) is
// PartiallyValid; anything else found is Invalid; a failed lookup is
// Error.
func (c *DNSCheck) Run(ctx context.Context) Outcome {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(c.Hostname), c.dnsType())

	client := &dns.Client{Timeout: 5 * time.Second}
	resp, _, err := client.ExchangeContext(ctx, msg, c.ResolverAddr)
	if err != nil {
		return Outcome{Status: StatusError, Detail: err.Error(), Expected: c.Expected}
	}
	if resp.Rcode != dns.RcodeSuccess {
		return Outcome{Status: StatusError, Detail: fmt.Sprintf("rcode %s", dns.RcodeToString[resp.Rcode]), Expected: c.Expected}
	}
	if len(resp.Answer) == 0 {
		return Outcome{Status: StatusInvalid, Detail: "no answer", Expected: c.Expected, Found: ""}
	}

	switch c.RecordType {
	case RecordA:
		rr, ok := resp.Answer[0].(*dns.A)
		if !ok {
			return Outcome{Status: StatusInvalid, Detail: "answer is not an A record", Expected: c.Expected}
		}
		found := rr.A.String()
		if found == c.Expected {
			return Outcome{Status: StatusValid, Found: found, Expected: c.Expected}
		}
		return Outcome{Status: StatusInvalid, Found: found, Expected: c.Expected}

	case RecordAAAA:
		rr, ok := resp.Answer[0].(*dns.AAAA)
		if !ok {
			return Outcome{Status: StatusInvalid, Detail: "answer is not an AAAA record", Expected: c.Expected}
		}
		found := rr.AAAA.String()
		if found == c.Expected {
			return Outcome{Status: StatusValid, Found: found, Expected: c.Expected}
		}
		return Outcome{Status: StatusInvalid, Found: found, Expected: c.Expected}

	case RecordSRV:
		rr, ok := resp.Answer[0].(*dns.SRV)
		if !ok {
			return Outcome{Status: StatusInvalid, Detail: "answer is not an SRV record", Expected: c.Expected}
		}
		found := fmt.Sprintf("%d %d %d %s", rr.Priority, rr.Weight, rr.Port, rr.Target)
		expPort, expTarget, ok := splitSRVExpected(c.Expected)
		if !ok {
			return Outcome{Status: StatusError, Detail: "malformed expected SRV value", Found: found, Expected: c.Expected}
		}
		if rr.Port != expPort || !strings.EqualFold(dns.Fqdn(rr.Target), dns.Fqdn(expTarget)) {
			return Outcome{Status: StatusInvalid, Found: found, Expected: c.Expected}
		}
		// Essential fields (port, target) match. Priority/weight are
		// secondary: any deviation from the values the pod advertises as
		// its own default (0, 5) is still a working record, just an
		// unusual one — PartiallyValid rather than Invalid.
		if rr.Priority != 0 || rr.Weight != 5 {
			return Outcome{Status: StatusPartiallyValid, Found: found, Expected: c.Expected}
		}
		return Outcome{Status: StatusValid, Found: found, Expected: c.Expected}
	}

	return Outcome{Status: StatusError, Detail: "unsupported record type"}
}

// splitSRVExpected parses an "Expected" value of the form "port target".
func splitSRVExpected(expected string) (port uint16, target string, ok bool) {
	var p int
	n, err := fmt.Sscanf(expected, "%d %s", &p, &target)
	if err != nil || n != 2 {
		return 0, "", false
	}
	return uint16(p), target, true
}

// PortCheck dials a TCP port and reports whether it accepts connections.
type PortCheck struct {
	Host string
	Port int
	Name string // "c2s", "s2s", "https" — used in Kind()
}

func NewPortCheck(host string, port int, name string) *PortCheck {
	return &PortCheck{Host: host, Port: port, Name: name}
}

func (c *PortCheck) Kind() string   { return "port:" + c.Name }
func (c *PortCheck) Target() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

func (c *PortCheck) Run(ctx context.Context) Outcome {
	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", c.Target())
	if err != nil {
		return Outcome{Status: StatusClosed, Detail: err.Error()}
	}
	conn.Close()
	return Outcome{Status: StatusOpen, Detail: "connection accepted"}
}

// IPConnectivityCheck reports whether a service is reachable over a
// specific IP family: an A/AAAA record must exist for Host, and a raw TCP
// connection to Port over that family must succeed.
type IPConnectivityCheck struct {
	Host         string
	Port         int
	Service      string // "c2s" or "s2s"
	Family       string // "ipv4" or "ipv6"
	ResolverAddr string
}

func NewIPConnectivityCheck(host string, port int, service, family, resolverAddr string) *IPConnectivityCheck {
	return &IPConnectivityCheck{Host: host, Port: port, Service: service, Family: family, ResolverAddr: resolverAddr}
}

func (c *IPConnectivityCheck) Kind() string   { return fmt.Sprintf("ip:%s:%s", c.Service, c.Family) }
func (c *IPConnectivityCheck) Target() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// Run reports Missing when no A/AAAA record of the requested family
// exists at all, Failure when one exists but the TCP connection fails,
// and Success when the connection is accepted — the is_ipv4_available /
// is_ipv6_available check plus a live reachability probe.
func (c *IPConnectivityCheck) Run(ctx context.Context) Outcome {
	recordType, network := dns.TypeA, "tcp4"
	if c.Family == "ipv6" {
		recordType, network = dns.TypeAAAA, "tcp6"
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(c.Host), recordType)
	client := &dns.Client{Timeout: 5 * time.Second}
	resp, _, err := client.ExchangeContext(ctx, msg, c.ResolverAddr)
	if err != nil || resp.Rcode != dns.RcodeSuccess || len(resp.Answer) == 0 {
		return Outcome{Status: StatusMissing, Detail: fmt.Sprintf("no %s record for %s", c.Family, c.Host)}
	}

	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, network, c.Target())
	if err != nil {
		return Outcome{Status: StatusFailure, Detail: err.Error()}
	}
	conn.Close()
	return Outcome{Status: StatusSuccess, Detail: "connection accepted"}
}
