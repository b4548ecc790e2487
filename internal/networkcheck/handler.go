package networkcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prose-im/prose-pod-api/internal/httpserver"
	"github.com/prose-im/prose-pod-api/internal/onboarding"
)

// batchTimeout bounds a non-streaming run_all request: a check that keeps
// failing would otherwise retry forever and the request would never
// return. Streaming requests have no such cap — they run until the
// client disconnects or the stream completes.
const batchTimeout = 30 * time.Second

// FederationChecker reports whether the pod currently has federation
// enabled, which changes which checks the derivation rule produces (s2s
// DNS/port/IP checks only apply when it's on).
type FederationChecker interface {
	FederationEnabled(ctx context.Context) (bool, error)
}

// Handler exposes the network check suite over HTTP as three independent
// resources (DNS, ports, IP connectivity), each negotiating between a
// single JSON response (the default) and an SSE stream of incremental
// results.
//
// No corpus example implements Server-Sent Events; this handler is built
// directly on net/http and http.Flusher, which is the idiomatic standard
// library way to do it, and is the one ambient concern in this codebase
// with no ecosystem library backing it (see DESIGN.md).
type Handler struct {
	runner     *Runner
	onboarding *onboarding.Store
	federation FederationChecker

	domain       string
	resolverAddr string
	xmppHost     string
	c2sPort      int
	s2sPort      int
	httpsPort    int
	staticIPv4   string
	staticIPv6   string

	logger *slog.Logger
}

func NewHandler(
	runner *Runner,
	onboardingStore *onboarding.Store,
	federation FederationChecker,
	domain, resolverAddr, xmppHost string,
	c2sPort, s2sPort, httpsPort int,
	staticIPv4, staticIPv6 string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		runner:       runner,
		onboarding:   onboardingStore,
		federation:   federation,
		domain:       domain,
		resolverAddr: resolverAddr,
		xmppHost:     xmppHost,
		c2sPort:      c2sPort,
		s2sPort:      s2sPort,
		httpsPort:    httpsPort,
		staticIPv4:   staticIPv4,
		staticIPv6:   staticIPv6,
		logger:       logger,
	}
}

// Routes returns the three check resources: GET /dns, /ports, /ip.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/dns", h.handleKind("dns:"))
	r.Get("/ports", h.handleKind("port:"))
	r.Get("/ip", h.handleKind("ip:"))
	return r
}

// DNSRecordsRoutes returns the DNS-setup-instructions resource: the
// records an admin needs to create, independent of whether they
// currently resolve correctly.
func (h *Handler) DNSRecordsRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleDNSRecords)
	return r
}

// checks derives the full check matrix from (domain, pod address,
// federation_enabled): DNS A/AAAA only when the pod has a static address,
// c2s SRV always, s2s SRV/port/IP checks only when federation is on, and
// one IPv4 and one IPv6 connectivity check per enabled service.
func (h *Handler) checks(ctx context.Context) ([]Check, error) {
	federation, err := h.federation.FederationEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading federation setting: %w", err)
	}

	var checks []Check

	if h.staticIPv4 != "" {
		checks = append(checks, NewDNSCheck(h.xmppHost, RecordA, h.resolverAddr, h.staticIPv4))
	}
	if h.staticIPv6 != "" {
		checks = append(checks, NewDNSCheck(h.xmppHost, RecordAAAA, h.resolverAddr, h.staticIPv6))
	}
	checks = append(checks, NewDNSCheck(
		fmt.Sprintf("_xmpp-client._tcp.%s", h.domain), RecordSRV, h.resolverAddr,
		fmt.Sprintf("%d %s.", h.c2sPort, h.xmppHost),
	))
	if federation {
		checks = append(checks, NewDNSCheck(
			fmt.Sprintf("_xmpp-server._tcp.%s", h.domain), RecordSRV, h.resolverAddr,
			fmt.Sprintf("%d %s.", h.s2sPort, h.xmppHost),
		))
	}

	checks = append(checks, NewPortCheck(h.xmppHost, h.c2sPort, "c2s"))
	if federation {
		checks = append(checks, NewPortCheck(h.xmppHost, h.s2sPort, "s2s"))
	}
	checks = append(checks, NewPortCheck(h.xmppHost, h.httpsPort, "https"))

	services := []struct {
		name string
		port int
	}{{"c2s", h.c2sPort}}
	if federation {
		services = append(services, struct {
			name string
			port int
		}{"s2s", h.s2sPort})
	}
	for _, svc := range services {
		checks = append(checks, NewIPConnectivityCheck(h.xmppHost, svc.port, svc.name, "ipv4", h.resolverAddr))
		checks = append(checks, NewIPConnectivityCheck(h.xmppHost, svc.port, svc.name, "ipv6", h.resolverAddr))
	}

	return checks, nil
}

// handleKind runs the subset of the derived check matrix whose Kind()
// starts with prefix, JSON or SSE depending on content negotiation.
func (h *Handler) handleKind(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := h.checks(r.Context())
		if err != nil {
			httpserver.RespondAppError(w, h.logger, err)
			return
		}
		checks := filterByPrefix(all, prefix)
		results := make(chan Result, len(checks)*2+1)

		if wantsStream(r) {
			h.streamResults(w, r, checks, results)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), batchTimeout)
		defer cancel()
		batch := h.runBatch(ctx, checks, results)
		h.maybeMarkDNSChecksPassed(r.Context(), batch)
		httpserver.Respond(w, http.StatusOK, batch)
	}
}

// RunAll runs the full derived check matrix to completion, with no HTTP
// framing, bounded by batchTimeout. Used both to satisfy the
// onboarding.DNSChecker interface at startup and internally by
// AllDNSChecksPass.
func (h *Handler) RunAll(ctx context.Context) []Result {
	checks, err := h.checks(ctx)
	if err != nil {
		h.logger.Error("deriving network checks", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()
	results := make(chan Result, len(checks)*2+1)
	return h.runBatch(ctx, checks, results)
}

func (h *Handler) runBatch(ctx context.Context, checks []Check, results chan Result) []Result {
	done := make(chan struct{})
	go func() {
		h.runner.Run(ctx, checks, results)
		close(done)
	}()

	var batch []Result
	for {
		select {
		case res := <-results:
			if !res.Status.Terminal() {
				continue
			}
			batch = append(batch, res)
		case <-done:
			for len(results) > 0 {
				res := <-results
				if res.Status.Terminal() {
					batch = append(batch, res)
				}
			}
			return batch
		}
	}
}

func (h *Handler) streamResults(w http.ResponseWriter, r *http.Request, checks []Check, results chan Result) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		h.runner.Run(ctx, checks, results)
		close(done)
	}()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	// latest keeps each check's most recent terminal result, so a check
	// that failed before passing on a retry counts as passed.
	latest := make(map[string]Result)
	for {
		select {
		case res := <-results:
			if res.Status.Terminal() {
				latest[res.Kind+" "+res.Target] = res
			}
			payload, err := json.Marshal(res)
			if err != nil {
				h.logger.Error("marshaling network check result", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-done:
			// "end" is only emitted on a full pass; a client-initiated
			// cancellation just closes the connection with no event.
			batch := make([]Result, 0, len(latest))
			for _, res := range latest {
				batch = append(batch, res)
			}
			if len(batch) == len(checks) && allPass(batch) {
				h.maybeMarkDNSChecksPassed(ctx, batch)
				fmt.Fprintf(w, "event: end\ndata: {}\n\n")
				flusher.Flush()
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) handleDNSRecords(w http.ResponseWriter, r *http.Request) {
	checks, err := h.checks(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	type dnsRecord struct {
		Hostname string `json:"hostname"`
		Type     string `json:"type"`
		Value    string `json:"value"`
	}

	var records []dnsRecord
	for _, c := range checks {
		dc, ok := c.(*DNSCheck)
		if !ok {
			continue
		}
		records = append(records, dnsRecord{
			Hostname: dc.Hostname,
			Type:     strings.ToUpper(strings.TrimPrefix(dc.Kind(), "dns:")),
			Value:    dc.Expected,
		})
	}

	httpserver.Respond(w, http.StatusOK, records)
}

// maybeMarkDNSChecksPassed reaches the all_dns_checks_passed_once
// onboarding flag when every DNS check in a completed run passed. It is
// best-effort: a failure to persist the flag is logged by the store, never
// surfaced to the caller of a check run that otherwise succeeded.
func (h *Handler) maybeMarkDNSChecksPassed(ctx context.Context, batch []Result) {
	if allDNSChecksPass(batch) {
		_ = h.onboarding.Reach(ctx, onboarding.StepAllDNSChecksPassedOnce)
	}
}

// allDNSChecksPass reports whether batch contains at least one DNS-kind
// result and every DNS-kind result passed; port/IP results are ignored.
func allDNSChecksPass(batch []Result) bool {
	sawDNS := false
	for _, res := range batch {
		if !strings.HasPrefix(res.Kind, "dns:") {
			continue
		}
		sawDNS = true
		if res.Status.Failing() {
			return false
		}
	}
	return sawDNS
}

// allPass reports whether every result in batch is a non-failing
// terminal status, used to decide whether a stream earned its "end" event.
func allPass(batch []Result) bool {
	if len(batch) == 0 {
		return false
	}
	for _, res := range batch {
		if res.Status.Failing() {
			return false
		}
	}
	return true
}

// AllDNSChecksPass runs the check suite and reports whether every DNS
// check passed, satisfying onboarding.DNSChecker so startup backfill can
// re-derive the all_dns_checks_passed_once flag without networkcheck
// importing onboarding's consumer-side interfaces directly.
func (h *Handler) AllDNSChecksPass(ctx context.Context) (bool, error) {
	return allDNSChecksPass(h.RunAll(ctx)), nil
}

func filterByPrefix(checks []Check, prefix string) []Check {
	var out []Check
	for _, c := range checks {
		if strings.HasPrefix(c.Kind(), prefix) {
			out = append(out, c)
		}
	}
	return out
}

func wantsStream(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return true
	}
	if v := r.URL.Query().Get("stream"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return false
}
