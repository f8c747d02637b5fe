// Package cache provides response caching for GET and HEAD requests,
// typically the collection list and single-document read routes. Entries
// are keyed by method, path and query by default; key rules add further
// dimensions such as a route parameter or a request header. A pluggable
// Store backs the cache so deployments can pick in-memory or Redis.
//
// With InvalidateOnWrite enabled, a successful POST, PUT, PATCH or DELETE
// bumps a per-collection generation that is part of every read key, so
// cached responses for that collection become unreachable the moment a
// write lands. On the Redis store the generation is shared, which keeps
// replicas from serving documents a sibling already changed.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/crudkit/crudkit/pkg/server/router"
)

// ErrCacheMiss indicates that a cache key was not found.
var ErrCacheMiss = errors.New("cache key not found")

// Store defines a pluggable backend for the response cache.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Close() error
}

// KeySource names where a cache key fragment is extracted from.
type KeySource string

const (
	KeySourceStatic KeySource = "static"
	KeySourceRoute  KeySource = "route"
	KeySourceHeader KeySource = "header"
	KeySourceQuery  KeySource = "query"
)

// KeyRule defines one dynamic fragment for cache key composition.
type KeyRule struct {
	Source   KeySource
	Key      string
	Value    string
	Name     string
	Optional bool
}

// Config controls the cache middleware.
type Config struct {
	Enabled bool
	Store   Store

	TTL                  time.Duration
	StaleWhileRevalidate time.Duration
	Public               bool

	// VaryHeaders is appended to the Vary response header on cache hits.
	VaryHeaders []string

	// BypassQueryParam allows explicit bypass (example: ?__cache_bypass=1).
	BypassQueryParam string

	// InvalidateOnWrite expires the cached reads of a collection when a
	// write under the same first path segment succeeds. Costs one extra
	// store lookup per cacheable read.
	InvalidateOnWrite bool

	KeyPrefix string
	KeyRules  []KeyRule
}

// DefaultConfig returns safe defaults with caching disabled.
func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		TTL:               30 * time.Second,
		Public:            true,
		VaryHeaders:       []string{},
		BypassQueryParam:  "__cache_bypass",
		InvalidateOnWrite: true,
		KeyPrefix:         "http-cache",
		KeyRules:          []KeyRule{},
	}
}

// New validates config and returns a middleware instance.
func New(cfg Config) (router.MiddlewareFunc, error) {
	cfg = normalizeConfig(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	rc := &responseCache{
		cfg:    cfg,
		flight: newFlightGroup(),
	}
	return rc.handle, nil
}

// Middleware creates cache middleware. Invalid configs degrade to
// pass-through.
func Middleware(cfg Config) router.MiddlewareFunc {
	mw, err := New(cfg)
	if err != nil {
		return passthroughMiddleware()
	}
	return mw
}

// ValidateConfig checks startup invariants for an enabled cache.
func ValidateConfig(cfg Config) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Store == nil {
		return errors.New("cache store is required when cache middleware is enabled")
	}
	if cfg.TTL <= 0 {
		return errors.New("cache ttl must be greater than zero")
	}
	if cfg.StaleWhileRevalidate < 0 {
		return errors.New("cache stale_while_revalidate cannot be negative")
	}

	for idx, rule := range cfg.KeyRules {
		switch rule.Source {
		case KeySourceStatic:
			if strings.TrimSpace(rule.Value) == "" {
				return fmt.Errorf("cache key_rules[%d].value is required for source=static", idx)
			}
		case KeySourceRoute, KeySourceHeader, KeySourceQuery:
			if strings.TrimSpace(rule.Key) == "" {
				return fmt.Errorf("cache key_rules[%d].key is required for source=%s", idx, rule.Source)
			}
		default:
			return fmt.Errorf("cache key_rules[%d].source is invalid: %s", idx, rule.Source)
		}
	}
	return nil
}

type responseCache struct {
	cfg    Config
	flight *flightGroup
}

func (rc *responseCache) handle(next router.HandlerFunc) router.HandlerFunc {
	return func(c router.Context) error {
		if !rc.cfg.Enabled {
			return next(c)
		}

		method := strings.ToUpper(strings.TrimSpace(c.Request().Method))
		if method != http.MethodGet && method != http.MethodHead {
			if rc.cfg.InvalidateOnWrite && isWriteMethod(method) {
				return rc.handleWrite(c, next)
			}
			return next(c)
		}

		start := time.Now()
		defer observeCacheLatency("total", time.Since(start))

		if shouldBypass(c.Request(), rc.cfg) {
			incCacheResult("bypass")
			c.Response().Header().Set("X-Cache", "BYPASS")
			return next(c)
		}

		cacheKey, err := buildCacheKey(c, rc.cfg)
		if err != nil {
			incCacheResult("error")
			c.Response().Header().Set("X-Cache", "MISS")
			return next(c)
		}
		if rc.cfg.InvalidateOnWrite {
			cacheKey += ":gen=" + rc.generation(collectionOf(c.Request().URL.Path))
		}

		now := time.Now()
		entry, cached, entryState := rc.load(cacheKey, now)
		if cached {
			switch entryState {
			case stateFresh:
				incCacheResult("hit")
				return serveCached(c, entry, rc.cfg, "HIT")
			case stateStale:
				// Serve stale only while another request is already
				// refreshing the key. Otherwise this request becomes
				// the refresher below.
				if rc.cfg.StaleWhileRevalidate > 0 && rc.flight.InFlight(cacheKey) {
					incCacheResult("stale")
					return serveCached(c, entry, rc.cfg, "STALE")
				}
			}
		}

		// Stampede protection: one request computes and stores the value
		// for a key, concurrent requests wait and receive the same payload.
		sharedEntry, sharedErr, shared := rc.flight.Do(cacheKey, func() (*cacheEntry, error) {
			c.Response().Header().Set("X-Cache", "MISS")
			incCacheResult("miss")
			return rc.computeAndStore(c, next, cacheKey)
		})
		if shared {
			if sharedErr == nil && sharedEntry != nil {
				incCacheResult("hit_shared")
				return serveCached(c, sharedEntry, rc.cfg, "HIT")
			}
			// The leader did not produce a cacheable response, so run the
			// handler normally for this request.
			c.Response().Header().Set("X-Cache", "MISS")
			return next(c)
		}
		return sharedErr
	}
}

const (
	stateFresh = "fresh"
	stateStale = "stale"
)

func (rc *responseCache) load(key string, now time.Time) (*cacheEntry, bool, string) {
	lookupStart := time.Now()
	defer observeCacheLatency("lookup", time.Since(lookupStart))

	raw, err := rc.cfg.Store.Get(key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, false, ""
		}
		incCacheResult("error")
		return nil, false, ""
	}

	entry := &cacheEntry{}
	if err := json.Unmarshal(raw, entry); err != nil {
		incCacheResult("error")
		return nil, false, ""
	}

	if !now.After(entry.FreshUntil) {
		return entry, true, stateFresh
	}
	if rc.cfg.StaleWhileRevalidate > 0 && now.Before(entry.StaleUntil) {
		return entry, true, stateStale
	}
	return nil, false, ""
}

func (rc *responseCache) computeAndStore(c router.Context, next router.HandlerFunc, key string) (*cacheEntry, error) {
	base := c.Response()
	writer := newCaptureWriter(base)
	c.SetResponse(writer)
	defer c.SetResponse(base)

	if err := next(c); err != nil {
		return nil, err
	}

	// Only plain 200 responses are cached. Errors, redirects and partial
	// content pass through untouched.
	status := writer.Status()
	if status != http.StatusOK {
		return nil, nil
	}

	body := writer.Body()
	headers := filterHeaders(base.Header())
	etag := strings.TrimSpace(headers.Get("ETag"))
	if etag == "" {
		etag = computeETag(body)
		headers.Set("ETag", etag)
	}
	applyVary(headers, rc.cfg.VaryHeaders)
	if strings.TrimSpace(headers.Get("Cache-Control")) == "" {
		headers.Set("Cache-Control", buildCacheControl(rc.cfg))
	}

	entry := &cacheEntry{
		StatusCode: status,
		Headers:    headers,
		Body:       body,
		ETag:       etag,
		FreshUntil: time.Now().Add(rc.cfg.TTL),
		StaleUntil: time.Now().Add(rc.cfg.TTL + rc.cfg.StaleWhileRevalidate),
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		incCacheResult("error")
		return nil, nil
	}
	storeStart := time.Now()
	if err := rc.cfg.Store.Set(key, encoded, rc.cfg.TTL+rc.cfg.StaleWhileRevalidate); err != nil {
		incCacheResult("error")
		return nil, nil
	}
	observeCacheLatency("store", time.Since(storeStart))
	incCacheResult("set")
	return entry, nil
}

// handleWrite runs the handler and, when it succeeds with a 2xx status,
// moves the collection to a new generation so older cached reads stop
// matching.
func (rc *responseCache) handleWrite(c router.Context, next router.HandlerFunc) error {
	if err := next(c); err != nil {
		return err
	}
	status := c.Response().Status()
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil
	}
	rc.bumpGeneration(collectionOf(c.Request().URL.Path))
	return nil
}

// generation returns the current generation fragment for a collection.
// A missing or unreadable generation resolves to zero, the value reads
// use until the first write.
func (rc *responseCache) generation(collection string) string {
	if collection == "" {
		return "0"
	}
	raw, err := rc.cfg.Store.Get(rc.generationKey(collection))
	if err != nil {
		return "0"
	}
	return string(raw)
}

func (rc *responseCache) bumpGeneration(collection string) {
	if collection == "" {
		return
	}
	gen := strconv.FormatInt(time.Now().UnixNano(), 10)
	// The generation key outlives every entry stored under an older
	// generation, so when it expires and reads fall back to generation
	// zero, no pre-write entry is left to resurface.
	ttl := rc.cfg.TTL + rc.cfg.StaleWhileRevalidate
	if err := rc.cfg.Store.Set(rc.generationKey(collection), []byte(gen), ttl); err != nil {
		incCacheResult("error")
		return
	}
	incCacheResult("invalidate")
}

func (rc *responseCache) generationKey(collection string) string {
	return rc.cfg.KeyPrefix + ":generation:" + collection
}

// collectionOf extracts the first path segment, the collection root all
// document routes share.
func collectionOf(path string) string {
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			return segment
		}
	}
	return ""
}

func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

type cacheEntry struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
	ETag       string              `json:"etag"`
	FreshUntil time.Time           `json:"fresh_until"`
	StaleUntil time.Time           `json:"stale_until"`
}

func serveCached(c router.Context, entry *cacheEntry, cfg Config, state string) error {
	if entry == nil {
		return nil
	}

	h := c.Response().Header()
	for k, values := range entry.Headers {
		h[k] = append([]string{}, values...)
	}
	if strings.TrimSpace(h.Get("Cache-Control")) == "" {
		h.Set("Cache-Control", buildCacheControl(cfg))
	}
	applyVary(h, cfg.VaryHeaders)
	if strings.TrimSpace(entry.ETag) != "" {
		h.Set("ETag", entry.ETag)
	}
	h.Set("X-Cache", state)

	if ifNoneMatchSatisfied(c.Request(), entry.ETag) {
		c.Response().WriteHeader(http.StatusNotModified)
		return nil
	}

	c.Response().WriteHeader(entry.StatusCode)
	if strings.EqualFold(c.Request().Method, http.MethodHead) {
		return nil
	}
	_, err := c.Response().Write(entry.Body)
	return err
}

func normalizeConfig(cfg Config) Config {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.StaleWhileRevalidate < 0 {
		cfg.StaleWhileRevalidate = def.StaleWhileRevalidate
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if strings.TrimSpace(cfg.BypassQueryParam) == "" {
		cfg.BypassQueryParam = def.BypassQueryParam
	}
	if cfg.VaryHeaders == nil {
		cfg.VaryHeaders = def.VaryHeaders
	}
	if cfg.KeyRules == nil {
		cfg.KeyRules = def.KeyRules
	}
	return cfg
}

func passthroughMiddleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			return next(c)
		}
	}
}

func buildCacheKey(c router.Context, cfg Config) (string, error) {
	req := c.Request()
	if req == nil {
		return "", errors.New("request is nil")
	}

	if len(cfg.KeyRules) == 0 {
		return fmt.Sprintf("%s:%s:%s:%s", cfg.KeyPrefix, req.Method, req.URL.Path, req.URL.Query().Encode()), nil
	}

	parts := []string{
		cfg.KeyPrefix,
		"method=" + strings.ToUpper(req.Method),
		"path=" + req.URL.Path,
	}

	for _, rule := range cfg.KeyRules {
		value, ok := resolveRuleValue(c, rule)
		if !ok {
			if rule.Optional {
				continue
			}
			return "", fmt.Errorf("missing required cache key rule for source=%s key=%s", rule.Source, rule.Key)
		}
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			name = defaultRuleName(rule)
		}
		parts = append(parts, name+"="+url.QueryEscape(value))
	}

	return strings.Join(parts, ":"), nil
}

func resolveRuleValue(c router.Context, rule KeyRule) (string, bool) {
	var value string
	switch rule.Source {
	case KeySourceStatic:
		value = strings.TrimSpace(rule.Value)
	case KeySourceRoute:
		value = strings.TrimSpace(c.Param(rule.Key))
	case KeySourceHeader:
		value = strings.TrimSpace(c.Request().Header.Get(rule.Key))
	case KeySourceQuery:
		value = strings.TrimSpace(c.Query(rule.Key))
	default:
		return "", false
	}
	return value, value != ""
}

func defaultRuleName(rule KeyRule) string {
	switch rule.Source {
	case KeySourceRoute:
		return "route." + rule.Key
	case KeySourceHeader:
		return "header." + strings.ToLower(rule.Key)
	case KeySourceQuery:
		return "query." + rule.Key
	default:
		return string(rule.Source)
	}
}

func shouldBypass(r *http.Request, cfg Config) bool {
	if r == nil {
		return false
	}
	cc := strings.ToLower(strings.TrimSpace(r.Header.Get("Cache-Control")))
	if strings.Contains(cc, "no-cache") || strings.Contains(cc, "no-store") {
		return true
	}
	param := strings.TrimSpace(cfg.BypassQueryParam)
	if param == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(param))) {
	case "", "0", "false", "off":
		return false
	}
	return true
}

func computeETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`
}

func ifNoneMatchSatisfied(r *http.Request, etag string) bool {
	if r == nil || strings.TrimSpace(etag) == "" {
		return false
	}
	header := strings.TrimSpace(r.Header.Get("If-None-Match"))
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	for _, token := range strings.Split(header, ",") {
		if strings.TrimSpace(token) == etag {
			return true
		}
	}
	return false
}

func applyVary(h http.Header, vary []string) {
	if len(vary) == 0 {
		return
	}
	existing := parseCSVHeader(h.Get("Vary"))
	seen := make(map[string]struct{}, len(existing)+len(vary))
	merged := make([]string, 0, len(existing)+len(vary))
	appendValue := func(item string) {
		trimmed := strings.TrimSpace(item)
		normalized := strings.ToLower(trimmed)
		if normalized == "" {
			return
		}
		if _, ok := seen[normalized]; ok {
			return
		}
		seen[normalized] = struct{}{}
		merged = append(merged, trimmed)
	}
	for _, item := range existing {
		appendValue(item)
	}
	for _, item := range vary {
		appendValue(item)
	}
	if len(merged) > 0 {
		h.Set("Vary", strings.Join(merged, ", "))
	}
}

func parseCSVHeader(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func buildCacheControl(cfg Config) string {
	scope := "private"
	if cfg.Public {
		scope = "public"
	}
	maxAge := int(cfg.TTL.Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	parts := []string{
		scope,
		"max-age=" + strconv.Itoa(maxAge),
	}
	if cfg.StaleWhileRevalidate > 0 {
		parts = append(parts, "stale-while-revalidate="+strconv.Itoa(int(cfg.StaleWhileRevalidate.Seconds())))
	}
	return strings.Join(parts, ", ")
}

// filterHeaders drops hop-by-hop and per-response headers that must not be
// replayed from the cache.
func filterHeaders(h http.Header) http.Header {
	cloned := h.Clone()
	for _, key := range []string{
		"Connection",
		"Keep-Alive",
		"Proxy-Authenticate",
		"Proxy-Authorization",
		"Te",
		"Trailer",
		"Transfer-Encoding",
		"Upgrade",
		"Set-Cookie",
		"Date",
		"Content-Length",
	} {
		cloned.Del(key)
	}
	return cloned
}

// captureWriter tees the handler's response so the body can be stored in
// the cache while still being written to the client.
type captureWriter struct {
	base        router.ResponseWriter
	statusCode  int
	headerWrote bool
	body        []byte
	bodyMu      sync.Mutex
}

func newCaptureWriter(base router.ResponseWriter) *captureWriter {
	return &captureWriter{base: base}
}

func (w *captureWriter) Header() http.Header {
	return w.base.Header()
}

func (w *captureWriter) WriteHeader(code int) {
	if w.headerWrote {
		return
	}
	w.headerWrote = true
	w.statusCode = code
	w.base.WriteHeader(code)
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if !w.headerWrote {
		w.WriteHeader(http.StatusOK)
	}
	w.bodyMu.Lock()
	w.body = append(w.body, p...)
	w.bodyMu.Unlock()
	return w.base.Write(p)
}

func (w *captureWriter) Status() int {
	if w.statusCode == 0 {
		return w.base.Status()
	}
	return w.statusCode
}

func (w *captureWriter) Written() bool {
	return w.base.Written() || w.headerWrote
}

func (w *captureWriter) Body() []byte {
	w.bodyMu.Lock()
	defer w.bodyMu.Unlock()
	return append([]byte{}, w.body...)
}

// flightGroup deduplicates concurrent cache fills per key. It differs from
// singleflight in that InFlight can observe a running fill without joining
// it, which the stale-while-revalidate path needs.
type flightGroup struct {
	mu sync.Mutex
	m  map[string]*flightCall
}

type flightCall struct {
	wg    sync.WaitGroup
	entry *cacheEntry
	err   error
}

func newFlightGroup() *flightGroup {
	return &flightGroup{m: make(map[string]*flightCall)}
}

func (g *flightGroup) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}

func (g *flightGroup) Do(key string, fn func() (*cacheEntry, error)) (*cacheEntry, error, bool) {
	g.mu.Lock()
	if call, ok := g.m[key]; ok {
		g.mu.Unlock()
		call.wg.Wait()
		return call.entry, call.err, true
	}
	call := &flightCall{}
	call.wg.Add(1)
	g.m[key] = call
	g.mu.Unlock()

	call.entry, call.err = fn()
	call.wg.Done()

	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()

	return call.entry, call.err, false
}
