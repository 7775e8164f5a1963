// Package analyzer implements C6: a process-wide pool of keyed clients to
// the external multimodal video-analysis service, plus the create/poll
// helpers that drive one chunk's prediction to completion.
//
// Grounded on the teacher's internal/platform/openai/client.go for the HTTP
// client shape (base URL / API key / timeout construction, linear-backoff
// request loop) and on the mutex-guarded per-key state map in pack file
// other_examples/2303ebab_windalfin-ayo-mwr__chunks-manager.go.go
// (ChunkManager.mu sync.RWMutex guarding a map of per-camera state),
// generalized here from camera state to per-credential pool handles.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/reelsheet/montage-core/internal/montage/mgerr"
	"github.com/reelsheet/montage-core/internal/platform/logger"
)

// ErrNoClientAvailable is returned by Acquire when every handle stays busy
// or unhealthy through the acquire ceiling.
var ErrNoClientAvailable = errors.New("analyzer: no client available")

// PredictionStatus mirrors the analyzer's reported lifecycle for one
// prediction (§6 "Analyzer").
type PredictionStatus string

const (
	PredictionStarting   PredictionStatus = "starting"
	PredictionProcessing PredictionStatus = "processing"
	PredictionSucceeded  PredictionStatus = "succeeded"
	PredictionFailed     PredictionStatus = "failed"
	PredictionCanceled   PredictionStatus = "canceled"
)

// Prediction is the analyzer's view of one create/poll cycle.
type Prediction struct {
	ID     string
	Status PredictionStatus
	Output string
	Error  *PredictionError
}

// PredictionError carries the analyzer's failure code, used to classify
// retryability (§6 "Failures carry a code").
type PredictionError struct {
	Code    string
	Message string
}

func (e *PredictionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// isTemporaryCode reports whether the analyzer-reported failure code is
// eligible for retry, per spec.md §6: "E6716, E004, and explicit timeout are
// treated as temporary... all other failures are terminal."
func isTemporaryCode(code string) bool {
	switch code {
	case "E6716", "E004", "timeout":
		return true
	default:
		return false
	}
}

// Transport is the low-level analyzer API surface a Client drives. It is
// the seam a fake implementation substitutes in tests, in the same spirit
// as the teacher's openai.Client interface sitting above an *http.Client.
type Transport interface {
	Create(ctx context.Context, model string, videoURL string, prompt string) (id string, err error)
	Get(ctx context.Context, id string) (Prediction, error)
}

// httpTransport is the default Transport, talking JSON over HTTP the way
// the teacher's openai.client.do/doOnce pair does: a bytes.Buffer-encoded
// body, a bearer Authorization header, and a status-code check before
// decoding the response.
type httpTransport struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPTransport builds the default analyzer Transport for one API key.
func NewHTTPTransport(baseURL, apiKey string, timeout time.Duration) Transport {
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &httpTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type createPredictionRequest struct {
	Model  string   `json:"model"`
	Videos []string `json:"videos"`
	Prompt string   `json:"prompt"`
}

type createPredictionResponse struct {
	ID string `json:"id"`
}

type getPredictionResponse struct {
	Status string `json:"status"`
	Output any    `json:"output"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (t *httpTransport) Create(ctx context.Context, model string, videoURL string, prompt string) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(createPredictionRequest{
		Model:  model,
		Videos: []string{videoURL},
		Prompt: prompt,
	}); err != nil {
		return "", fmt.Errorf("encode create request: %w", err)
	}

	var out createPredictionResponse
	if err := t.do(ctx, http.MethodPost, "/predictions", &buf, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", errors.New("analyzer create response missing id")
	}
	return out.ID, nil
}

func (t *httpTransport) Get(ctx context.Context, id string) (Prediction, error) {
	var out getPredictionResponse
	if err := t.do(ctx, http.MethodGet, "/predictions/"+id, nil, &out); err != nil {
		return Prediction{}, err
	}

	pred := Prediction{ID: id, Status: PredictionStatus(strings.ToLower(strings.TrimSpace(out.Status)))}
	switch v := out.Output.(type) {
	case string:
		pred.Output = v
	case []any:
		var sb strings.Builder
		for _, item := range v {
			if s, ok := item.(string); ok {
				sb.WriteString(s)
			}
		}
		pred.Output = sb.String()
	}
	if out.Error != nil {
		pred.Error = &PredictionError{Code: out.Error.Code, Message: out.Error.Message}
	}
	return pred, nil
}

func (t *httpTransport) do(ctx context.Context, method, path string, body *bytes.Buffer, out any) error {
	var reader io.Reader
	if body != nil {
		reader = body
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read analyzer response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("analyzer http %d: %s", resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode analyzer response: %w; raw=%s", err, string(raw))
	}
	return nil
}

// handle is one pooled client: a credential-scoped Transport plus the
// health bookkeeping acquire() ranks on.
type handle struct {
	key       string
	transport Transport

	mu               sync.Mutex
	activeRequests   int
	consecutiveErrors int
	lastErrorTime    time.Time
}

func (h *handle) snapshot(window time.Duration) (recentErrorFlag, consecutiveErrors, activeRequests int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	flag := 0
	if !h.lastErrorTime.IsZero() && time.Since(h.lastErrorTime) < window {
		flag = 1
	}
	return flag, h.consecutiveErrors, h.activeRequests
}

// Handle is the caller-visible acquired lease: a Transport plus the key it
// is scoped to, so callers can report success/failure back against it.
type Handle struct {
	Key       string
	Transport Transport
}

// Pool holds the ordered list of per-credential handles and performs the
// acquire/release/health bookkeeping of spec.md §4.6.
type Pool struct {
	log    *logger.Logger
	mu     sync.Mutex
	handles []*handle

	perKeyConcurrency int
	acquireTicker     *rate.Limiter
	acquireCeiling    time.Duration
	errorWindow       time.Duration
}

// NewPool builds a pool from one Transport per API key. perKeyConcurrency is
// normally 1 (spec.md §4.6's "deliberately conservative choice"). The
// acquire-wait poll cadence is paced by a golang.org/x/time/rate limiter
// (1 token per acquireTick, burst 1) rather than a bare time.Ticker; that
// limiter governs how often a blocked Acquire re-checks the pool.
func NewPool(log *logger.Logger, transports map[string]Transport, perKeyConcurrency int, acquireTick, acquireCeiling, errorWindow time.Duration) *Pool {
	if perKeyConcurrency <= 0 {
		perKeyConcurrency = 1
	}
	if acquireTick <= 0 {
		acquireTick = 1 * time.Second
	}
	if acquireCeiling <= 0 {
		acquireCeiling = 5 * time.Minute
	}
	if errorWindow <= 0 {
		errorWindow = 30 * time.Second
	}

	keys := make([]string, 0, len(transports))
	for k := range transports {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	handles := make([]*handle, 0, len(keys))
	for _, k := range keys {
		handles = append(handles, &handle{
			key:       k,
			transport: transports[k],
		})
	}

	return &Pool{
		log:               log.With("component", "analyzer.Pool"),
		handles:           handles,
		perKeyConcurrency: perKeyConcurrency,
		acquireTicker:     rate.NewLimiter(rate.Every(acquireTick), 1),
		acquireCeiling:    acquireCeiling,
		errorWindow:       errorWindow,
	}
}

// Acquire returns the healthy handle with the smallest
// (recentErrorFlag, consecutiveErrors, activeRequests) lexicographic key. If
// none are free it polls every acquireTick up to acquireCeiling, then fails
// with ErrNoClientAvailable.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	deadline := time.Now().Add(p.acquireCeiling)

	for {
		if h := p.tryAcquire(); h != nil {
			return &Handle{Key: h.key, Transport: h.transport}, nil
		}
		if time.Now().After(deadline) {
			return nil, mgerr.Transient(-1, ErrNoClientAvailable)
		}
		if err := p.acquireTicker.Wait(ctx); err != nil {
			return nil, err
		}
	}
}

func (p *Pool) tryAcquire() *handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.handles) == 0 {
		return nil
	}

	type ranked struct {
		h                               *handle
		recentErrorFlag, consecutiveErrors, activeRequests int
	}
	candidates := make([]ranked, 0, len(p.handles))
	for _, h := range p.handles {
		flag, consecutive, active := h.snapshot(p.errorWindow)
		if active >= p.perKeyConcurrency {
			continue
		}
		candidates = append(candidates, ranked{h: h, recentErrorFlag: flag, consecutiveErrors: consecutive, activeRequests: active})
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.recentErrorFlag != b.recentErrorFlag {
			return a.recentErrorFlag < b.recentErrorFlag
		}
		if a.consecutiveErrors != b.consecutiveErrors {
			return a.consecutiveErrors < b.consecutiveErrors
		}
		return a.activeRequests < b.activeRequests
	})

	chosen := candidates[0].h
	chosen.mu.Lock()
	chosen.activeRequests++
	chosen.mu.Unlock()
	return chosen
}

// Release decrements the handle's in-flight counter.
func (p *Pool) Release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.handles {
		if h.key != key {
			continue
		}
		h.mu.Lock()
		if h.activeRequests > 0 {
			h.activeRequests--
		}
		h.mu.Unlock()
		return
	}
}

// MarkSuccess zeros a handle's error counters.
func (p *Pool) MarkSuccess(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.handles {
		if h.key != key {
			continue
		}
		h.mu.Lock()
		h.consecutiveErrors = 0
		h.lastErrorTime = time.Time{}
		h.mu.Unlock()
		return
	}
}

// MarkError increments a handle's error counters and timestamps the event,
// deprioritizing it for the configured error window.
func (p *Pool) MarkError(key string, reason error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.handles {
		if h.key != key {
			continue
		}
		h.mu.Lock()
		h.consecutiveErrors++
		h.lastErrorTime = time.Now()
		h.mu.Unlock()
		if p.log != nil && reason != nil {
			p.log.Warn("analyzer client marked error", "key", key, "reason", reason.Error())
		}
		return
	}
}

// Size reports the number of pooled handles, used by the orchestrator to
// size its "optional bounded-parallel profile" batch (§5).
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// Runner drives one chunk's prediction end to end: acquire, create with
// retry, poll to terminal status, release, mark health.
type Runner struct {
	log *logger.Logger

	pool *Pool

	model string

	createMaxAttempts int
	createLinearStep  time.Duration
	pollInterval      time.Duration
	pollMaxAttempts   int

	temporaryBackoff func(attempt int) time.Duration
}

// NewRunner builds a Runner bound to a Pool and the configured retry/poll
// cadence (spec.md §4.6: 3 creation attempts / linear 2s,4s,6s; 5s poll tick
// / 60 attempts).
func NewRunner(log *logger.Logger, pool *Pool, model string, createMaxAttempts int, createLinearStep time.Duration, pollInterval time.Duration, pollMaxAttempts int) *Runner {
	if createMaxAttempts <= 0 {
		createMaxAttempts = 3
	}
	if createLinearStep <= 0 {
		createLinearStep = 2 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if pollMaxAttempts <= 0 {
		pollMaxAttempts = 60
	}
	return &Runner{
		log:               log.With("component", "analyzer.Runner"),
		pool:              pool,
		model:             model,
		createMaxAttempts: createMaxAttempts,
		createLinearStep:  createLinearStep,
		pollInterval:      pollInterval,
		pollMaxAttempts:   pollMaxAttempts,
		temporaryBackoff:  quadraticBackoff,
	}
}

// Analyze acquires a client, creates a prediction for videoURL/prompt,
// polls it to a terminal status, and releases the client. The returned
// output is the concatenated analyzer text (§6 "Outputs concatenate as a
// single text document per call"). A failure carrying a temporary code
// (E6716, E004, timeout) is retried in place with quadratic backoff
// (min(attempt²·5s, 90s)) before surfacing as a chunk failure.
func (r *Runner) Analyze(ctx context.Context, chunkIndex int, videoURL, prompt string) (string, error) {
	h, err := r.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer r.pool.Release(h.Key)

	const maxTemporaryRetries = 3
	for attempt := 0; ; attempt++ {
		id, err := r.createPredictionWithRetry(ctx, h, videoURL, prompt)
		if err != nil {
			r.pool.MarkError(h.Key, err)
			return "", mgerr.PerChunkTerminal(chunkIndex, fmt.Errorf("create prediction: %w", err))
		}

		pred, err := r.pollPrediction(ctx, h, id)
		if err != nil {
			r.pool.MarkError(h.Key, err)
			return "", mgerr.Transient(chunkIndex, fmt.Errorf("poll prediction %s: %w", id, err))
		}

		switch pred.Status {
		case PredictionSucceeded:
			r.pool.MarkSuccess(h.Key)
			return pred.Output, nil
		case PredictionFailed, PredictionCanceled:
			r.pool.MarkError(h.Key, pred.Error)
			if pred.Error != nil && isTemporaryCode(pred.Error.Code) && attempt < maxTemporaryRetries {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(r.temporaryBackoff(attempt + 1)):
				}
				continue
			}
			return "", mgerr.PerChunkTerminal(chunkIndex, fmt.Errorf("%w: %v", mgerr.ErrAnalyzerFailed, pred.Error))
		default:
			r.pool.MarkError(h.Key, fmt.Errorf("unexpected terminal status %q", pred.Status))
			return "", mgerr.Transient(chunkIndex, fmt.Errorf("prediction %s left in non-terminal status %q after poll budget", id, pred.Status))
		}
	}
}

// createPredictionWithRetry performs up to createMaxAttempts creation
// attempts with linear backoff (2s, 4s, 6s by default).
func (r *Runner) createPredictionWithRetry(ctx context.Context, h *Handle, videoURL, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.createMaxAttempts; attempt++ {
		id, err := h.Transport.Create(ctx, r.model, videoURL, prompt)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if attempt == r.createMaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * r.createLinearStep):
		}
	}
	return "", lastErr
}

// pollPrediction polls at pollInterval for up to pollMaxAttempts. Any status
// other than succeeded/failed/canceled is "in progress" (§4.6).
func (r *Runner) pollPrediction(ctx context.Context, h *Handle, id string) (Prediction, error) {
	var last Prediction
	for attempt := 0; attempt < r.pollMaxAttempts; attempt++ {
		pred, err := h.Transport.Get(ctx, id)
		if err != nil {
			return Prediction{}, err
		}
		last = pred
		switch pred.Status {
		case PredictionSucceeded, PredictionFailed, PredictionCanceled:
			return pred, nil
		}

		select {
		case <-ctx.Done():
			return Prediction{}, ctx.Err()
		case <-time.After(r.pollInterval):
		}
	}
	return last, fmt.Errorf("prediction %s exceeded poll budget of %d attempts", id, r.pollMaxAttempts)
}

// quadraticBackoff implements the §6 "Failures" retry shape
// (min(attempt²·5s, 90s)) for transports that want to honor the analyzer's
// own temporary-error backoff contract rather than the linear
// createPredictionWithRetry cadence (which governs only prediction
// *creation*, not provider-side transient failures reported via status
// codes).
func quadraticBackoff(attempt int) time.Duration {
	d := time.Duration(attempt*attempt) * 5 * time.Second
	if d > 90*time.Second {
		d = 90 * time.Second
	}
	return d
}
