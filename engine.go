// Package reactorcrawl implements an asynchronous, single-threaded
// fetch engine: a reactor-driven event loop, a multiplexed HTTP
// transport abstraction, a bounded pool of reusable request handles,
// and a deduplicating URL frontier, wired together the way
// original_source/src/HBscraper.hpp's Async class wires libuv and
// libcurl.
package reactorcrawl

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dcrichton/reactorcrawl/internal/config"
	"github.com/dcrichton/reactorcrawl/internal/frontier"
	"github.com/dcrichton/reactorcrawl/internal/htmldoc"
	"github.com/dcrichton/reactorcrawl/internal/multidrv"
	"github.com/dcrichton/reactorcrawl/internal/pool"
	"github.com/dcrichton/reactorcrawl/internal/reactor"
	"github.com/dcrichton/reactorcrawl/internal/rhandle"
)

// SuccessFunc is invoked once per 200-status response, with the parsed
// document ready to query. Mirrors Async::Sclb.
type SuccessFunc func(resp Response, e *Engine, doc *Document)

// FailureFunc is invoked once per transfer that failed at the
// transport level (connection refused, reset, timed out, TLS failure).
// A successful transfer that returned any status other than 200 triggers
// neither SuccessFunc nor FailureFunc — see SPEC_FULL.md's resolved
// open question on this. Mirrors Async::Fclb.
type FailureFunc func(resp Response, e *Engine)

// IdleFunc is invoked once per reactor iteration while the idler is
// active, reporting how many transfers are still in flight. Mirrors
// Async::Iclb.
type IdleFunc func(pending int, e *Engine)

// ExceptionFunc is invoked if Run recovers a panic from inside the
// event loop, in place of letting it propagate. Mirrors Async::Eclb
// wrapping loop.run()'s try/catch.
type ExceptionFunc func(err error, e *Engine)

// Engine is the fetch engine: seed URLs with Seed/AddURL, register
// callbacks with OnSuccess/OnFailure, then call Run. Run blocks until
// the frontier is empty, every in-flight transfer has completed, and
// the grace period configured by SetDelayExitMs has elapsed with
// nothing new arriving — or until CloseProcessing is called directly.
type Engine struct {
	loop       *reactor.Reactor
	idler      *reactor.Check
	delayTimer *reactor.Timer
	retryTimer *reactor.Timer

	frontier *frontier.Frontier
	pool     *pool.Pool
	driver   multidrv.Driver

	polls map[int]*reactor.Poll

	delayExit       time.Duration
	showRequestInfo bool
	requestLog      io.Writer

	onSuccessFn   SuccessFunc
	onFailureFn   FailureFunc
	onIdleFn      IdleFunc
	onExceptionFn ExceptionFunc

	logger *slog.Logger
}

// New builds an Engine. totalConn/hostConn/bufferSize/timeout mirror
// original_source's Async(tc, hc, bz, tm) constructor defaults
// (10, 10, 1024, 50s).
func New(totalConn, hostConn, bufferSize int, timeout time.Duration, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "engine")

	loop, err := reactor.New()
	if err != nil {
		return nil, fmt.Errorf("reactorcrawl: %w", err)
	}
	drv, err := multidrv.NewHTTPDriver(logger)
	if err != nil {
		return nil, fmt.Errorf("reactorcrawl: %w", err)
	}

	e := &Engine{
		loop:            loop,
		frontier:        frontier.New(),
		pool:            pool.New(totalConn, logger),
		driver:          drv,
		polls:           make(map[int]*reactor.Poll),
		showRequestInfo: true,
		requestLog:      os.Stdout,
		logger:          logger,
	}

	e.idler = reactor.NewCheck(loop, e.onCheck)
	e.delayTimer = reactor.NewTimer(loop, e.onDelayTimer)
	e.retryTimer = reactor.NewTimer(loop, e.onRetryTimer)

	drv.SetNumConnections(totalConn, hostConn)
	drv.SetMultiplex(true)
	drv.SetSocketChangeFunc(e.onSocketChange)
	drv.SetTimerChangeFunc(e.onTimerChange)

	e.pool.Propagate(func(h *rhandle.Handle) {
		h.SetBufferSize(bufferSize)
		if timeout > 0 {
			h.SetTimeout(timeout)
		}
	})

	return e, nil
}

// NewFromConfig builds an Engine from a loaded config.Config.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	e, err := New(cfg.Engine.TotalConnections, cfg.Engine.HostConnections, cfg.Engine.BufferSize, cfg.Engine.Timeout, logger)
	if err != nil {
		return nil, err
	}
	e.SetDelayExitMs(int(cfg.Engine.DelayExit / time.Millisecond))
	e.SetShowRequestInfo(cfg.Engine.ShowRequestInfo)
	e.SetUserAgent(cfg.Engine.UserAgent)
	e.SetVerify(cfg.Engine.VerifyTLS)
	e.SetFollowRedirects(cfg.Engine.FollowRedirects)
	e.SetMaxRedirections(cfg.Engine.MaxRedirects)
	e.SetMultiplexing(cfg.Engine.Multiplexing)
	e.pool.Propagate(func(h *rhandle.Handle) {
		h.SetMaxBodySize(cfg.Engine.MaxBodySize)
	})
	return e, nil
}

// --- reactor wiring -------------------------------------------------

func (e *Engine) onSocketChange(fd int, action multidrv.PollAction) {
	if action == multidrv.PollRemove {
		if p, ok := e.polls[fd]; ok {
			delete(e.polls, fd)
			p.Close(nil)
		}
		return
	}

	p, ok := e.polls[fd]
	if !ok {
		p = reactor.NewPoll(e.loop, fd, e.makePollCallback(fd))
		e.polls[fd] = p
	}

	var events reactor.FDEvent
	switch action {
	case multidrv.PollIn:
		events = reactor.EventReadable
	case multidrv.PollOut:
		events = reactor.EventWritable
	case multidrv.PollInOut:
		events = reactor.EventReadable | reactor.EventWritable
	}
	if err := p.Start(events); err != nil {
		e.logger.Warn("failed to arm poll watch", "fd", fd, "error", err)
	}
}

func (e *Engine) makePollCallback(fd int) func(status int, events reactor.FDEvent) {
	return func(status int, events reactor.FDEvent) {
		action := multidrv.ActionNone
		if status < 0 {
			action = multidrv.ActionErr
		} else {
			if events&reactor.EventReadable != 0 {
				action |= multidrv.ActionIn
			}
			if events&reactor.EventWritable != 0 {
				action |= multidrv.ActionOut
			}
		}
		if err := e.driver.SocketAction(fd, action); err != nil {
			e.logger.Warn("socket action failed", "fd", fd, "error", err)
		}
		e.drainMessages()
		if !e.idler.IsActive() && e.driver.Pending() == 0 {
			e.loop.Stop()
		}
	}
}

// onTimerChange mirrors HBscraper.hpp's timeout_function. HTTPDriver
// never actually calls this (see internal/multidrv doc comment), but
// the wiring is kept intact: a future Driver that needs a
// caller-driven retry clock has a ready-made path onto the reactor.
func (e *Engine) onTimerChange(timeoutMs int64) {
	if timeoutMs < 0 {
		e.retryTimer.Stop()
		return
	}
	if timeoutMs == 0 {
		timeoutMs = 1
	}
	e.retryTimer.Start(timeoutMs, 0)
}

func (e *Engine) onRetryTimer() {
	if err := e.driver.SocketAction(-1, multidrv.ActionNone); err != nil {
		e.logger.Warn("timer socket action failed", "error", err)
	}
	e.drainMessages()
}

// onCheck is the idler hook, mirroring HBscraper.hpp's initDispatchers
// idler callback: pull new URLs into the driver, report idle progress,
// and arm the shutdown grace timer once nothing remains to do.
func (e *Engine) onCheck() {
	e.processURLs()
	if e.onIdleFn != nil {
		e.onIdleFn(e.driver.Pending(), e)
	}
	if !e.frontier.HasURLs() && e.driver.Pending() == 0 && !e.delayTimer.IsActive() {
		e.delayTimer.Start(2000+int64(e.delayExit/time.Millisecond), 0)
	}
}

func (e *Engine) onDelayTimer() {
	if !e.frontier.HasURLs() && e.driver.Pending() == 0 {
		e.CloseProcessing()
	}
}

// processURLs pulls pending frontier entries into the driver as long
// as handles are available, mirroring Async::processURLs.
func (e *Engine) processURLs() {
	for e.frontier.HasURLs() && e.pool.Len() > 0 {
		h, err := e.pool.Acquire()
		if err != nil {
			break
		}
		entry := e.frontier.Pop()
		h.SetURL(entry.URL, entry.Depth)
		if err := e.driver.AddHandle(h); err != nil {
			e.pool.Release(h)
			break
		}
	}
}

// drainMessages mirrors Async::process_curl: drain every completed
// transfer, dispatch success/failure, and return the handle to the
// pool.
func (e *Engine) drainMessages() {
	for {
		msg := e.driver.InfoRead()
		if msg == nil {
			return
		}
		h := msg.Handle
		resp := h.Snapshot()
		_ = e.driver.RemoveHandle(h)

		if msg.Err != nil {
			e.processFailedRequest(resp, msg.Err)
		} else {
			e.processSuccessfulRequest(resp)
		}
		e.pool.Release(h)
	}
}

// processSuccessfulRequest mirrors
// Async::processSuccessfulRequest: a non-200 status is dropped
// silently (neither callback fires), matching the source's
// `if (response.responseCode != 200) return;` guard.
func (e *Engine) processSuccessfulRequest(resp rhandle.Response) {
	if resp.StatusCode != 200 {
		return
	}
	doc, err := htmldoc.Parse([]byte(resp.Body))
	if err != nil {
		perr := &ParseError{URL: resp.URL, Err: err}
		e.logger.Error("failed to parse document", "error", perr)
		return
	}
	if e.onSuccessFn != nil {
		e.onSuccessFn(newResponse(resp), e, doc)
	}
}

// processFailedRequest mirrors Async::processFailedRequest, including
// the fixed log line format.
func (e *Engine) processFailedRequest(resp rhandle.Response, err error) {
	fetchErr := &FetchError{URL: resp.URL, Err: err}
	if e.showRequestInfo && e.requestLog != nil {
		io.WriteString(e.requestLog, fetchErr.RequestLogLine()+"\n")
	}
	if e.onFailureFn != nil {
		e.onFailureFn(newResponse(resp), e)
	}
}

// --- public API -------------------------------------------------

// Run starts the idler and drives the reactor until CloseProcessing is
// called (directly, or via the shutdown grace timer). A panic inside a
// registered callback is recovered and routed to the exception
// callback if one is registered, mirroring Async::run's try/catch
// around loop.run().
func (e *Engine) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			rerr := fmt.Errorf("reactorcrawl: panic in event loop: %v", r)
			if e.onExceptionFn != nil {
				e.onExceptionFn(rerr, e)
				err = nil
				return
			}
			panic(r)
		}
	}()
	e.idler.Start()
	return e.loop.Run()
}

// CloseProcessing stops the idler, so no new URLs are dispatched, and
// makes Run return once no transfer is in flight: at the end of the
// current loop iteration if none is, otherwise after the last in-flight
// completion has been dispatched. Mirrors Async::closeProcessing.
func (e *Engine) CloseProcessing() {
	if e.idler.IsActive() {
		e.idler.Stop()
	}
	if e.driver.Pending() == 0 {
		e.loop.Stop()
	}
}

// ClearQueue empties the pending frontier without touching visited
// history. Mirrors Async::clearQueue.
func (e *Engine) ClearQueue() { e.frontier.Clear() }

// PendingURLsQueueSize mirrors Async::pendingUrlsQueueSize.
func (e *Engine) PendingURLsQueueSize() int { return e.frontier.PendingSize() }

// VisitedURLs mirrors Async::getVisitedUrls.
func (e *Engine) VisitedURLs() map[string]struct{} { return e.frontier.VisitedSet() }

// AddURL enqueues a URL at the given crawl depth. Mirrors Async::addURL.
func (e *Engine) AddURL(url string, depth uint) { e.frontier.Add(url, depth) }

// Seed enqueues a depth-0 URL and immediately attempts to dispatch it,
// mirroring Async::seed (which calls processURLs synchronously rather
// than waiting for the next idler tick).
func (e *Engine) Seed(url string) {
	e.frontier.Add(url, 0)
	e.processURLs()
}

// OnSuccess registers the 200-status callback. Mirrors Async::onSuccess.
func (e *Engine) OnSuccess(fn SuccessFunc) { e.onSuccessFn = fn }

// OnFailure registers the transport-failure callback. Mirrors
// Async::onFailure.
func (e *Engine) OnFailure(fn FailureFunc) { e.onFailureFn = fn }

// OnIdle registers the per-iteration idle callback. Mirrors
// Async::onIdle.
func (e *Engine) OnIdle(fn IdleFunc) { e.onIdleFn = fn }

// OnException registers the panic-recovery callback. Mirrors
// Async::onException.
func (e *Engine) OnException(fn ExceptionFunc) { e.onExceptionFn = fn }

// SetRequestLogStream redirects the fixed-format failure log line.
// Mirrors Async::setRequestLogStream (default std::cout).
func (e *Engine) SetRequestLogStream(w io.Writer) { e.requestLog = w }

// SetShowRequestInfo toggles the failure log line. Mirrors
// Async::setShowRequestInfo.
func (e *Engine) SetShowRequestInfo(val bool) { e.showRequestInfo = val }

// SetDelayExitMs adds ms to the fixed 2000ms grace period the engine
// waits, once idle, before actually stopping. Mirrors
// Async::setDelayExitMs.
func (e *Engine) SetDelayExitMs(ms int) { e.delayExit = time.Duration(ms) * time.Millisecond }

// --- bulk handle configuration (propagated to the pool) -------------

// SetMultiplexing mirrors Async::setMultiplexing.
func (e *Engine) SetMultiplexing(val bool) {
	e.driver.SetMultiplex(val)
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetMultiplexing(val) })
}

// SetUserAgent mirrors Async::setUserAgent.
func (e *Engine) SetUserAgent(ua string) {
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetUserAgent(ua) })
}

// SetMaxRedirections mirrors Async::setMaxRedirections.
func (e *Engine) SetMaxRedirections(n int) {
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetMaxRedirections(n) })
}

// SetFollowRedirects mirrors Async::setFollowRedirects.
func (e *Engine) SetFollowRedirects(follow bool) {
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetFollowRedirects(follow) })
}

// SetReferer mirrors Async::setReferer.
func (e *Engine) SetReferer(referer string) {
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetReferer(referer) })
}

// SetCookieFile mirrors Async::setCookieFile.
func (e *Engine) SetCookieFile(path string) {
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetCookieFile(path) })
}

// SetVerify mirrors Async::setVerify. Unlike the source (which has a
// known bug forwarding a hardcoded false instead of its verify
// parameter — see SPEC_FULL.md's resolved open questions), this
// forwards the caller's actual value.
func (e *Engine) SetVerify(verify bool) {
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetVerify(verify) })
}

// SetBasicAuth mirrors Async::setBasicAuth.
func (e *Engine) SetBasicAuth(user, pass string) {
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetBasicAuth(user, pass) })
}

// SetBearerToken mirrors Async::setBearerToken.
func (e *Engine) SetBearerToken(token string) {
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetBearerToken(token) })
}

// SetPostFields mirrors Async::setPostFields.
func (e *Engine) SetPostFields(fields string) {
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetPostFields(fields) })
}

// SetInterface mirrors Async::setInterface.
func (e *Engine) SetInterface(iface string) {
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetInterface(iface) })
}

// SetProxy mirrors Async::setProxy.
func (e *Engine) SetProxy(proxyURL string, port int) {
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetProxy(proxyURL, port) })
}

// SetHTTPVersion mirrors Async::setHttpVersion.
func (e *Engine) SetHTTPVersion(v HTTPVersion) {
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetHTTPVersion(v) })
}

// SetHeader adds one "Key: Value" header line to every pooled handle,
// mirroring Async::setHeader / CurlEasyHandle::addHeader.
func (e *Engine) SetHeader(raw string) {
	key, value, ok := strings.Cut(raw, ":")
	if !ok {
		e.logger.Warn("malformed header, expected \"Key: Value\"", "header", raw)
		return
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	e.pool.Propagate(func(h *rhandle.Handle) { h.AddHeader(key, value) })
}

// SetHeaders adds several "Key: Value" header lines, mirroring
// Async::setHeaders.
func (e *Engine) SetHeaders(raws []string) {
	for _, raw := range raws {
		e.SetHeader(raw)
	}
}

// ClearHeaders mirrors Async::clearHeaders.
func (e *Engine) ClearHeaders() {
	e.pool.Propagate(func(h *rhandle.Handle) { h.ClearHeaders() })
}

// ResetPool resets every pooled handle to construction defaults,
// mirroring Async::resetPool / Async::resetOptions (the source defines
// both names for the same operation; this consolidates them, see
// SPEC_FULL.md's resolved open questions).
func (e *Engine) ResetPool() {
	e.pool.Propagate(func(h *rhandle.Handle) { h.Reset() })
}

// ForceGetRequests mirrors Async::forceGetRequests.
func (e *Engine) ForceGetRequests(val bool) {
	if !val {
		return
	}
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetGet() })
}

// ForcePostRequests mirrors Async::forcePostRequests.
func (e *Engine) ForcePostRequests(val bool) {
	if !val {
		return
	}
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetPost() })
}

// SetPoolBufferSize mirrors Async::setPoolBufferSize.
func (e *Engine) SetPoolBufferSize(sz int) {
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetBufferSize(sz) })
}

// SetConnectionTimeout mirrors Async::setConnectionTimeout.
func (e *Engine) SetConnectionTimeout(d time.Duration) {
	e.pool.Propagate(func(h *rhandle.Handle) { h.SetTimeout(d) })
}

// Close releases the driver and reactor. Call after Run returns.
func (e *Engine) Close() error {
	if err := e.driver.Close(); err != nil {
		e.logger.Warn("driver close failed", "error", err)
	}
	return e.loop.Close()
}
