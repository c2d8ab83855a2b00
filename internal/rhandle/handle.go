// Package rhandle implements the Request Handle: the per-transfer unit
// of work a caller configures once and the engine performs repeatedly,
// described in spec.md §1 and §4.3. It is grounded on
// original_source/include/net/CurlEasyHandle.hpp, whose curl_easy
// option set it reproduces as Go struct fields and setter methods
// instead of an opaque C handle.
package rhandle

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HTTPVersion selects the protocol a Handle is fetched over, mirroring
// CurlEasyHandle.hpp's HTTP enum (CURL_HTTP_VERSION_*).
type HTTPVersion int

const (
	HTTP1 HTTPVersion = iota
	HTTP1_1
	HTTP2
	HTTP3
)

func (v HTTPVersion) String() string {
	switch v {
	case HTTP1:
		return "HTTP/1.0"
	case HTTP1_1:
		return "HTTP/1.1"
	case HTTP2:
		return "HTTP/2"
	case HTTP3:
		return "HTTP/3"
	default:
		return "Unknown"
	}
}

// transferInfo is populated by the multi driver once a transfer
// completes, mirroring the fields curl_easy_getinfo exposes and
// CurlEasyHandle::Response collects in the source.
type transferInfo struct {
	contentType   string
	effectiveURL  string
	httpMethod    string
	httpVersion   HTTPVersion
	totalTime     time.Duration
	bytesReceived int64
	bytesSent     int64
	headerSize    int64
	requestSize   int64
	statusCode    int
	downloadSpeed float64
	uploadSpeed   float64
}

// Handle is one configured request plus its in-flight state. It is the
// Go analogue of CurlEasyHandle: a long-lived, reusable object a caller
// configures once (Set* methods) and the engine performs many times
// across its lifetime (SetURL between fetches; configuration is kept).
//
// Identity, not a raw pointer: the source stashes `this` in
// CURLOPT_PRIVATE so the multi driver's completion callback can recover
// the originating handle. Go has no dangling-pointer risk here, but the
// multi driver still needs a stable key to associate in-flight
// transfers with the handle that owns them across goroutine boundaries
// — ID serves that role, generated once at construction.
type Handle struct {
	ID uuid.UUID

	url    string
	depth  uint
	method string

	header      http.Header
	body        bytes.Buffer
	maxBodySize int64

	httpVersion     HTTPVersion
	connectTimeout  time.Duration
	timeout         time.Duration
	bufferSize      int
	followRedirects bool
	maxRedirects    int
	acceptEncoding  string
	cookieFile      string
	userAgent       string
	verifyTLS       bool
	multiplex       bool
	referer         string
	interfaceName   string
	proxyURL        string
	proxyPort       int
	basicUser       string
	basicPass       string
	bearerToken     string
	postFields      string

	info transferInfo

	lastStatusCode  int
	lastContentType string
	lastHeaderSize  int64

	logger *slog.Logger
}

const defaultBufferSize = 16 * 1024

// New creates a Handle with the same defaults
// CurlEasyHandle::initialiseInitialOptions applies: TCP_NODELAY and
// TCP_KEEPALIVE on, a 2 MiB body cap, a 6s connect timeout, no Expect:
// 100-continue delay, auto-referer, HTTP/1.1, accept-encoding
// advertised but decompression handled by the driver, one redirect
// followed by default, TLS verification off, and a fixed User-Agent.
// The address family is not restricted: connections are not limited
// to IPv4.
func New(logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handle{
		ID:              uuid.New(),
		method:          http.MethodGet,
		header:          make(http.Header),
		maxBodySize:     2 * 1024 * 1024,
		httpVersion:     HTTP1_1,
		connectTimeout:  6 * time.Second,
		timeout:         0,
		bufferSize:      defaultBufferSize,
		followRedirects: true,
		maxRedirects:    1,
		acceptEncoding:  "gzip, deflate, br",
		userAgent:       "Scraper / 1.1",
		verifyTLS:       false,
		logger:          logger.With("component", "rhandle"),
	}
	return h
}

func (h *Handle) logFailedSet(opt string, err error) {
	if err != nil {
		h.logger.Warn("failed to set option", "option", opt, "error", err)
	}
}

// SetURL points the handle at a new URL and depth, clearing any body
// left over from a previous fetch. Mirrors CurlEasyHandle::setUrl.
func (h *Handle) SetURL(url string, depth uint) {
	h.body.Reset()
	h.url = url
	h.depth = depth
}

// URL returns the currently configured URL.
func (h *Handle) URL() string { return h.url }

// Depth returns the crawl depth this handle was last set to.
func (h *Handle) Depth() uint { return h.depth }

// SetDepth updates the depth without touching the URL or body,
// mirroring CurlEasyHandle::setDepth.
func (h *Handle) SetDepth(d uint) { h.depth = d }

// SetGet configures a GET request, mirroring CurlEasyHandle::setGet.
func (h *Handle) SetGet() { h.method = http.MethodGet }

// SetPost configures a POST request, mirroring CurlEasyHandle::setPost.
func (h *Handle) SetPost() { h.method = http.MethodPost }

// SetPostFields sets the request body sent with a POST, mirroring
// CurlEasyHandle::setPostFields.
func (h *Handle) SetPostFields(fields string) { h.postFields = fields }

// AddHeader appends one "Key: Value" header line, tolerating malformed
// input the way CurlEasyHandle::addHeader logs and continues on a
// curl_slist_append failure.
func (h *Handle) AddHeader(key, value string) {
	if key == "" {
		h.logFailedSet("header", fmt.Errorf("empty header key"))
		return
	}
	h.header.Add(key, value)
}

// AddHeaders appends several headers in one call, mirroring
// CurlEasyHandle::addHeaders.
func (h *Handle) AddHeaders(headers map[string]string) {
	for k, v := range headers {
		h.AddHeader(k, v)
	}
}

// ClearHeaders removes every header previously added, mirroring
// CurlEasyHandle::clearHeaders.
func (h *Handle) ClearHeaders() { h.header = make(http.Header) }

// SetHTTPVersion selects the protocol used to perform the fetch,
// mirroring CurlEasyHandle::setHTTPVersion.
func (h *Handle) SetHTTPVersion(v HTTPVersion) { h.httpVersion = v }

// SetBufferSize sets the hint used for the response body's initial
// buffer capacity, mirroring CurlEasyHandle::setBufferSize.
func (h *Handle) SetBufferSize(sz int) {
	h.bufferSize = sz
	h.body.Grow(sz)
}

// SetAcceptEncoding configures the Accept-Encoding header sent with the
// request, mirroring CurlEasyHandle::setAcceptEncoding.
func (h *Handle) SetAcceptEncoding(enc string) { h.acceptEncoding = enc }

// SetTimeout sets the overall per-transfer timeout, mirroring
// CurlEasyHandle::setTimeoutMs.
func (h *Handle) SetTimeout(d time.Duration) { h.timeout = d }

// SetConnectTimeout sets the connect timeout, mirroring
// CurlEasyHandle's CURLOPT_CONNECTTIMEOUT_MS default. HTTPDriver does
// not apply it to the connect phase alone: it adds it to Timeout to
// form one deadline for the whole transfer.
func (h *Handle) SetConnectTimeout(d time.Duration) { h.connectTimeout = d }

// SetFollowRedirects toggles redirect following, mirroring
// CurlEasyHandle::setFollowRedirects.
func (h *Handle) SetFollowRedirects(follow bool) { h.followRedirects = follow }

// SetMaxRedirections caps the number of redirects followed, mirroring
// CurlEasyHandle::setMaxRedirections.
func (h *Handle) SetMaxRedirections(n int) { h.maxRedirects = n }

// SetReferer sets a fixed Referer header, mirroring
// CurlEasyHandle::setReferer. Auto-referer (following the previous URL)
// is the default per initialiseInitialOptions; an explicit SetReferer
// overrides it on every subsequent fetch until it is changed or the
// handle is Reset.
func (h *Handle) SetReferer(referer string) { h.referer = referer }

// SetCookieFile mirrors CurlEasyHandle::setCookieFile. The path is
// recorded and returned by CookieFile; HTTPDriver does not read it and
// uses no cookie jar, so no cookies are stored or sent between fetches.
func (h *Handle) SetCookieFile(path string) { h.cookieFile = path }

// SetUserAgent overrides the default User-Agent, mirroring
// CurlEasyHandle::setUserAgent.
func (h *Handle) SetUserAgent(ua string) { h.userAgent = ua }

// SetVerify toggles TLS certificate verification, mirroring
// CurlEasyHandle::setVerify. Off by default to match the source, not
// because that's a recommended setting for new code.
func (h *Handle) SetVerify(verify bool) { h.verifyTLS = verify }

// SetMultiplexing records the HTTP/2 stream multiplexing preference
// (CURLOPT_PIPEWAIT in the source), mirroring
// CurlEasyHandle::setMultiplexing. HTTPDriver does not read it; its
// HTTP/2 and HTTP/3 transports always multiplex.
func (h *Handle) SetMultiplexing(enable bool) { h.multiplex = enable }

// SetInterface records a local interface or address for outgoing
// connections, mirroring CurlEasyHandle::setInterface. HTTPDriver does
// not read it; connections are not bound to it.
func (h *Handle) SetInterface(iface string) { h.interfaceName = iface }

// SetProxy records an HTTP proxy URL and port, mirroring
// CurlEasyHandle::setProxy. HTTPDriver does not read them; transfers
// do not go through the proxy.
func (h *Handle) SetProxy(proxyURL string, port int) {
	h.proxyURL = proxyURL
	h.proxyPort = port
}

// SetBasicAuth configures HTTP basic authentication, mirroring
// CurlEasyHandle::setBasicAuth.
func (h *Handle) SetBasicAuth(user, pass string) {
	h.basicUser = user
	h.basicPass = pass
}

// SetBearerToken configures an OAuth2 bearer token, mirroring
// CurlEasyHandle::setBearerToken.
func (h *Handle) SetBearerToken(token string) { h.bearerToken = token }

// MaxBodySize returns the configured response body cap.
func (h *Handle) MaxBodySize() int64 { return h.maxBodySize }

// SetMaxBodySize overrides the 2 MiB default body cap (CURLOPT_MAXFILESIZE
// in the source).
func (h *Handle) SetMaxBodySize(n int64) { h.maxBodySize = n }

// Buffer returns the body buffer the driver writes into while a
// transfer is in flight, mirroring the source's write_callback target.
func (h *Handle) Buffer() *bytes.Buffer { return &h.body }

// Reset clears per-transfer state and restores construction defaults,
// mirroring CurlEasyHandle::reset (curl_easy_reset followed by
// re-applying initialiseInitialOptions).
func (h *Handle) Reset() {
	id := h.ID
	logger := h.logger
	*h = Handle{}
	fresh := New(logger)
	*h = *fresh
	h.ID = id
}

// snapshot builds the Response the engine hands to a completion
// callback, mirroring CurlEasyHandle::response / CurlEasyHandle::Response.
func (h *Handle) snapshot() Response {
	return Response{
		ContentType: h.info.contentType,
		HTTPMethod:  h.info.httpMethod,
		URL:         h.info.effectiveURL,
		HTTPVersion: h.info.httpVersion,
		TotalTime:   h.info.totalTime,
		BytesRecv:   h.info.bytesReceived,
		BytesSent:   h.info.bytesSent,
		HeaderSize:  h.info.headerSize,
		RequestSize:   h.info.requestSize,
		StatusCode:    h.info.statusCode,
		DownloadSpeed: h.info.downloadSpeed,
		UploadSpeed:   h.info.uploadSpeed,
		Depth:         h.depth,
		Body:          h.body.String(),
	}
}

// Response is the spec §1 "Response" value: a snapshot of everything
// learned about a completed transfer, independent of the Handle that
// produced it.
type Response struct {
	ContentType string
	HTTPMethod  string
	URL         string
	HTTPVersion HTTPVersion
	TotalTime   time.Duration
	BytesRecv   int64
	BytesSent   int64
	HeaderSize  int64
	RequestSize int64
	StatusCode  int

	// DownloadSpeed and UploadSpeed are bytes/second over the
	// transfer's TotalTime, mirroring CurlEasyHandle.hpp's
	// bytesPerSecondR/bytesPerSecondS (CURLINFO_SPEED_DOWNLOAD_T /
	// CURLINFO_SPEED_UPLOAD_T). Zero when TotalTime is zero.
	DownloadSpeed float64
	UploadSpeed   float64

	Depth uint
	Body  string
}

// Snapshot exposes snapshot to callers outside the package (the multi
// driver, on transfer completion).
func (h *Handle) Snapshot() Response { return h.snapshot() }

// SetInfo lets the multi driver record completion metadata onto the
// handle before Snapshot is called. Unexported fields keep engine code
// from mutating info directly; only the driver package is expected to
// call this, immediately after a transfer finishes. DownloadSpeed and
// UploadSpeed are derived here (bytes/second over total) rather than
// asking every driver to compute them, mirroring
// CurlEasyHandle::response reading CURLINFO_SPEED_DOWNLOAD_T/
// CURLINFO_SPEED_UPLOAD_T straight off the easy handle.
func (h *Handle) SetInfo(contentType, effectiveURL, httpMethod string, version HTTPVersion, total time.Duration, bytesRecv, bytesSent, headerSize, requestSize int64, statusCode int) {
	var downloadSpeed, uploadSpeed float64
	if secs := total.Seconds(); secs > 0 {
		downloadSpeed = float64(bytesRecv) / secs
		uploadSpeed = float64(bytesSent) / secs
	}
	h.info = transferInfo{
		contentType:   contentType,
		effectiveURL:  effectiveURL,
		httpMethod:    httpMethod,
		httpVersion:   version,
		totalTime:     total,
		bytesReceived: bytesRecv,
		bytesSent:     bytesSent,
		headerSize:    headerSize,
		requestSize:   requestSize,
		statusCode:    statusCode,
		downloadSpeed: downloadSpeed,
		uploadSpeed:   uploadSpeed,
	}
}

// RecordResponseMeta lets the multi driver stash the status line and
// header metadata as soon as a response arrives, before the body has
// finished streaming into Buffer. SetInfo (called once the transfer
// fully completes) reads these back into the final transferInfo.
func (h *Handle) RecordResponseMeta(statusCode int, contentType string, header http.Header) {
	h.lastStatusCode = statusCode
	h.lastContentType = contentType
	size := 0
	for k, vs := range header {
		for _, v := range vs {
			size += len(k) + len(v) + 4
		}
	}
	h.lastHeaderSize = int64(size)
}

// LastStatusCode returns the status code recorded by RecordResponseMeta.
func (h *Handle) LastStatusCode() int { return h.lastStatusCode }

// LastContentType returns the content type recorded by RecordResponseMeta.
func (h *Handle) LastContentType() string { return h.lastContentType }

// LastHeaderSize returns the approximate header byte size recorded by
// RecordResponseMeta.
func (h *Handle) LastHeaderSize() int64 { return h.lastHeaderSize }

// Header returns the header set that will be sent with the next fetch.
func (h *Handle) Header() http.Header { return h.header }

// Method returns the configured HTTP method.
func (h *Handle) Method() string { return h.method }

// PostFields returns the configured POST body, if any.
func (h *Handle) PostFields() string { return h.postFields }

// HTTPVersionWanted returns the configured protocol version.
func (h *Handle) HTTPVersionWanted() HTTPVersion { return h.httpVersion }

// ConnectTimeout returns the configured connect-phase timeout.
func (h *Handle) ConnectTimeout() time.Duration { return h.connectTimeout }

// Timeout returns the configured overall transfer timeout. HTTPDriver
// bounds a transfer by ConnectTimeout()+Timeout(), so with a zero
// Timeout the connect timeout alone limits the whole transfer; there
// is no deadline only when ConnectTimeout is also zero.
func (h *Handle) Timeout() time.Duration { return h.timeout }

// FollowRedirects reports whether redirects should be followed.
func (h *Handle) FollowRedirects() bool { return h.followRedirects }

// MaxRedirections returns the configured redirect cap.
func (h *Handle) MaxRedirections() int { return h.maxRedirects }

// AcceptEncoding returns the configured Accept-Encoding value.
func (h *Handle) AcceptEncoding() string { return h.acceptEncoding }

// UserAgent returns the configured User-Agent value.
func (h *Handle) UserAgent() string { return h.userAgent }

// Referer returns the configured Referer override, if any.
func (h *Handle) Referer() string { return h.referer }

// VerifyTLS reports whether TLS certificates should be verified.
func (h *Handle) VerifyTLS() bool { return h.verifyTLS }

// Multiplexing reports whether HTTP/2 stream multiplexing is requested.
func (h *Handle) Multiplexing() bool { return h.multiplex }

// Proxy returns the configured proxy URL and port, if any.
func (h *Handle) Proxy() (string, int) { return h.proxyURL, h.proxyPort }

// BasicAuth returns the configured basic-auth credentials, if any.
func (h *Handle) BasicAuth() (string, string) { return h.basicUser, h.basicPass }

// BearerToken returns the configured bearer token, if any.
func (h *Handle) BearerToken() string { return h.bearerToken }

// Interface returns the configured local interface/address bind, if any.
func (h *Handle) Interface() string { return h.interfaceName }

// CookieFile returns the configured cookie file path.
func (h *Handle) CookieFile() string { return h.cookieFile }
