package reactorcrawl

import (
	"time"

	"github.com/dcrichton/reactorcrawl/internal/htmldoc"
	"github.com/dcrichton/reactorcrawl/internal/rhandle"
)

// HTTPVersion identifies the protocol a transfer completed over. An
// alias of rhandle.HTTPVersion so callers never need to import the
// internal package.
type HTTPVersion = rhandle.HTTPVersion

const (
	HTTP1   = rhandle.HTTP1
	HTTP1_1 = rhandle.HTTP1_1
	HTTP2   = rhandle.HTTP2
	HTTP3   = rhandle.HTTP3
)

// Response is the public snapshot of one completed transfer, handed to
// success and failure callbacks. Grounded on
// original_source/include/net/CurlEasyHandle.hpp's Response struct.
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

	// DownloadSpeed and UploadSpeed are bytes/second over TotalTime,
	// mirroring CurlEasyHandle.hpp's bytesPerSecondR/bytesPerSecondS.
	DownloadSpeed float64
	UploadSpeed   float64

	Depth uint
	Body  string
}

func newResponse(r rhandle.Response) Response {
	return Response{
		ContentType:   r.ContentType,
		HTTPMethod:    r.HTTPMethod,
		URL:           r.URL,
		HTTPVersion:   r.HTTPVersion,
		TotalTime:     r.TotalTime,
		BytesRecv:     r.BytesRecv,
		BytesSent:     r.BytesSent,
		HeaderSize:    r.HeaderSize,
		RequestSize:   r.RequestSize,
		StatusCode:    r.StatusCode,
		DownloadSpeed: r.DownloadSpeed,
		UploadSpeed:   r.UploadSpeed,
		Depth:         r.Depth,
		Body:          r.Body,
	}
}

// Document is the public parsed-HTML handle passed to success
// callbacks, re-exporting internal/htmldoc.Document so callers never
// import an internal package.
type Document = htmldoc.Document
