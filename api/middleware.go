package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// DecompressRequests lets clients ship their JSON payloads gzip-encoded.
// The body is swapped for an inflating reader before any handler runs; a
// Content-Encoding that promises gzip but delivers something else is a 400.
func DecompressRequests() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := inflateRequest(c.Request()); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}
			return next(c)
		}
	}
}

func inflateRequest(req *http.Request) error {
	if !declaresGzip(req.Header.Get(echo.HeaderContentEncoding)) {
		return nil
	}
	raw := req.Body
	gr, err := gzip.NewReader(raw)
	if err != nil {
		_ = raw.Close()
		return err
	}
	req.Body = &inflatedBody{Reader: gr, raw: raw}
	// Length of the inflated stream is unknown until read.
	req.ContentLength = -1
	req.Header.Del(echo.HeaderContentEncoding)
	req.Header.Del(echo.HeaderContentLength)
	return nil
}

func declaresGzip(header string) bool {
	for _, enc := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

// inflatedBody closes the gzip reader and the network body behind it.
type inflatedBody struct {
	*gzip.Reader
	raw io.Closer
}

func (b *inflatedBody) Close() error {
	err := b.Reader.Close()
	if cerr := b.raw.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
