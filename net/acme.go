// Package net provides the HTTP transport used to talk to ACME servers.
package net

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	version       = "0.0.1"
	userAgentBase = "cpu.acmeshell"
	locale        = "en-us"

	// DefaultTimeout bounds a single exchange when Config.Timeout is zero.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxBodySize bounds the response bytes read from the server when
	// Config.MaxBodySize is zero.
	DefaultMaxBodySize = 10 << 20
)

// Config controls how an ACMENet talks to the ACME server.
type Config struct {
	// An optional file path to one or more PEM encoded CA certificates to be used
	// as trust roots for HTTPS requests. If empty the system roots are used.
	CABundlePath string
	// Per-exchange timeout. Zero means DefaultTimeout; negative disables it.
	Timeout time.Duration
	// Optional User-Agent prefix. The acmeshell version and platform are always
	// appended.
	UserAgent string
	// If positive, the maximum number of requests per second sent to the server.
	RequestsPerSecond float64
	// Maximum response body size. Zero means DefaultMaxBodySize.
	MaxBodySize int64
	// Capture httputil dumps of every request and response.
	DumpExchanges bool
	// Optional HTTP client. If set, CABundlePath and Timeout are ignored.
	HTTPClient *http.Client
}

// normalize validates a Config and fills in defaults.
func (conf *Config) normalize() error {
	conf.CABundlePath = strings.TrimSpace(conf.CABundlePath)
	conf.UserAgent = strings.TrimSpace(conf.UserAgent)

	if conf.Timeout == 0 {
		conf.Timeout = DefaultTimeout
	}
	if conf.MaxBodySize == 0 {
		conf.MaxBodySize = DefaultMaxBodySize
	}
	if conf.MaxBodySize < 0 {
		return fmt.Errorf("MaxBodySize must not be negative")
	}
	if conf.RequestsPerSecond < 0 {
		return fmt.Errorf("RequestsPerSecond must not be negative")
	}
	return nil
}

// ACMENet performs HTTP exchanges with an ACME server. It is safe for
// concurrent use.
type ACMENet struct {
	httpClient  *http.Client
	userAgent   string
	maxBodySize int64
	dump        bool
	limiter     *rate.Limiter
}

// New creates an ACMENet from the given Config.
func New(conf Config) (*ACMENet, error) {
	if err := conf.normalize(); err != nil {
		return nil, err
	}

	httpClient := conf.HTTPClient
	if httpClient == nil {
		var caBundle *x509.CertPool
		if conf.CABundlePath != "" {
			pemBundle, err := os.ReadFile(conf.CABundlePath)
			if err != nil {
				return nil, err
			}

			caBundle = x509.NewCertPool()
			if !caBundle.AppendCertsFromPEM(pemBundle) {
				return nil, fmt.Errorf("no PEM certificates found in %q", conf.CABundlePath)
			}
		}

		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{
					RootCAs:    caBundle,
					MinVersion: tls.VersionTLS12,
				},
			},
		}
		if conf.Timeout > 0 {
			httpClient.Timeout = conf.Timeout
		}
	}

	ua := fmt.Sprintf("%s %s (%s; %s)",
		userAgentBase, version, runtime.GOOS, runtime.GOARCH)
	if conf.UserAgent != "" {
		ua = conf.UserAgent + " " + ua
	}

	var limiter *rate.Limiter
	if conf.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(conf.RequestsPerSecond), 1)
	}

	return &ACMENet{
		httpClient:  httpClient,
		userAgent:   ua,
		maxBodySize: conf.MaxBodySize,
		dump:        conf.DumpExchanges,
		limiter:     limiter,
	}, nil
}

// NetResponse holds the results from calling Do with an HTTP Request.
type NetResponse struct {
	// The HTTP Response object from making the request. Its Body has already
	// been read and closed.
	Response *http.Response
	// The response body.
	RespBody []byte
	// The response dumped by httputil to a printable form, if enabled.
	RespDump []byte
	// The request dumped by httputil to a printable form, if enabled.
	ReqDump []byte
}

// ErrBodyTooLarge is returned by Do when a response body exceeds the
// configured maximum size.
var ErrBodyTooLarge = errors.New("response body exceeds maximum size")

// Do performs an HTTP request, returning a pointer to a NetResponse instance or
// an error. User-Agent and Accept-Language headers are automatically added to
// the request. The body of the HTTP Response is read into the NetResponse and
// closed before Do returns, on every path. The request's context governs
// cancellation, including any wait imposed by RequestsPerSecond.
//
// If the response headers arrived but the body could not be read, Do returns
// both the error and a NetResponse with only Response set.
func (c *ACMENet) Do(req *http.Request) (*NetResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", locale)

	var reqDump []byte
	if c.dump {
		var err error
		reqDump, err = httputil.DumpRequestOut(req, true)
		if err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		exchangesTotal.WithLabelValues(req.Method, "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	exchangeDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	exchangesTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()

	// From here on the status and headers are known. Failures still return
	// them, without a body.
	headersOnly := &NetResponse{Response: resp, ReqDump: reqDump}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return headersOnly, err
	}
	if int64(len(respBody)) > c.maxBodySize {
		return headersOnly, ErrBodyTooLarge
	}

	var respDump []byte
	if c.dump {
		respDump, err = httputil.DumpResponse(resp, false)
		if err != nil {
			return headersOnly, err
		}
		respDump = append(respDump, respBody...)
	}

	return &NetResponse{
		Response: resp,
		RespBody: respBody,
		RespDump: respDump,
		ReqDump:  reqDump,
	}, nil
}
