package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fold-ecosystemics/espstream/internal/utils"
)

// Config holds what is needed to establish the mutual-TLS session with
// one device.
type Config struct {
	BaseURL  string // e.g. "https://esp-streamer01.local:443"
	CAPath   string // CA bundle the device certificate chains to
	CertPath string // client certificate presented to the device
	KeyPath  string // client private key
	// Timeout bounds waiting for the response headers. Body reads are
	// not bounded; streams run for as long as the device keeps sending.
	Timeout   time.Duration
	KATimeout time.Duration
}

// Session is an authenticated HTTPS session with one device. Callers
// must Close it when done.
type Session struct {
	HTTP    *http.Client
	BaseURL string
}

// NewSession loads the CA bundle and client keypair and builds the
// HTTPS client around them.
func NewSession(cfg Config) (*Session, error) {
	log := utils.GetLogger("session")
	caPEM, err := os.ReadFile(cfg.CAPath)
	if err != nil {
		return nil, fmt.Errorf("error reading CA certificate: %v", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no certificates found in %s", cfg.CAPath)
	}
	keypair, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("error loading client keypair: %v", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if cfg.KATimeout == 0 {
		cfg.KATimeout = 90 * time.Second
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			RootCAs:      pool,
			Certificates: []tls.Certificate{keypair},
		},
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       cfg.KATimeout,
		DisableCompression:    true,
	}
	log.Debug().Str("baseURL", cfg.BaseURL).Msg("Session established")
	// No http.Client.Timeout: it would cap the whole body read and cut
	// off long multipart streams mid-flight.
	return &Session{
		HTTP:    &http.Client{Transport: transport},
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// Fetch issues the streaming GET for endpoint. Query parameters are
// passed through untouched; any filtering they imply is the server's
// responsibility. The caller owns the response body.
func (s *Session) Fetch(ctx context.Context, endpoint string, params map[string]string) (*http.Response, error) {
	url := s.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating GET request: %v", err)
	}
	if len(params) > 0 {
		q := req.URL.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error executing GET request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return resp, nil
}

// Close releases connections held by the session.
func (s *Session) Close() {
	s.HTTP.CloseIdleConnections()
}
