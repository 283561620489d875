// Package device talks to Alcatel-Lucent Enterprise AOS switches over
// their embedded HTTPS CLI endpoint and over SSH. The HTTPS endpoint
// takes one CLI command per request and returns a JSON envelope; a
// session cookie obtained from the auth domain must accompany every
// command request.
package device

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/TitouanDH/BLab/pkg/metrics"
	"github.com/TitouanDH/BLab/pkg/util"
)

const (
	acceptAOSJSON = "application/vnd.alcatellucentaos+json; version=1.0"

	authAttempts = 3
	authInterval = time.Second
)

// Gateway executes CLI commands on AOS devices over HTTPS. Sessions
// are cached per device address and re-established transparently when
// the device reports an expired login. Safe for concurrent use.
type Gateway struct {
	client   *http.Client
	username string
	password string

	mu      sync.Mutex
	cookies map[string]string
}

// NewGateway returns a gateway using the given device credentials.
// Lab switches present self-signed certificates, so server
// verification is disabled.
func NewGateway(username, password string, timeout time.Duration) *Gateway {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		username: username,
		password: password,
		cookies:  make(map[string]string),
	}
}

// Execute runs one CLI command on the device at addr and returns its
// output. An expired session is renewed once before giving up.
func (g *Gateway) Execute(ctx context.Context, addr, cmd string) (out string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveDeviceCommand(addr, start, err) }()

	cookie := g.cookie(addr)
	if cookie == "" {
		var err error
		if cookie, err = g.authenticate(ctx, addr); err != nil {
			return "", err
		}
	}

	out, expired, err := g.execute(ctx, addr, cmd, cookie)
	if err != nil {
		return "", err
	}
	if expired {
		if cookie, err = g.authenticate(ctx, addr); err != nil {
			return "", err
		}
		out, expired, err = g.execute(ctx, addr, cmd, cookie)
		if err != nil {
			return "", err
		}
		if expired {
			return "", newError(addr, cmd, "session rejected after re-authentication", ErrAuthFailed)
		}
	}
	return out, nil
}

func (g *Gateway) execute(ctx context.Context, addr, cmd, cookie string) (out string, expired bool, err error) {
	u := fmt.Sprintf("%s?domain=cli&cmd=%s", baseURL(addr), url.QueryEscape(cmd))
	body, err := g.request(ctx, addr, u, cookie)
	if err != nil {
		return "", false, &Error{Addr: addr, Command: cmd, Detail: err.Error(), Kind: ErrUnreachable}
	}

	var envelope struct {
		Result struct {
			Error  string `json:"error"`
			Output string `json:"output"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", false, newError(addr, cmd, "malformed response: "+err.Error(), ErrCommandRejected)
	}
	if strings.Contains(envelope.Result.Error, "You must login first") {
		return "", true, nil
	}
	if envelope.Result.Error != "" {
		return "", false, newError(addr, cmd, envelope.Result.Error, ErrCommandRejected)
	}
	return envelope.Result.Output, false, nil
}

// authenticate logs in to the device and caches the session cookie.
// Transient failures are retried a few times since switches drop auth
// requests while busy applying configuration.
func (g *Gateway) authenticate(ctx context.Context, addr string) (string, error) {
	u := fmt.Sprintf("%s?domain=auth&username=%s&password=%s",
		baseURL(addr), url.QueryEscape(g.username), url.QueryEscape(g.password))

	var lastErr error
	for attempt := 1; attempt <= authAttempts; attempt++ {
		cookie, err := g.login(ctx, addr, u)
		if err == nil {
			g.mu.Lock()
			g.cookies[addr] = cookie
			g.mu.Unlock()
			return cookie, nil
		}
		lastErr = err
		util.WithSwitch(addr).WithField("attempt", attempt).Debugf("authentication failed: %v", err)

		select {
		case <-ctx.Done():
			return "", newError(addr, "", ctx.Err().Error(), ErrUnreachable)
		case <-time.After(authInterval):
		}
	}
	return "", lastErr
}

func (g *Gateway) login(ctx context.Context, addr, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", newError(addr, "", err.Error(), ErrUnreachable)
	}
	req.Header.Set("Accept", acceptAOSJSON)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", newError(addr, "", err.Error(), ErrUnreachable)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", newError(addr, "", resp.Status, ErrAuthFailed)
	}
	setCookie := resp.Header.Get("Set-Cookie")
	if setCookie == "" {
		return "", newError(addr, "", "no session cookie in auth response", ErrAuthFailed)
	}
	// Only the first name=value pair matters; the rest are attributes.
	cookie, _, _ := strings.Cut(setCookie, ";")
	return strings.TrimSpace(cookie), nil
}

func (g *Gateway) request(ctx context.Context, addr, u, cookie string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", acceptAOSJSON)
	req.Header.Set("Cookie", cookie)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return body, nil
}

func (g *Gateway) cookie(addr string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cookies[addr]
}

// baseURL leaves addresses that already carry a scheme untouched so
// tests can point the gateway at an httptest server.
func baseURL(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "https://" + addr
}
