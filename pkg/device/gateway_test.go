package device

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/TitouanDH/BLab/pkg/metrics"
)

// fakeAOS mimics the AOS embedded web CLI: an auth domain that hands
// out session cookies and a cli domain that answers JSON envelopes.
type fakeAOS struct {
	t        *testing.T
	session  int
	commands []string

	// rejectWith, when set, is returned as the envelope error.
	rejectWith string
	// expireAfter forces "You must login first" for cookies older than
	// the current session, exercising re-authentication.
	expireSessions bool
}

func (f *fakeAOS) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("domain") {
		case "auth":
			if r.URL.Query().Get("username") != "admin" || r.URL.Query().Get("password") != "switch" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			f.session++
			http.SetCookie(w, &http.Cookie{Name: "wv_sess", Value: fmt.Sprintf("s%d", f.session), Path: "/"})
			fmt.Fprint(w, `{"result":{"error":"","output":""}}`)
		case "cli":
			cookie, err := r.Cookie("wv_sess")
			stale := err != nil || (f.expireSessions && cookie.Value != fmt.Sprintf("s%d", f.session))
			if stale {
				fmt.Fprint(w, `{"result":{"error":"You must login first","output":""}}`)
				return
			}
			cmd := r.URL.Query().Get("cmd")
			f.commands = append(f.commands, cmd)
			if f.rejectWith != "" {
				fmt.Fprintf(w, `{"result":{"error":%q,"output":""}}`, f.rejectWith)
				return
			}
			fmt.Fprintf(w, `{"result":{"error":"","output":"ran %s"}}`, cmd)
		default:
			f.t.Errorf("unexpected domain in %s", r.URL)
			w.WriteHeader(http.StatusBadRequest)
		}
	}
}

func newTestGateway(t *testing.T) (*Gateway, *fakeAOS, string) {
	t.Helper()
	fake := &fakeAOS{t: t}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return NewGateway("admin", "switch", 5*time.Second), fake, srv.URL
}

func TestExecute(t *testing.T) {
	gw, fake, addr := newTestGateway(t)

	out, err := gw.Execute(context.Background(), addr, "show system")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "ran show system" {
		t.Errorf("unexpected output %q", out)
	}
	if len(fake.commands) != 1 || fake.commands[0] != "show system" {
		t.Errorf("device saw commands %v", fake.commands)
	}
}

func TestExecuteReusesSession(t *testing.T) {
	gw, fake, addr := newTestGateway(t)

	for i := 0; i < 3; i++ {
		if _, err := gw.Execute(context.Background(), addr, "show vlan"); err != nil {
			t.Fatalf("Execute %d failed: %v", i, err)
		}
	}
	if fake.session != 1 {
		t.Errorf("expected a single login, device saw %d", fake.session)
	}
}

func TestExecuteReauthenticatesOnExpiredSession(t *testing.T) {
	gw, fake, addr := newTestGateway(t)
	fake.expireSessions = true

	if _, err := gw.Execute(context.Background(), addr, "show vlan"); err != nil {
		t.Fatalf("initial Execute failed: %v", err)
	}

	// Invalidate the cached cookie server-side.
	fake.session++

	out, err := gw.Execute(context.Background(), addr, "show vlan")
	if err != nil {
		t.Fatalf("Execute after expiry failed: %v", err)
	}
	if out != "ran show vlan" {
		t.Errorf("unexpected output %q", out)
	}
	if fake.session != 3 {
		t.Errorf("expected re-login, session counter is %d", fake.session)
	}
}

func TestExecuteCommandRejected(t *testing.T) {
	gw, fake, addr := newTestGateway(t)
	fake.rejectWith = "ERROR: Invalid entry"

	_, err := gw.Execute(context.Background(), addr, "bogus")
	if !errors.Is(err, ErrCommandRejected) {
		t.Fatalf("expected ErrCommandRejected, got %v", err)
	}
	var devErr *Error
	if !errors.As(err, &devErr) {
		t.Fatalf("expected *device.Error, got %T", err)
	}
	if devErr.Command != "bogus" {
		t.Errorf("error names command %q", devErr.Command)
	}
}

func TestExecuteRecordsMetrics(t *testing.T) {
	gw, fake, addr := newTestGateway(t)

	// The httptest address is unique per test, so its label values start
	// from zero and deltas are exact.
	before := promtest.ToFloat64(metrics.DeviceCommandTotal.WithLabelValues(addr, "success"))
	if _, err := gw.Execute(context.Background(), addr, "show system"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	after := promtest.ToFloat64(metrics.DeviceCommandTotal.WithLabelValues(addr, "success"))
	if after-before != 1 {
		t.Errorf("success counter moved by %v, want 1", after-before)
	}

	fake.rejectWith = "ERROR: Invalid entry"
	beforeFail := promtest.ToFloat64(metrics.DeviceCommandTotal.WithLabelValues(addr, "failure"))
	if _, err := gw.Execute(context.Background(), addr, "bogus"); err == nil {
		t.Fatal("expected the command to be rejected")
	}
	afterFail := promtest.ToFloat64(metrics.DeviceCommandTotal.WithLabelValues(addr, "failure"))
	if afterFail-beforeFail != 1 {
		t.Errorf("failure counter moved by %v, want 1", afterFail-beforeFail)
	}
}

func TestExecuteBadCredentials(t *testing.T) {
	fake := &fakeAOS{t: t}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	gw := NewGateway("admin", "wrong", 5*time.Second)
	_, err := gw.Execute(context.Background(), srv.URL, "show system")
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestExecuteUnreachable(t *testing.T) {
	gw := NewGateway("admin", "switch", time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := gw.Execute(ctx, "http://127.0.0.1:1", "show system")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}
