package backbone

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TitouanDH/BLab/pkg/util"
)

const settledSnapshot = `! VLAN:
vlan 1 admin-state enable
! VLAN Stacking:
ethernet-service svlan 1001 admin-state enable
ethernet-service service-name alice_1001 svlan 1001
ethernet-service sap 1001 service-name alice_1001
ethernet-service sap 1001 uni port 1/1/10
ethernet-service sap 1001 uni port 1/1/20
ethernet-service sap 1001 cvlan all
`

func TestCountSAPLines(t *testing.T) {
	tests := []struct {
		name     string
		snapshot string
		svlan    int
		want     int
	}{
		{"settled link", settledSnapshot, 1001, 4},
		{"other svlan untouched", settledSnapshot, 1002, 0},
		{"empty snapshot", "", 1001, 0},
		{
			"compressed uni range",
			"ethernet-service sap 1001 service-name alice_1001\n" +
				"ethernet-service sap 1001 uni port 1/1/10-13\n" +
				"ethernet-service sap 1001 cvlan all\n",
			1001,
			6,
		},
		{
			"svlan prefix does not match",
			"ethernet-service sap 10011 uni port 1/1/1\n",
			1001,
			0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountSAPLines(tt.snapshot, tt.svlan); got != tt.want {
				t.Errorf("CountSAPLines() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestVerifyLinkSettlesOnRetry(t *testing.T) {
	snapshots := []string{"", "", settledSnapshot}
	calls := 0
	slept := 0

	m := New(&snapshotSequence{snapshots: snapshots, calls: &calls},
		RetryPolicy{Attempts: 3, Interval: 2 * time.Second, Sleep: func(time.Duration) { slept++ }})

	if err := m.VerifyLink(context.Background(), "10.0.0.2", 1001, ExpectedCreateLines()); err != nil {
		t.Fatalf("VerifyLink failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 snapshot fetches, got %d", calls)
	}
	if slept != 2 {
		t.Errorf("expected 2 sleeps between attempts, got %d", slept)
	}
}

func TestVerifyLinkExhaustsAttempts(t *testing.T) {
	exec := newScriptedExecutor()
	exec.outputs["show configuration snapshot vlan"] = settledSnapshot

	m := New(exec, RetryPolicy{Attempts: 3, Sleep: func(time.Duration) {}})

	err := m.VerifyLink(context.Background(), "10.0.0.2", 1001, 0)
	if !errors.Is(err, util.ErrVerificationFailed) {
		t.Fatalf("expected verification failure, got %v", err)
	}
	var verr *util.VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *util.VerificationError, got %T", err)
	}
	if verr.Expected != 0 || verr.Got != 4 || verr.Attempts != 3 {
		t.Errorf("unexpected error detail: %+v", verr)
	}
}

func TestVerifyLinkToleratesFetchErrors(t *testing.T) {
	calls := 0
	flaky := executorFunc(func(ctx context.Context, addr, cmd string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("timeout")
		}
		return settledSnapshot, nil
	})

	m := New(flaky, RetryPolicy{Attempts: 3, Sleep: func(time.Duration) {}})
	if err := m.VerifyLink(context.Background(), "10.0.0.2", 1001, 4); err != nil {
		t.Fatalf("VerifyLink failed: %v", err)
	}
}

// snapshotSequence hands out a different snapshot per call.
type snapshotSequence struct {
	snapshots []string
	calls     *int
}

func (s *snapshotSequence) Execute(ctx context.Context, addr, cmd string) (string, error) {
	i := *s.calls
	*s.calls++
	if i < len(s.snapshots) {
		return s.snapshots[i], nil
	}
	return s.snapshots[len(s.snapshots)-1], nil
}

type executorFunc func(ctx context.Context, addr, cmd string) (string, error)

func (f executorFunc) Execute(ctx context.Context, addr, cmd string) (string, error) {
	return f(ctx, addr, cmd)
}
