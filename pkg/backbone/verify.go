package backbone

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TitouanDH/BLab/pkg/util"
)

// linesPerLink is how many sap lines one fully provisioned link
// contributes to the vlan configuration snapshot: service binding, two
// uni ports and the cvlan rule.
const linesPerLink = 4

// RetryPolicy bounds snapshot verification. Sleep is injectable so
// tests run without waiting out the interval.
type RetryPolicy struct {
	Attempts int
	Interval time.Duration
	Sleep    func(time.Duration)
}

// DefaultRetryPolicy matches how long a backbone switch typically
// takes to settle its configuration snapshot after a change.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Interval: 2 * time.Second, Sleep: time.Sleep}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Sleep == nil {
		p.Sleep = time.Sleep
	}
	return p
}

// VerifyLink checks the backbone's vlan configuration snapshot until
// the number of sap lines for svlan matches expected or attempts run
// out. Expected is linesPerLink after creation and zero after
// teardown.
func (m *Manager) VerifyLink(ctx context.Context, addr string, svlan, expected int) error {
	retry := m.retry.normalized()

	got := -1
	for attempt := 1; attempt <= retry.Attempts; attempt++ {
		if attempt > 1 {
			retry.Sleep(retry.Interval)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		snapshot, err := m.gw.Execute(ctx, addr, "show configuration snapshot vlan")
		if err != nil {
			util.WithBackbone(addr).WithField("attempt", attempt).
				Warnf("snapshot fetch failed: %v", err)
			continue
		}
		got = CountSAPLines(snapshot, svlan)
		if got == expected {
			return nil
		}
		util.WithBackbone(addr).WithFields(map[string]interface{}{
			"svlan": svlan, "expected": expected, "got": got, "attempt": attempt,
		}).Debug("snapshot not settled")
	}
	return &util.VerificationError{
		Backbone: addr,
		SVLAN:    svlan,
		Expected: expected,
		Got:      got,
		Attempts: retry.Attempts,
	}
}

// ExpectedCreateLines is the snapshot line count a verified link shows.
func ExpectedCreateLines() int { return linesPerLink }

// CountSAPLines counts snapshot lines configuring SAPs for svlan. The
// device compresses consecutive uni ports into ranges, so a line like
// "ethernet-service sap 1001 uni port 1/1/1-4" counts once per port.
func CountSAPLines(snapshot string, svlan int) int {
	marker := fmt.Sprintf("sap %d ", svlan)
	count := 0
	for _, line := range strings.Split(snapshot, "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, marker) {
			continue
		}
		count += lineWeight(line)
	}
	return count
}

// lineWeight is 1 for plain sap lines and the member count for uni
// port lines whose final token is a compressed range.
func lineWeight(line string) int {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 1
	}
	uni := false
	for _, f := range fields {
		if f == "uni" {
			uni = true
			break
		}
	}
	if !uni {
		return 1
	}
	return len(util.ExpandPortRange(fields[len(fields)-1]))
}
