package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TitouanDH/BLab/pkg/audit"
	"github.com/TitouanDH/BLab/pkg/metrics"
	"github.com/TitouanDH/BLab/pkg/model"
	"github.com/TitouanDH/BLab/pkg/store"
	"github.com/TitouanDH/BLab/pkg/util"
)

// Cleanup restores a freed switch to a clean boot state: wipe the
// working directory, restore it from init, sanity check the result and
// reload. The reload is fire and forget; the switch drops its SSH
// session while rebooting.
//
// Cleanup refuses while the switch is reserved, so a user who grabbed
// it between release and cleanup keeps their running config.
func (e *Engine) Cleanup(ctx context.Context, sw *model.Switch) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation(audit.OpCleanup, start, err) }()

	event := audit.NewEvent("system", audit.OpCleanup).WithSwitch(sw.MgmtIP)
	defer func() { audit.Log(event.WithDuration(time.Since(start))) }()
	fail := func(err error) error {
		event.WithError(err)
		return err
	}

	if !sw.Reachable() {
		event.WithSuccess().WithWarning("no management address, skipped")
		return nil
	}
	if _, err := e.st.GetReservationBySwitch(ctx, sw.ID); err == nil {
		return fail(fmt.Errorf("switch %s is reserved: %w", sw.MgmtIP, util.ErrConflict))
	} else if !errors.Is(err, store.ErrNotFound) {
		return fail(err)
	}

	log := util.WithSwitch(sw.MgmtIP)

	if out, err := e.gw.Exec(ctx, sw.MgmtIP, "rm -rf working/*"); err != nil {
		log.Warnf("wiping working directory: %v (%s)", err, strings.TrimSpace(out))
	}

	if out, err := e.gw.Exec(ctx, sw.MgmtIP, "cp -r init/* working/"); err != nil {
		return fail(fmt.Errorf("restoring working directory: %w (%s)", err, strings.TrimSpace(out)))
	}

	contents, err := e.gw.Exec(ctx, sw.MgmtIP, "ls working/")
	if err != nil {
		return fail(fmt.Errorf("listing working directory: %w", err))
	}
	for _, required := range []string{".img", "pkg", "vcboot.cfg"} {
		if !strings.Contains(contents, required) {
			return fail(fmt.Errorf("working directory missing %s after restore: %w",
				required, util.ErrDeviceFailure))
		}
	}

	// Certified is a backup boot source; failures here are not fatal.
	if _, err := e.gw.Exec(ctx, sw.MgmtIP, "rm -rf certified/*"); err != nil {
		log.Warnf("wiping certified directory: %v", err)
	}
	if _, err := e.gw.Exec(ctx, sw.MgmtIP, "cp -r init/* certified/"); err != nil {
		log.Warnf("refreshing certified directory: %v", err)
	}

	if _, err := e.gw.ExecPTY(ctx, sw.MgmtIP, "reload from working no rollback-timeout", "y\n"); err != nil {
		return fail(fmt.Errorf("initiating reload: %w", err))
	}

	log.Info("cleanup reload initiated")
	event.WithSuccess()
	return nil
}

// CleanupByID is Cleanup keyed by catalog ID, for the CLI.
func (e *Engine) CleanupByID(ctx context.Context, switchID int64) error {
	sw, err := e.st.GetSwitch(ctx, switchID)
	if err != nil {
		return err
	}
	return e.Cleanup(ctx, sw)
}
