package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TitouanDH/BLab/pkg/audit"
	"github.com/TitouanDH/BLab/pkg/lock"
	"github.com/TitouanDH/BLab/pkg/metrics"
	"github.com/TitouanDH/BLab/pkg/model"
	"github.com/TitouanDH/BLab/pkg/store"
	"github.com/TitouanDH/BLab/pkg/util"
)

const bannerPath = "switch/pre_banner.txt"

// Reserve grants user exclusive control of the switch until endDate
// (nil for open ended). The returned warning is non-empty when the
// reservation stuck but the login banner could not be updated.
func (e *Engine) Reserve(ctx context.Context, user *model.User, switchID int64, endDate *time.Time) (warning string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation(audit.OpReserve, start, err) }()

	sw, err := e.st.GetSwitch(ctx, switchID)
	if err != nil {
		return "", err
	}

	event := audit.NewEvent(user.Username, audit.OpReserve).WithSwitch(sw.MgmtIP)
	defer func() { audit.Log(event.WithDuration(time.Since(start))) }()

	existing, err := e.st.GetReservationBySwitch(ctx, switchID)
	if err == nil {
		err := ErrAlreadyReserved
		if existing.UserID == user.ID {
			err = ErrAlreadyReservedBySelf
		}
		event.WithError(err)
		return "", err
	}
	if !errors.Is(err, store.ErrNotFound) {
		event.WithError(err)
		return "", err
	}

	res := &model.Reservation{SwitchID: switchID, UserID: user.ID, EndDate: endDate}
	if err := e.st.CreateReservation(ctx, res); err != nil {
		// A racing reserver beat us to the unique constraint.
		if errors.Is(err, store.ErrDuplicate) {
			err = ErrAlreadyReserved
		}
		event.WithError(err)
		return "", err
	}
	metrics.ActiveReservations.Inc()
	event.WithSuccess()

	if bannerErr := e.updateBanner(ctx, sw); bannerErr != nil {
		util.WithSwitch(sw.MgmtIP).Warnf("banner update failed: %v", bannerErr)
		warning = "reservation successful, banner couldn't be changed"
		event.WithWarning(warning)
	}
	return warning, nil
}

// Release tears down every link on the switch's ports, removes the
// reservation and refreshes the banner. Any teardown failure keeps the
// reservation so the owner can retry; a banner or cleanup failure only
// produces a warning.
func (e *Engine) Release(ctx context.Context, user *model.User, switchID int64, cleanupSwitch bool) (warning string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation(audit.OpRelease, start, err) }()

	sw, err := e.st.GetSwitch(ctx, switchID)
	if err != nil {
		return "", err
	}

	event := audit.NewEvent(user.Username, audit.OpRelease).WithSwitch(sw.MgmtIP)
	defer func() { audit.Log(event.WithDuration(time.Since(start))) }()

	res, err := e.st.GetReservationBySwitch(ctx, switchID)
	if errors.Is(err, store.ErrNotFound) {
		event.WithError(ErrNotReservedByUser)
		return "", ErrNotReservedByUser
	}
	if err != nil {
		event.WithError(err)
		return "", err
	}
	if err := e.requireAccess(ctx, user, switchID); err != nil {
		event.WithError(err)
		return "", err
	}

	// The cascade mutates this switch's ports and, through their links,
	// ports on peer switches; hold every involved switch lock so a
	// concurrent connect or disconnect cannot interleave.
	keys, err := e.releaseLockKeys(ctx, switchID)
	if err != nil {
		event.WithError(err)
		return "", err
	}
	unlock, err := lock.AcquireAll(ctx, e.locks, keys...)
	if err != nil {
		event.WithError(err)
		return "", err
	}
	defer unlock()

	if err := e.releaseLinks(ctx, user, switchID); err != nil {
		event.WithError(err)
		return "", err
	}

	if err := e.st.DeleteReservation(ctx, res.ID); err != nil {
		event.WithError(err)
		return "", err
	}
	metrics.ActiveReservations.Dec()
	event.WithSuccess()

	if bannerErr := e.updateBanner(ctx, sw); bannerErr != nil {
		util.WithSwitch(sw.MgmtIP).Warnf("banner update failed: %v", bannerErr)
		warning = "release successful, banner couldn't be changed"
	}
	if cleanupSwitch {
		if cleanupErr := e.Cleanup(ctx, sw); cleanupErr != nil {
			util.WithSwitch(sw.MgmtIP).Warnf("cleanup failed: %v", cleanupErr)
			if warning != "" {
				warning += "; "
			}
			warning += "switch cleanup failed"
		}
	}
	if warning != "" {
		event.WithWarning(warning)
	}
	return warning, nil
}

// releaseLockKeys is the lock set a release must hold: the released
// switch plus the peer switch of every link touching its ports.
func (e *Engine) releaseLockKeys(ctx context.Context, switchID int64) ([]string, error) {
	seen := map[string]bool{switchKey(switchID): true}
	ports, err := e.st.ListPortsBySwitch(ctx, switchID)
	if err != nil {
		return nil, err
	}
	for _, port := range ports {
		if !port.Linked() {
			continue
		}
		link, err := e.st.GetLinkByPort(ctx, port.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		peer, err := e.st.GetPort(ctx, link.Peer(port.ID))
		if err != nil {
			return nil, err
		}
		seen[switchKey(peer.SwitchID)] = true
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	return keys, nil
}

// releaseLinks disconnects every link touching the switch's ports.
// The first teardown failure aborts with ErrPortRelease and leaves the
// remaining links in place.
func (e *Engine) releaseLinks(ctx context.Context, user *model.User, switchID int64) error {
	ports, err := e.st.ListPortsBySwitch(ctx, switchID)
	if err != nil {
		return err
	}
	for _, port := range ports {
		if !port.Linked() {
			continue
		}
		link, err := e.st.GetLinkByPort(ctx, port.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := e.teardownLink(ctx, user, link); err != nil {
			util.WithUser(user.Username).Errorf("link %d teardown failed: %v", link.ID, err)
			return fmt.Errorf("%w: %v", ErrPortRelease, err)
		}
	}
	return nil
}

// ExpireSweep releases every reservation whose end date has passed,
// cleaning up the freed switches. One stuck reservation does not stop
// the sweep.
func (e *Engine) ExpireSweep(ctx context.Context) (released int, err error) {
	expired, err := e.st.ListExpiredReservations(ctx)
	if err != nil {
		return 0, err
	}
	for _, res := range expired {
		owner, err := e.st.GetUser(ctx, res.UserID)
		if err != nil {
			util.Errorf("sweep: reservation %d has no owner: %v", res.ID, err)
			metrics.SweepErrorsTotal.Inc()
			continue
		}
		if _, err := e.Release(ctx, owner, res.SwitchID, true); err != nil {
			util.WithUser(owner.Username).Errorf("sweep: releasing switch %d: %v", res.SwitchID, err)
			metrics.SweepErrorsTotal.Inc()
			continue
		}
		metrics.SweepReleasedTotal.Inc()
		released++
	}
	return released, nil
}

// updateBanner rewrites the switch's login banner to reflect who
// currently reserves it. Switches without a management address are
// skipped.
func (e *Engine) updateBanner(ctx context.Context, sw *model.Switch) error {
	if !sw.Reachable() {
		util.WithSwitch(sw.MgmtIP).Debug("skipping banner update, no management address")
		return nil
	}

	reservedBy := "nobody"
	if res, err := e.st.GetReservationBySwitch(ctx, sw.ID); err == nil {
		if owner, err := e.st.GetUser(ctx, res.UserID); err == nil {
			reservedBy = owner.Username
		}
	}

	text := fmt.Sprintf(`
***************** LAB RESERVATION SYSTEM ******************
This switch is reserved by : %s
If you access this switch without reservation, please contact admin

To cleanup the switch:
cp init/vc* working
reload from working no rollback-timeout
`, reservedBy)

	return e.gw.PushFile(ctx, sw.MgmtIP, bannerPath, text)
}
