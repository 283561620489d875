package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TitouanDH/BLab/pkg/audit"
	"github.com/TitouanDH/BLab/pkg/backbone"
	"github.com/TitouanDH/BLab/pkg/lock"
	"github.com/TitouanDH/BLab/pkg/metrics"
	"github.com/TitouanDH/BLab/pkg/model"
	"github.com/TitouanDH/BLab/pkg/store"
	"github.com/TitouanDH/BLab/pkg/util"
)

const svlanLockKey = "svlan-alloc"

// Connect provisions a link between two ports. The svlan is claimed
// in the store first, then the backbone is programmed and the result
// verified against the device's configuration snapshot. Any failure
// after the claim rolls the claim back, so a failed connect leaves
// both ports free.
func (e *Engine) Connect(ctx context.Context, user *model.User, portAID, portBID int64) (lnk *model.Link, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation(audit.OpConnect, start, err) }()

	event := audit.NewEvent(user.Username, audit.OpConnect).WithPorts(portAID, portBID)
	defer func() { audit.Log(event.WithDuration(time.Since(start))) }()
	fail := func(err error) (*model.Link, error) {
		event.WithError(err)
		return nil, err
	}

	if portAID == portBID {
		return fail(ErrSamePort)
	}
	portA, err := e.st.GetPort(ctx, portAID)
	if err != nil {
		return fail(err)
	}
	portB, err := e.st.GetPort(ctx, portBID)
	if err != nil {
		return fail(err)
	}
	if err := e.requireAccess(ctx, user, portA.SwitchID); err != nil {
		return fail(err)
	}
	if err := e.requireAccess(ctx, user, portB.SwitchID); err != nil {
		return fail(err)
	}
	if portA.Linked() || portB.Linked() {
		return fail(ErrAlreadyLinked)
	}

	// The allocation lock orders svlan claims; the switch locks fence
	// off concurrent release of either reservation.
	release, err := lock.AcquireAll(ctx, e.locks,
		svlanLockKey, switchKey(portA.SwitchID), switchKey(portB.SwitchID))
	if err != nil {
		return fail(err)
	}
	defer release()

	link, err := e.st.AllocateLink(ctx, portAID, portBID, user.Username, e.svlanBase)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return fail(ErrAlreadyLinked)
		}
		return fail(err)
	}
	event.WithSVLAN(link.SVLAN)

	svlan := link.SVLAN
	portA.SVLAN = &svlan
	portB.SVLAN = &svlan

	rollback := func() {
		if rbErr := e.st.ReleaseLink(context.WithoutCancel(ctx), link.ID); rbErr != nil {
			util.Errorf("rolling back link %d: %v", link.ID, rbErr)
		}
	}

	if err := e.bb.CreateLink(ctx, link, portA, portB); err != nil {
		rollback()
		return fail(fmt.Errorf("%w: %v", util.ErrProvisioningFailed, err))
	}

	if err := e.bb.VerifyLink(ctx, portA.Backbone, link.SVLAN, backbone.ExpectedCreateLines()); err != nil {
		// Best effort unwind on the fabric before dropping the claim.
		if delErr := e.bb.DeleteLink(ctx, link, portA, portB); delErr != nil {
			util.WithBackbone(portA.Backbone).Errorf("unwinding unverified link %d: %v", link.ID, delErr)
		}
		rollback()
		return fail(err)
	}

	for _, port := range []*model.Port{portA, portB} {
		if err := e.st.UpdatePortStatus(ctx, port.ID, model.PortUp); err != nil {
			return fail(err)
		}
	}
	if err := e.st.MarkLinkActive(ctx, link.ID); err != nil {
		return fail(err)
	}
	link.State = model.LinkActive
	metrics.ActiveLinks.Inc()
	event.WithSuccess()

	util.WithUser(user.Username).WithField("svlan", link.SVLAN).
		Infof("linked ports %d and %d", portAID, portBID)
	return link, nil
}

// Disconnect tears down the link between two ports. The store releases
// the svlan only after the backbone confirms the service is gone, so a
// failed teardown keeps the link visible for a retry.
func (e *Engine) Disconnect(ctx context.Context, user *model.User, portAID, portBID int64) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation(audit.OpDisconnect, start, err) }()

	event := audit.NewEvent(user.Username, audit.OpDisconnect).WithPorts(portAID, portBID)
	defer func() { audit.Log(event.WithDuration(time.Since(start))) }()
	fail := func(err error) error {
		event.WithError(err)
		return err
	}

	portA, err := e.st.GetPort(ctx, portAID)
	if err != nil {
		return fail(err)
	}
	portB, err := e.st.GetPort(ctx, portBID)
	if err != nil {
		return fail(err)
	}
	if err := e.requireAccess(ctx, user, portA.SwitchID); err != nil {
		return fail(err)
	}
	if err := e.requireAccess(ctx, user, portB.SwitchID); err != nil {
		return fail(err)
	}

	link, err := e.st.GetLinkByPort(ctx, portAID)
	if errors.Is(err, store.ErrNotFound) {
		return fail(ErrNotLinked)
	}
	if err != nil {
		return fail(err)
	}
	if link.Peer(portAID) != portBID {
		return fail(ErrNotLinked)
	}
	event.WithSVLAN(link.SVLAN)

	release, err := lock.AcquireAll(ctx, e.locks,
		switchKey(portA.SwitchID), switchKey(portB.SwitchID))
	if err != nil {
		return fail(err)
	}
	defer release()

	if err := e.deprovisionLink(ctx, link, portA, portB); err != nil {
		return fail(err)
	}

	if err := e.st.ReleaseLink(ctx, link.ID); err != nil {
		return fail(err)
	}
	metrics.ActiveLinks.Dec()
	event.WithSuccess()

	util.WithUser(user.Username).WithField("svlan", link.SVLAN).
		Infof("unlinked ports %d and %d", portAID, portBID)
	return nil
}

// teardownLink removes a link given only the link record, used by the
// release cascade.
func (e *Engine) teardownLink(ctx context.Context, user *model.User, link *model.Link) error {
	portA, err := e.st.GetPort(ctx, link.PortA)
	if err != nil {
		return err
	}
	portB, err := e.st.GetPort(ctx, link.PortB)
	if err != nil {
		return err
	}
	if err := e.deprovisionLink(ctx, link, portA, portB); err != nil {
		return err
	}
	if err := e.st.ReleaseLink(ctx, link.ID); err != nil {
		return err
	}
	metrics.ActiveLinks.Dec()
	audit.Log(audit.NewEvent(user.Username, audit.OpDisconnect).
		WithPorts(link.PortA, link.PortB).
		WithSVLAN(link.SVLAN).
		WithSuccess())
	return nil
}

// deprovisionLink runs teardown on the fabric and verifies the service
// is gone. The store is not touched.
func (e *Engine) deprovisionLink(ctx context.Context, link *model.Link, portA, portB *model.Port) error {
	if err := e.bb.DeleteLink(ctx, link, portA, portB); err != nil {
		return fmt.Errorf("%w: %v", util.ErrProvisioningFailed, err)
	}
	return e.bb.VerifyLink(ctx, portA.Backbone, link.SVLAN, 0)
}
