// Package backbone drives the aggregation switches that stitch lab
// switch ports together. A link between two ports is an ethernet
// service on the backbone: an svlan, a named service bound to it, and
// one SAP per port, created and torn down in a fixed order.
package backbone

import (
	"context"
	"fmt"

	"github.com/TitouanDH/BLab/pkg/model"
	"github.com/TitouanDH/BLab/pkg/util"
)

// Executor runs one CLI command on the device at addr. The device
// gateway satisfies this; tests substitute a recorder.
type Executor interface {
	Execute(ctx context.Context, addr, cmd string) (string, error)
}

// Manager provisions and verifies links on the backbone fabric.
type Manager struct {
	gw    Executor
	retry RetryPolicy
}

// New returns a Manager using the given executor and verification
// retry policy.
func New(gw Executor, retry RetryPolicy) *Manager {
	return &Manager{gw: gw, retry: retry}
}

// ServiceName is the ethernet-service name for a link: the owning
// username and the svlan, underscore joined. The device shows it in
// snapshots, so operators can attribute a service at a glance.
func ServiceName(owner string, svlan int) string {
	return fmt.Sprintf("%s_%d", owner, svlan)
}

// Up administratively enables the port's backbone interface and
// records the new status on the model. Persistence is the caller's
// concern.
func (m *Manager) Up(ctx context.Context, port *model.Port) error {
	cmd := fmt.Sprintf("interfaces %s admin-state enable", port.PortBackbone)
	if _, err := m.gw.Execute(ctx, port.Backbone, cmd); err != nil {
		return err
	}
	port.Status = model.PortUp
	return nil
}

// Down administratively disables the port's backbone interface.
func (m *Manager) Down(ctx context.Context, port *model.Port) error {
	cmd := fmt.Sprintf("interfaces %s admin-state disable", port.PortBackbone)
	if _, err := m.gw.Execute(ctx, port.Backbone, cmd); err != nil {
		return err
	}
	port.Status = model.PortDown
	return nil
}

// CreateLink provisions the ethernet service carrying the link between
// portA and portB and enables both ports. Both ports must sit behind
// the same backbone switch and already carry the link's svlan.
// Execution stops at the first failing command; the caller decides how
// to roll back.
func (m *Manager) CreateLink(ctx context.Context, link *model.Link, portA, portB *model.Port) error {
	if err := sameSVLAN(link, portA, portB); err != nil {
		return err
	}
	name := ServiceName(link.Owner, link.SVLAN)
	cmds := []string{
		fmt.Sprintf("ethernet-service svlan %d admin-state enable", link.SVLAN),
		fmt.Sprintf("ethernet-service service-name %s svlan %d", name, link.SVLAN),
		fmt.Sprintf("ethernet-service sap %d service-name %s", link.SVLAN, name),
		fmt.Sprintf("ethernet-service sap %d uni port %s", link.SVLAN, portA.PortBackbone),
		fmt.Sprintf("ethernet-service sap %d uni port %s", link.SVLAN, portB.PortBackbone),
		fmt.Sprintf("ethernet-service sap %d cvlan all", link.SVLAN),
	}
	if err := m.run(ctx, portA.Backbone, cmds); err != nil {
		return err
	}
	if err := m.Up(ctx, portA); err != nil {
		return err
	}
	return m.Up(ctx, portB)
}

// DeleteLink disables both ports and removes the ethernet service.
// Teardown mirrors creation in reverse so a partial failure leaves the
// service in a state a retry can still dismantle.
func (m *Manager) DeleteLink(ctx context.Context, link *model.Link, portA, portB *model.Port) error {
	if err := sameSVLAN(link, portA, portB); err != nil {
		return err
	}
	if err := m.Down(ctx, portA); err != nil {
		return err
	}
	if err := m.Down(ctx, portB); err != nil {
		return err
	}
	name := ServiceName(link.Owner, link.SVLAN)
	cmds := []string{
		fmt.Sprintf("no ethernet-service sap %d uni port %s", link.SVLAN, portA.PortBackbone),
		fmt.Sprintf("no ethernet-service sap %d uni port %s", link.SVLAN, portB.PortBackbone),
		fmt.Sprintf("no ethernet-service sap %d", link.SVLAN),
		fmt.Sprintf("no ethernet-service service-name %s svlan %d", name, link.SVLAN),
		fmt.Sprintf("no ethernet-service svlan %d", link.SVLAN),
	}
	return m.run(ctx, portA.Backbone, cmds)
}

func (m *Manager) run(ctx context.Context, addr string, cmds []string) error {
	for _, cmd := range cmds {
		if _, err := m.gw.Execute(ctx, addr, cmd); err != nil {
			return err
		}
	}
	return nil
}

// sameSVLAN enforces the link precondition: both ports carry the
// link's svlan. Touching the fabric with mismatched state would
// provision a circuit the database does not describe.
func sameSVLAN(link *model.Link, portA, portB *model.Port) error {
	for _, p := range []*model.Port{portA, portB} {
		if p.SVLAN == nil || *p.SVLAN != link.SVLAN {
			return util.NewConflictError(p.String(),
				fmt.Sprintf("not carrying svlan %d", link.SVLAN))
		}
	}
	if portA.Backbone != portB.Backbone {
		return util.NewConflictError(portA.String(),
			fmt.Sprintf("backbone %s does not match peer backbone %s", portA.Backbone, portB.Backbone))
	}
	return nil
}
