// Package testutil provides in-memory doubles for the engine's
// dependencies: a Store backed by maps and a scriptable device
// gateway.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/TitouanDH/BLab/pkg/model"
	"github.com/TitouanDH/BLab/pkg/store"
)

// MemStore implements store.Store with the same uniqueness guarantees
// the Postgres schema enforces.
type MemStore struct {
	mu sync.Mutex

	nextID       int64
	switches     map[int64]*model.Switch
	ports        map[int64]*model.Port
	users        map[int64]*model.User
	reservations map[int64]*model.Reservation
	shares       map[int64]*model.TopologyShare
	links        map[int64]*model.Link
}

func NewMemStore() *MemStore {
	return &MemStore{
		switches:     make(map[int64]*model.Switch),
		ports:        make(map[int64]*model.Port),
		users:        make(map[int64]*model.User),
		reservations: make(map[int64]*model.Reservation),
		shares:       make(map[int64]*model.TopologyShare),
		links:        make(map[int64]*model.Link),
	}
}

func (m *MemStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemStore) CreateSwitch(_ context.Context, sw *model.Switch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sw.ID = m.id()
	cp := *sw
	m.switches[sw.ID] = &cp
	return nil
}

func (m *MemStore) GetSwitch(_ context.Context, id int64) (*model.Switch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sw, ok := m.switches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sw
	return &cp, nil
}

func (m *MemStore) ListSwitches(_ context.Context) ([]model.Switch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Switch
	for _, sw := range m.switches {
		out = append(out, *sw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) DeleteSwitch(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.switches[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.switches, id)
	for pid, port := range m.ports {
		if port.SwitchID == id {
			delete(m.ports, pid)
		}
	}
	for rid, res := range m.reservations {
		if res.SwitchID == id {
			delete(m.reservations, rid)
		}
	}
	return nil
}

func (m *MemStore) CreatePort(_ context.Context, port *model.Port) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	port.ID = m.id()
	if port.Status == "" {
		port.Status = model.PortDown
	}
	cp := *port
	m.ports[port.ID] = &cp
	return nil
}

func (m *MemStore) GetPort(_ context.Context, id int64) (*model.Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	port, ok := m.ports[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *port
	if port.SVLAN != nil {
		v := *port.SVLAN
		cp.SVLAN = &v
	}
	return &cp, nil
}

func (m *MemStore) ListPorts(_ context.Context) ([]model.Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.portList(func(*model.Port) bool { return true }), nil
}

func (m *MemStore) ListPortsBySwitch(_ context.Context, switchID int64) ([]model.Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.portList(func(p *model.Port) bool { return p.SwitchID == switchID }), nil
}

func (m *MemStore) portList(keep func(*model.Port) bool) []model.Port {
	var out []model.Port
	for _, port := range m.ports {
		if !keep(port) {
			continue
		}
		cp := *port
		if port.SVLAN != nil {
			v := *port.SVLAN
			cp.SVLAN = &v
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemStore) DeletePort(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ports[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.ports, id)
	return nil
}

func (m *MemStore) UpdatePortStatus(_ context.Context, id int64, status model.PortStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	port, ok := m.ports[id]
	if !ok {
		return store.ErrNotFound
	}
	port.Status = status
	return nil
}

func (m *MemStore) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return store.ErrDuplicate
		}
	}
	user.ID = m.id()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MemStore) GetUser(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (m *MemStore) GetUserByName(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			cp := *user
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemStore) ListUsers(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, user := range m.users {
		out = append(out, *user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *MemStore) CreateReservation(_ context.Context, res *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reservations {
		if existing.SwitchID == res.SwitchID {
			return store.ErrDuplicate
		}
	}
	res.ID = m.id()
	if res.CreationDate.IsZero() {
		res.CreationDate = time.Now().UTC()
	}
	cp := *res
	m.reservations[res.ID] = &cp
	return nil
}

func (m *MemStore) GetReservationBySwitch(_ context.Context, switchID int64) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, res := range m.reservations {
		if res.SwitchID == switchID {
			cp := *res
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemStore) ListReservationsByUser(_ context.Context, userID int64) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Reservation
	for _, res := range m.reservations {
		if res.UserID == userID {
			out = append(out, *res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) ListExpiredReservations(_ context.Context) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []model.Reservation
	for _, res := range m.reservations {
		if res.Expired(now) {
			out = append(out, *res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) DeleteReservation(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.reservations, id)
	return nil
}

func (m *MemStore) CreateShare(_ context.Context, share *model.TopologyShare) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.shares {
		if existing.OwnerID == share.OwnerID && existing.TargetID == share.TargetID {
			return store.ErrDuplicate
		}
	}
	share.ID = m.id()
	if share.CreatedAt.IsZero() {
		share.CreatedAt = time.Now().UTC()
	}
	cp := *share
	m.shares[share.ID] = &cp
	return nil
}

func (m *MemStore) DeleteShare(_ context.Context, ownerID, targetID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, share := range m.shares {
		if share.OwnerID == ownerID && share.TargetID == targetID {
			delete(m.shares, id)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *MemStore) ListSharesToUser(_ context.Context, targetID int64) ([]model.TopologyShare, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shareList(func(s *model.TopologyShare) bool { return s.TargetID == targetID }), nil
}

func (m *MemStore) ListSharesByOwner(_ context.Context, ownerID int64) ([]model.TopologyShare, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shareList(func(s *model.TopologyShare) bool { return s.OwnerID == ownerID }), nil
}

func (m *MemStore) shareList(keep func(*model.TopologyShare) bool) []model.TopologyShare {
	var out []model.TopologyShare
	for _, share := range m.shares {
		if keep(share) {
			out = append(out, *share)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemStore) GetLink(_ context.Context, id int64) (*model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *link
	return &cp, nil
}

func (m *MemStore) GetLinkByPort(_ context.Context, portID int64) (*model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, link := range m.links {
		if link.PortA == portID || link.PortB == portID {
			cp := *link
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemStore) ListLinks(_ context.Context) ([]model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Link
	for _, link := range m.links {
		out = append(out, *link)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) MarkLinkActive(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[id]
	if !ok {
		return store.ErrNotFound
	}
	link.State = model.LinkActive
	return nil
}

func (m *MemStore) AllocateLink(_ context.Context, portA, portB int64, owner string, base int) (*model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pa, ok := m.ports[portA]
	if !ok {
		return nil, store.ErrNotFound
	}
	pb, ok := m.ports[portB]
	if !ok {
		return nil, store.ErrNotFound
	}
	if pa.SVLAN != nil || pb.SVLAN != nil {
		return nil, store.ErrDuplicate
	}

	taken := make(map[int]bool, len(m.links))
	for _, link := range m.links {
		taken[link.SVLAN] = true
	}
	svlan := base
	for taken[svlan] {
		svlan++
	}

	link := &model.Link{
		ID:        m.id(),
		PortA:     portA,
		PortB:     portB,
		SVLAN:     svlan,
		State:     model.LinkPending,
		Owner:     owner,
		CreatedAt: time.Now().UTC(),
	}
	m.links[link.ID] = link

	va, vb := svlan, svlan
	pa.SVLAN = &va
	pa.Status = model.PortDown
	pb.SVLAN = &vb
	pb.Status = model.PortDown

	cp := *link
	return &cp, nil
}

func (m *MemStore) ReleaseLink(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[id]
	if !ok {
		return store.ErrNotFound
	}
	for _, pid := range []int64{link.PortA, link.PortB} {
		if port, ok := m.ports[pid]; ok {
			port.SVLAN = nil
			port.Status = model.PortDown
		}
	}
	delete(m.links, id)
	return nil
}

var _ store.Store = (*MemStore)(nil)

// String satisfies fmt.Stringer for debug dumps in tests.
func (m *MemStore) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("memstore{switches:%d ports:%d links:%d reservations:%d}",
		len(m.switches), len(m.ports), len(m.links), len(m.reservations))
}
