// Package memstore is an in-memory store.Store used by tests and the
// standalone development mode. Transactions run against a snapshot that is
// swapped in atomically on success.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gravitational/trace"

	"github.com/trackfleet/trackd/internal/models"
	"github.com/trackfleet/trackd/internal/store"
)

type data struct {
	seq int64

	users        map[int64]models.User
	devices      map[int64]models.Device
	maintenances map[int64]models.Maintenance
	positions    map[int64]models.Position
	events       map[int64]models.DeviceEvent
	geoFences    map[int64]models.GeoFence
	uiStates     map[int64]models.UIState
	settings     *models.ApplicationSettings

	deviceOwners map[int64]map[int64]bool // device -> users
	userDevices  map[int64]map[int64]bool // user -> devices
	fenceOwners  map[int64]map[int64]bool // fence -> users
	userFences   map[int64]map[int64]bool // user -> fences
	fenceDevices map[int64]map[int64]bool // fence -> devices
	deviceFences map[int64]map[int64]bool // device -> fences
}

func newData() *data {
	return &data{
		users:        map[int64]models.User{},
		devices:      map[int64]models.Device{},
		maintenances: map[int64]models.Maintenance{},
		positions:    map[int64]models.Position{},
		events:       map[int64]models.DeviceEvent{},
		geoFences:    map[int64]models.GeoFence{},
		uiStates:     map[int64]models.UIState{},
		deviceOwners: map[int64]map[int64]bool{},
		userDevices:  map[int64]map[int64]bool{},
		fenceOwners:  map[int64]map[int64]bool{},
		userFences:   map[int64]map[int64]bool{},
		fenceDevices: map[int64]map[int64]bool{},
		deviceFences: map[int64]map[int64]bool{},
	}
}

func (d *data) clone() *data {
	c := &data{seq: d.seq}
	c.users = cloneMap(d.users)
	c.devices = cloneMap(d.devices)
	c.maintenances = cloneMap(d.maintenances)
	c.positions = cloneMap(d.positions)
	c.events = cloneMap(d.events)
	c.geoFences = cloneMap(d.geoFences)
	c.uiStates = cloneMap(d.uiStates)
	if d.settings != nil {
		s := *d.settings
		c.settings = &s
	}
	c.deviceOwners = cloneIndex(d.deviceOwners)
	c.userDevices = cloneIndex(d.userDevices)
	c.fenceOwners = cloneIndex(d.fenceOwners)
	c.userFences = cloneIndex(d.userFences)
	c.fenceDevices = cloneIndex(d.fenceDevices)
	c.deviceFences = cloneIndex(d.deviceFences)
	return c
}

func cloneMap[V any](m map[int64]V) map[int64]V {
	c := make(map[int64]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func cloneIndex(m map[int64]map[int64]bool) map[int64]map[int64]bool {
	c := make(map[int64]map[int64]bool, len(m))
	for k, set := range m {
		inner := make(map[int64]bool, len(set))
		for id := range set {
			inner[id] = true
		}
		c[k] = inner
	}
	return c
}

func (d *data) nextID() int64 {
	d.seq++
	return d.seq
}

// Memstore implements store.Store over process memory.
type Memstore struct {
	mu sync.Mutex
	d  *data
	tx bool
}

// New creates an empty in-memory store.
func New() *Memstore {
	return &Memstore{d: newData()}
}

// lock acquires the store mutex unless already inside a transaction.
func (s *Memstore) lock() func() {
	if s.tx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Transact clones the data set, runs fn against the clone and swaps it in on
// success. Nested calls join the enclosing transaction.
func (s *Memstore) Transact(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.tx {
		return fn(ctx, s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := s.d.clone()
	txs := &Memstore{d: clone, tx: true}
	if err := fn(ctx, txs); err != nil {
		return trace.Wrap(err)
	}
	s.d = clone
	return nil
}

func (s *Memstore) Users() store.Users               { return users{s} }
func (s *Memstore) Devices() store.Devices           { return devices{s} }
func (s *Memstore) Maintenances() store.Maintenances { return maintenances{s} }
func (s *Memstore) Positions() store.Positions       { return positions{s} }
func (s *Memstore) Events() store.Events             { return events{s} }
func (s *Memstore) GeoFences() store.GeoFences       { return geoFences{s} }
func (s *Memstore) Ownership() store.Ownership       { return ownership{s} }
func (s *Memstore) UIStates() store.UIStates         { return uiStates{s} }
func (s *Memstore) Settings() store.Settings         { return settings{s} }

type users struct{ s *Memstore }

func (c users) Insert(ctx context.Context, user *models.User) error {
	defer c.s.lock()()
	if user.ID == 0 {
		user.ID = c.s.d.nextID()
	}
	c.s.d.users[user.ID] = *user
	return nil
}

func (c users) Update(ctx context.Context, user *models.User) error {
	defer c.s.lock()()
	if _, ok := c.s.d.users[user.ID]; !ok {
		return trace.NotFound("user %d not found", user.ID)
	}
	c.s.d.users[user.ID] = *user
	return nil
}

func (c users) Delete(ctx context.Context, id int64) error {
	defer c.s.lock()()
	if _, ok := c.s.d.users[id]; !ok {
		return trace.NotFound("user %d not found", id)
	}
	delete(c.s.d.users, id)
	return nil
}

func (c users) ByID(ctx context.Context, id int64) (*models.User, error) {
	defer c.s.lock()()
	user, ok := c.s.d.users[id]
	if !ok {
		return nil, trace.NotFound("user %d not found", id)
	}
	return &user, nil
}

func (c users) ByLogin(ctx context.Context, login string) (*models.User, error) {
	defer c.s.lock()()
	for _, user := range c.s.d.users {
		if user.Login == login {
			u := user
			return &u, nil
		}
	}
	return nil, trace.NotFound("user %q not found", login)
}

func (c users) All(ctx context.Context) ([]models.User, error) {
	defer c.s.lock()()
	out := make([]models.User, 0, len(c.s.d.users))
	for _, user := range c.s.d.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c users) ManagedBy(ctx context.Context, managerID int64) ([]models.User, error) {
	defer c.s.lock()()
	var out []models.User
	for _, user := range c.s.d.users {
		if user.ManagedBy == managerID {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type devices struct{ s *Memstore }

func (c devices) Insert(ctx context.Context, device *models.Device) error {
	defer c.s.lock()()
	if device.ID == 0 {
		device.ID = c.s.d.nextID()
	}
	c.s.d.devices[device.ID] = *device
	return nil
}

func (c devices) Update(ctx context.Context, device *models.Device) error {
	defer c.s.lock()()
	if _, ok := c.s.d.devices[device.ID]; !ok {
		return trace.NotFound("device %d not found", device.ID)
	}
	c.s.d.devices[device.ID] = *device
	return nil
}

func (c devices) Delete(ctx context.Context, id int64) error {
	defer c.s.lock()()
	if _, ok := c.s.d.devices[id]; !ok {
		return trace.NotFound("device %d not found", id)
	}
	delete(c.s.d.devices, id)
	return nil
}

func (c devices) ByID(ctx context.Context, id int64) (*models.Device, error) {
	defer c.s.lock()()
	device, ok := c.s.d.devices[id]
	if !ok {
		return nil, trace.NotFound("device %d not found", id)
	}
	return &device, nil
}

func (c devices) ByUniqueID(ctx context.Context, uniqueID string) (*models.Device, error) {
	defer c.s.lock()()
	for _, device := range c.s.d.devices {
		if device.UniqueID == uniqueID {
			d := device
			return &d, nil
		}
	}
	return nil, trace.NotFound("device %q not found", uniqueID)
}

func (c devices) All(ctx context.Context) ([]models.Device, error) {
	defer c.s.lock()()
	out := make([]models.Device, 0, len(c.s.d.devices))
	for _, device := range c.s.d.devices {
		out = append(out, device)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type maintenances struct{ s *Memstore }

func (c maintenances) Insert(ctx context.Context, maintenance *models.Maintenance) error {
	defer c.s.lock()()
	if maintenance.ID == 0 {
		maintenance.ID = c.s.d.nextID()
	}
	c.s.d.maintenances[maintenance.ID] = *maintenance
	return nil
}

func (c maintenances) Update(ctx context.Context, maintenance *models.Maintenance) error {
	defer c.s.lock()()
	if _, ok := c.s.d.maintenances[maintenance.ID]; !ok {
		return trace.NotFound("maintenance %d not found", maintenance.ID)
	}
	c.s.d.maintenances[maintenance.ID] = *maintenance
	return nil
}

func (c maintenances) Delete(ctx context.Context, id int64) error {
	defer c.s.lock()()
	if _, ok := c.s.d.maintenances[id]; !ok {
		return trace.NotFound("maintenance %d not found", id)
	}
	delete(c.s.d.maintenances, id)
	return nil
}

func (c maintenances) ByDevice(ctx context.Context, deviceID int64) ([]models.Maintenance, error) {
	defer c.s.lock()()
	var out []models.Maintenance
	for _, m := range c.s.d.maintenances {
		if m.DeviceID == deviceID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IndexNo < out[j].IndexNo })
	return out, nil
}

func (c maintenances) DeleteByDevice(ctx context.Context, deviceID int64) error {
	defer c.s.lock()()
	for id, m := range c.s.d.maintenances {
		if m.DeviceID == deviceID {
			delete(c.s.d.maintenances, id)
		}
	}
	return nil
}

type positions struct{ s *Memstore }

func (c positions) Insert(ctx context.Context, position *models.Position) error {
	defer c.s.lock()()
	if position.ID == 0 {
		position.ID = c.s.d.nextID()
	}
	c.s.d.positions[position.ID] = *position
	return nil
}

func (c positions) ByID(ctx context.Context, id int64) (*models.Position, error) {
	defer c.s.lock()()
	position, ok := c.s.d.positions[id]
	if !ok {
		return nil, trace.NotFound("position %d not found", id)
	}
	return &position, nil
}

func (c positions) Window(ctx context.Context, deviceID int64, from, to time.Time) ([]models.Position, error) {
	defer c.s.lock()()
	var out []models.Position
	for _, p := range c.s.d.positions {
		if p.DeviceID == deviceID && !p.Time.Before(from) && !p.Time.After(to) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time.Equal(out[j].Time) {
			return out[i].ID < out[j].ID
		}
		return out[i].Time.Before(out[j].Time)
	})
	return out, nil
}

func (c positions) LatestMoving(ctx context.Context, deviceID int64) (*models.Position, error) {
	defer c.s.lock()()
	var latest *models.Position
	for _, p := range c.s.d.positions {
		if p.DeviceID != deviceID || p.Speed <= 0 {
			continue
		}
		p := p
		if latest == nil || p.Time.After(latest.Time) {
			latest = &p
		}
	}
	if latest == nil {
		return nil, trace.NotFound("no moving position for device %d", deviceID)
	}
	return latest, nil
}

func (c positions) Earliest(ctx context.Context, deviceID int64) (*models.Position, error) {
	defer c.s.lock()()
	var earliest *models.Position
	for _, p := range c.s.d.positions {
		if p.DeviceID != deviceID {
			continue
		}
		p := p
		if earliest == nil || p.Time.Before(earliest.Time) {
			earliest = &p
		}
	}
	if earliest == nil {
		return nil, trace.NotFound("no positions for device %d", deviceID)
	}
	return earliest, nil
}

func (c positions) DeleteByDevice(ctx context.Context, deviceID int64) error {
	defer c.s.lock()()
	for id, p := range c.s.d.positions {
		if p.DeviceID == deviceID {
			delete(c.s.d.positions, id)
		}
	}
	return nil
}

type events struct{ s *Memstore }

func (c events) Insert(ctx context.Context, event *models.DeviceEvent) error {
	defer c.s.lock()()
	if event.ID == 0 {
		event.ID = c.s.d.nextID()
	}
	c.s.d.events[event.ID] = *event
	return nil
}

func (c events) ByDevice(ctx context.Context, deviceID int64) ([]models.DeviceEvent, error) {
	defer c.s.lock()()
	var out []models.DeviceEvent
	for _, e := range c.s.d.events {
		if e.DeviceID == deviceID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c events) DeleteByDevice(ctx context.Context, deviceID int64) error {
	defer c.s.lock()()
	for id, e := range c.s.d.events {
		if e.DeviceID == deviceID {
			delete(c.s.d.events, id)
		}
	}
	return nil
}

func (c events) DeleteByGeoFence(ctx context.Context, geoFenceID int64) error {
	defer c.s.lock()()
	for id, e := range c.s.d.events {
		if e.GeoFenceID == geoFenceID {
			delete(c.s.d.events, id)
		}
	}
	return nil
}

type geoFences struct{ s *Memstore }

func (c geoFences) Insert(ctx context.Context, fence *models.GeoFence) error {
	defer c.s.lock()()
	if fence.ID == 0 {
		fence.ID = c.s.d.nextID()
	}
	c.s.d.geoFences[fence.ID] = *fence
	return nil
}

func (c geoFences) Update(ctx context.Context, fence *models.GeoFence) error {
	defer c.s.lock()()
	if _, ok := c.s.d.geoFences[fence.ID]; !ok {
		return trace.NotFound("geo-fence %d not found", fence.ID)
	}
	c.s.d.geoFences[fence.ID] = *fence
	return nil
}

func (c geoFences) Delete(ctx context.Context, id int64) error {
	defer c.s.lock()()
	if _, ok := c.s.d.geoFences[id]; !ok {
		return trace.NotFound("geo-fence %d not found", id)
	}
	delete(c.s.d.geoFences, id)
	return nil
}

func (c geoFences) ByID(ctx context.Context, id int64) (*models.GeoFence, error) {
	defer c.s.lock()()
	fence, ok := c.s.d.geoFences[id]
	if !ok {
		return nil, trace.NotFound("geo-fence %d not found", id)
	}
	return &fence, nil
}

func (c geoFences) All(ctx context.Context) ([]models.GeoFence, error) {
	defer c.s.lock()()
	out := make([]models.GeoFence, 0, len(c.s.d.geoFences))
	for _, fence := range c.s.d.geoFences {
		out = append(out, fence)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type ownership struct{ s *Memstore }

func ids(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func addLink(forward, reverse map[int64]map[int64]bool, a, b int64) {
	if forward[a] == nil {
		forward[a] = map[int64]bool{}
	}
	forward[a][b] = true
	if reverse[b] == nil {
		reverse[b] = map[int64]bool{}
	}
	reverse[b][a] = true
}

func removeLink(forward, reverse map[int64]map[int64]bool, a, b int64) {
	delete(forward[a], b)
	delete(reverse[b], a)
}

func (c ownership) DeviceOwners(ctx context.Context, deviceID int64) ([]int64, error) {
	defer c.s.lock()()
	return ids(c.s.d.deviceOwners[deviceID]), nil
}

func (c ownership) DevicesOf(ctx context.Context, userID int64) ([]int64, error) {
	defer c.s.lock()()
	return ids(c.s.d.userDevices[userID]), nil
}

func (c ownership) AddDeviceOwner(ctx context.Context, deviceID, userID int64) error {
	defer c.s.lock()()
	addLink(c.s.d.deviceOwners, c.s.d.userDevices, deviceID, userID)
	return nil
}

func (c ownership) RemoveDeviceOwner(ctx context.Context, deviceID, userID int64) error {
	defer c.s.lock()()
	removeLink(c.s.d.deviceOwners, c.s.d.userDevices, deviceID, userID)
	return nil
}

func (c ownership) GeoFenceOwners(ctx context.Context, geoFenceID int64) ([]int64, error) {
	defer c.s.lock()()
	return ids(c.s.d.fenceOwners[geoFenceID]), nil
}

func (c ownership) GeoFencesOf(ctx context.Context, userID int64) ([]int64, error) {
	defer c.s.lock()()
	return ids(c.s.d.userFences[userID]), nil
}

func (c ownership) AddGeoFenceOwner(ctx context.Context, geoFenceID, userID int64) error {
	defer c.s.lock()()
	addLink(c.s.d.fenceOwners, c.s.d.userFences, geoFenceID, userID)
	return nil
}

func (c ownership) RemoveGeoFenceOwner(ctx context.Context, geoFenceID, userID int64) error {
	defer c.s.lock()()
	removeLink(c.s.d.fenceOwners, c.s.d.userFences, geoFenceID, userID)
	return nil
}

func (c ownership) FenceDevices(ctx context.Context, geoFenceID int64) ([]int64, error) {
	defer c.s.lock()()
	return ids(c.s.d.fenceDevices[geoFenceID]), nil
}

func (c ownership) FencesWithDevice(ctx context.Context, deviceID int64) ([]int64, error) {
	defer c.s.lock()()
	return ids(c.s.d.deviceFences[deviceID]), nil
}

func (c ownership) LinkFenceDevice(ctx context.Context, geoFenceID, deviceID int64) error {
	defer c.s.lock()()
	addLink(c.s.d.fenceDevices, c.s.d.deviceFences, geoFenceID, deviceID)
	return nil
}

func (c ownership) UnlinkFenceDevice(ctx context.Context, geoFenceID, deviceID int64) error {
	defer c.s.lock()()
	removeLink(c.s.d.fenceDevices, c.s.d.deviceFences, geoFenceID, deviceID)
	return nil
}

type uiStates struct{ s *Memstore }

func (c uiStates) Insert(ctx context.Context, state *models.UIState) error {
	defer c.s.lock()()
	if state.ID == 0 {
		state.ID = c.s.d.nextID()
	}
	c.s.d.uiStates[state.ID] = *state
	return nil
}

func (c uiStates) ByUser(ctx context.Context, userID int64) ([]models.UIState, error) {
	defer c.s.lock()()
	var out []models.UIState
	for _, state := range c.s.d.uiStates {
		if state.UserID == userID {
			out = append(out, state)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c uiStates) DeleteByUser(ctx context.Context, userID int64) error {
	defer c.s.lock()()
	for id, state := range c.s.d.uiStates {
		if state.UserID == userID {
			delete(c.s.d.uiStates, id)
		}
	}
	return nil
}

type settings struct{ s *Memstore }

func (c settings) Get(ctx context.Context) (*models.ApplicationSettings, error) {
	defer c.s.lock()()
	if c.s.d.settings == nil {
		return nil, trace.NotFound("application settings not found")
	}
	out := *c.s.d.settings
	return &out, nil
}

func (c settings) Put(ctx context.Context, s *models.ApplicationSettings) error {
	defer c.s.lock()()
	if s.ID == 0 {
		s.ID = 1
	}
	copied := *s
	c.s.d.settings = &copied
	return nil
}
