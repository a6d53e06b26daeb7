package relay

import (
	"sort"

	"github.com/google/uuid"
)

// Registry tracks live connections and their classification. It is not safe
// for concurrent use; the Router loop is its only caller.
type Registry struct {
	conns   map[uuid.UUID]*Connection
	waiting map[uuid.UUID]*Connection
	planner *Connection
	units   map[string]*Connection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:   make(map[uuid.UUID]*Connection),
		waiting: make(map[uuid.UUID]*Connection),
		units:   make(map[string]*Connection),
	}
}

// Add registers a freshly accepted connection as waiting.
func (r *Registry) Add(c *Connection) {
	c.identity = Unidentified()
	r.conns[c.id] = c
	r.waiting[c.id] = c
}

// Planner returns the connection in the planner slot, or nil.
func (r *Registry) Planner() *Connection { return r.planner }

// Unit returns the connection registered under name, or nil.
func (r *Registry) Unit(name string) *Connection { return r.units[name] }

// SetPlanner moves c from waiting into the planner slot.
func (r *Registry) SetPlanner(c *Connection) {
	r.detach(c)
	c.identity = PlannerIdentity()
	r.planner = c
}

// SetUnit moves c from waiting into the unit table under name.
func (r *Registry) SetUnit(name string, c *Connection) {
	r.detach(c)
	c.identity = UnitIdentity(name)
	r.units[name] = c
}

// ReleaseUnits clears the unit table and returns the released connections
// ordered by name. Released connections go back to waiting as unidentified.
func (r *Registry) ReleaseUnits() []*Connection {
	names := r.UnitNames()
	released := make([]*Connection, 0, len(names))
	for _, name := range names {
		c := r.units[name]
		delete(r.units, name)
		c.identity = Unidentified()
		r.waiting[c.id] = c
		released = append(released, c)
	}
	return released
}

// Remove forgets c entirely. It reports whether c was tracked.
func (r *Registry) Remove(c *Connection) bool {
	if _, ok := r.conns[c.id]; !ok {
		return false
	}
	r.detach(c)
	delete(r.conns, c.id)
	return true
}

// detach takes c out of whichever of waiting, planner or units holds it.
func (r *Registry) detach(c *Connection) {
	delete(r.waiting, c.id)
	if r.planner == c {
		r.planner = nil
	}
	if c.identity.IsUnit() && r.units[c.identity.Name] == c {
		delete(r.units, c.identity.Name)
	}
}

// UnitNames returns the registered unit names in sorted order.
func (r *Registry) UnitNames() []string {
	names := make([]string, 0, len(r.units))
	for name := range r.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Waiting returns the number of unidentified connections.
func (r *Registry) Waiting() int { return len(r.waiting) }

// Len returns the number of live connections.
func (r *Registry) Len() int { return len(r.conns) }

// All returns every tracked connection.
func (r *Registry) All() []*Connection {
	all := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		all = append(all, c)
	}
	return all
}

// ConnInfo describes one connection in a Snapshot.
type ConnInfo struct {
	ID         string `json:"id"`
	RemoteAddr string `json:"remoteAddr"`
	Identity   string `json:"identity"`
	State      string `json:"state"`
}

// Snapshot is a point-in-time copy of the registry.
type Snapshot struct {
	Planner *ConnInfo           `json:"planner,omitempty"`
	Units   map[string]ConnInfo `json:"units"`
	Waiting []ConnInfo          `json:"waiting"`
}

func infoOf(c *Connection) ConnInfo {
	return ConnInfo{
		ID:         c.id.String(),
		RemoteAddr: c.remoteAddr,
		Identity:   c.identity.String(),
		State:      c.State().String(),
	}
}

// Snapshot copies the current classification.
func (r *Registry) Snapshot() Snapshot {
	s := Snapshot{
		Units:   make(map[string]ConnInfo, len(r.units)),
		Waiting: make([]ConnInfo, 0, len(r.waiting)),
	}
	if r.planner != nil {
		info := infoOf(r.planner)
		s.Planner = &info
	}
	for name, c := range r.units {
		s.Units[name] = infoOf(c)
	}
	for _, c := range r.waiting {
		s.Waiting = append(s.Waiting, infoOf(c))
	}
	sort.Slice(s.Waiting, func(i, j int) bool { return s.Waiting[i].ID < s.Waiting[j].ID })
	return s
}
