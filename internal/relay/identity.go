package relay

import "fmt"

// IdentityKind classifies a connection.
type IdentityKind int

const (
	KindUnidentified IdentityKind = iota
	KindPlanner
	KindUnit
)

// String makes IdentityKind satisfy the fmt.Stringer interface.
func (k IdentityKind) String() string {
	switch k {
	case KindUnidentified:
		return "unidentified"
	case KindPlanner:
		return "planner"
	case KindUnit:
		return "unit"
	default:
		return "unknown"
	}
}

// Identity is what a connection announced itself as. Name is only set for units.
type Identity struct {
	Kind IdentityKind
	Name string
}

// Unidentified is the identity of a connection that has not completed a handshake.
func Unidentified() Identity { return Identity{Kind: KindUnidentified} }

// PlannerIdentity is the identity of the planner connection.
func PlannerIdentity() Identity { return Identity{Kind: KindPlanner} }

// UnitIdentity is the identity of the unit registered under name.
func UnitIdentity(name string) Identity { return Identity{Kind: KindUnit, Name: name} }

func (i Identity) IsPlanner() bool { return i.Kind == KindPlanner }

func (i Identity) IsUnit() bool { return i.Kind == KindUnit }

func (i Identity) String() string {
	if i.Kind == KindUnit {
		return fmt.Sprintf("unit(%s)", i.Name)
	}
	return i.Kind.String()
}
