package surface

import "fmt"

// Role is a capability tag that decides how a surface's content is
// used, such as a cursor image or a toplevel window. Roles are
// compared by identity, so each kind of role should be a single
// package-level value.
type Role struct {
	Name string
}

func (r *Role) String() string {
	if r == nil {
		return "<none>"
	}
	return r.Name
}

// RoleError is returned when a surface that already has a role is
// given a different one.
type RoleError struct {
	Surface   uint32
	Current   *Role
	Candidate *Role
}

func (err *RoleError) Error() string {
	return fmt.Sprintf("cannot assign role %v to wl_surface@%v, already has role %v", err.Candidate, err.Surface, err.Current)
}

// SetRole gives the surface a role. Setting the role a surface already
// has does nothing. Setting a different one posts a fatal protocol
// error with the given code to reporter, leaves the surface alone and
// returns a *RoleError.
func (s *Surface) SetRole(role *Role, reporter ErrorReporter, code uint32) error {
	if s.destroyed {
		return ErrDestroyed
	}

	if (s.role != nil) && (s.role != role) {
		err := &RoleError{Surface: s.id, Current: s.role, Candidate: role}
		if reporter != nil {
			reporter.PostError(code, err.Error())
		}
		return err
	}

	s.role = role
	return nil
}

// Role returns the surface's role, or nil if it has none.
func (s *Surface) Role() *Role {
	return s.role
}
