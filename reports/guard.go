package reports

import (
	"sync"

	"github.com/cirelion/narc/common/kvstore"
)

// UserState is the ephemeral state of a user, it lives only in memory
type UserState struct {
	// setup wizards the user currently has running
	InSetup int
}

// Guard tracks users whose reactions shouldn't be treated as reports
type Guard struct {
	states kvstore.Map[int64, UserState]
}

func NewGuard(states kvstore.Map[int64, UserState]) *Guard {
	return &Guard{states: states}
}

// EnterSetup marks the user as running a setup wizard until the returned
// release func is called. Calling release more than once is a no-op.
func (g *Guard) EnterSetup(userID int64) (release func()) {
	g.states.Update(userID, func(current UserState, ok bool) (UserState, bool) {
		current.InSetup++
		return current, true
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			g.states.Update(userID, func(current UserState, ok bool) (UserState, bool) {
				if current.InSetup > 0 {
					current.InSetup--
				}
				return current, current.InSetup > 0
			})
		})
	}
}

func (g *Guard) InSetup(userID int64) bool {
	state, ok := g.states.Get(userID)
	return ok && state.InSetup > 0
}

// CanMakeReport is false while the user is in a setup wizard
func (g *Guard) CanMakeReport(userID int64) bool {
	return !g.InSetup(userID)
}
