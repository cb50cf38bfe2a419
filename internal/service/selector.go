package service

import (
	"math/rand"

	"github.com/courierly/dispatch-service/internal/entities"
)

// DriverSelector picks the driver to assign from a non-empty set of active
// drivers. It is a policy hook: the state machine does not care how the
// choice is made, so the policy can be swapped (e.g. for nearest-driver)
// without touching it.
type DriverSelector func(drivers []entities.Driver) entities.Driver

// RandomDriverSelector picks uniformly at random.
func RandomDriverSelector(drivers []entities.Driver) entities.Driver {
	return drivers[rand.Intn(len(drivers))]
}
