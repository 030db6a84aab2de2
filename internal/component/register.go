// Package component holds the stock component types driven by the world's
// update phases.
package component

import (
	"fmt"
	"time"

	"github.com/l1jgo/worldcore/internal/core/world"
)

// Register adds every stock component type to reg. step is the simulated time
// advanced per frame.
func Register(reg *world.Registry, step time.Duration) error {
	if _, err := world.RegisterComponentType[Mover](reg, MoverType, MoverVersion, moverCtor(step)); err != nil {
		return fmt.Errorf("register %s: %w", MoverType, err)
	}
	if _, err := world.RegisterComponentType[Lifetime](reg, LifetimeType, LifetimeVersion, lifetimeCtor(step)); err != nil {
		return fmt.Errorf("register %s: %w", LifetimeType, err)
	}
	return nil
}
