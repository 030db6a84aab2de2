package event

import "github.com/l1jgo/worldcore/internal/core/ecs"

// World lifecycle events, published for tooling and UI layers.

type ObjectCreated struct {
	Object ecs.ObjectHandle
	Name   string
}

type ObjectDeleted struct {
	Object ecs.ObjectHandle
	Name   string
}

type ComponentAttached struct {
	Object    ecs.ObjectHandle
	Component ecs.ComponentHandle
}

type ComponentDetached struct {
	Object    ecs.ObjectHandle
	Component ecs.ComponentHandle
}

type ComponentDeleted struct {
	Component ecs.ComponentHandle
}
