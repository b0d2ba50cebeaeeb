package effect

import "errors"

var (
	// ErrTagRequirementNotSatisfied is returned when an application's tag
	// requirements on the instigator or target are not met.
	ErrTagRequirementNotSatisfied = errors.New("tag requirement not satisfied")
	// ErrApplicationChanceFailed is returned when the chance-to-apply roll fails.
	ErrApplicationChanceFailed = errors.New("application chance failed")
	// ErrCyclicDependency is the panic value raised when a link would make an
	// aggregator depend on itself. It signals a programming error.
	ErrCyclicDependency = errors.New("cyclic aggregator dependency")
	// ErrDuplicateExtension is returned when an extension ID is registered twice.
	ErrDuplicateExtension = errors.New("extension already registered")
)

// ErrContainerDestroyed is returned by ApplySpec after PreDestroy ran.
var ErrContainerDestroyed = errors.New("effect container destroyed")
