package delegation

import "errors"

var (
	// ErrModuleNotFound marks a MODULE_NOT_FOUND failure: Delegate was
	// called against an unregistered module name.
	ErrModuleNotFound = errors.New("delegation: module not found")
	// ErrModuleNotReady marks a MODULE_NOT_READY failure: the module
	// exists but failed its last health check.
	ErrModuleNotReady = errors.New("delegation: module not ready")
	// ErrAlreadyRegistered is returned by Register when name is already
	// taken.
	ErrAlreadyRegistered = errors.New("delegation: module already registered")
)
