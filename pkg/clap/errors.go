package clap

// Error codes reported by the host side of the CLAP boundary.
type Error int

const (
	// ErrLoad means the bundle path is missing or is not a usable CLAP module.
	ErrLoad Error = iota + 1
	// ErrFactoryMissing means the bundle does not export a plugin factory.
	ErrFactoryMissing
	// ErrNotFound means no descriptor matches the requested plugin id.
	ErrNotFound
	// ErrConstruction means the plugin instance could not be created or initialized.
	ErrConstruction
	// ErrActivation means the audio configuration was rejected.
	ErrActivation
	// ErrStart means the plugin refused to enter the processing state.
	ErrStart
	// ErrInvalidIdentity means a host identity string cannot cross the C boundary.
	ErrInvalidIdentity
	// ErrIllegalState means an operation was attempted in the wrong lifecycle state.
	ErrIllegalState
)

func (e Error) Error() string {
	switch e {
	case ErrLoad:
		return "bundle load failed"
	case ErrFactoryMissing:
		return "bundle has no plugin factory"
	case ErrNotFound:
		return "plugin descriptor not found"
	case ErrConstruction:
		return "plugin construction failed"
	case ErrActivation:
		return "plugin activation failed"
	case ErrStart:
		return "plugin refused to start processing"
	case ErrInvalidIdentity:
		return "invalid host identity"
	case ErrIllegalState:
		return "illegal plugin state"
	default:
		return "unknown error"
	}
}
