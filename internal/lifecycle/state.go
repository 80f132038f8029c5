package lifecycle

// State is the acquisition lifecycle state.
type State int

const (
	Uninitialized State = iota
	Initializing
	WaitingPermission
	Starting
	Tracking
	Stopped
	PluginUnavailable
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case WaitingPermission:
		return "waiting_permission"
	case Starting:
		return "starting"
	case Tracking:
		return "tracking"
	case Stopped:
		return "stopped"
	case PluginUnavailable:
		return "plugin_unavailable"
	default:
		return "unknown"
	}
}
