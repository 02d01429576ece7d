package skill

import "github.com/benvon/jotjot/internal/alexa"

// Intent names defined in the interaction model
const (
	IntentLogActivity          = "LogActivityIntent"
	IntentGrantEmailPermission = "GrantEmailPermissionIntent"
	IntentStopReports          = "StopReportsIntent"
	IntentHelp                 = "AMAZON.HelpIntent"
	IntentCancel               = "AMAZON.CancelIntent"
	IntentStop                 = "AMAZON.StopIntent"
)

// SlotUtterance carries the free text to log
const SlotUtterance = "utterance"

// Kind is the closed set of requests the skill handles
type Kind int

const (
	KindUnknown Kind = iota
	KindLaunch
	KindLogActivity
	KindGrantEmailPermission
	KindStopReports
	KindHelp
	KindCancelOrStop
	KindSessionEnded
)

func (k Kind) String() string {
	switch k {
	case KindLaunch:
		return "launch"
	case KindLogActivity:
		return "log_activity"
	case KindGrantEmailPermission:
		return "grant_email_permission"
	case KindStopReports:
		return "stop_reports"
	case KindHelp:
		return "help"
	case KindCancelOrStop:
		return "cancel_or_stop"
	case KindSessionEnded:
		return "session_ended"
	default:
		return "unknown"
	}
}

// Classify maps a request to its Kind
func Classify(env *alexa.RequestEnvelope) Kind {
	if env == nil {
		return KindUnknown
	}

	switch env.Request.Type {
	case alexa.RequestLaunch:
		return KindLaunch
	case alexa.RequestSessionEnded:
		return KindSessionEnded
	case alexa.RequestIntent:
		switch env.IntentName() {
		case IntentLogActivity:
			return KindLogActivity
		case IntentGrantEmailPermission:
			return KindGrantEmailPermission
		case IntentStopReports:
			return KindStopReports
		case IntentHelp:
			return KindHelp
		case IntentCancel, IntentStop:
			return KindCancelOrStop
		}
	}
	return KindUnknown
}
