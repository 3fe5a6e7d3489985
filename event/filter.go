package event

import "strings"

// Filter values matching the routing rules of the original deployment.
const (
	AlarmStateAlarm        = "ALARM"
	CommandStatusSuccess   = "Success"
	CloudTrailUpdateInfo   = "UpdateInstanceInformation"
	AgentStatusActive      = "Active"
	VolumeEventCreate      = "createVolume"
	VolumeResultAvailable  = "available"
	InstanceStateStopped   = "stopped"
	DefaultAlarmNamePrefix = "EBS_Automation"
)

// Filter decides whether an envelope is one the engine acts on. Events
// that fail the filter are ignored, which lets a broad event feed be
// pointed at the intake.
type Filter struct {
	AlarmPrefix string
}

// Match reports whether e passes the rule for its kind.
func (f Filter) Match(e *Envelope) bool {
	switch e.Kind() {
	case KindAlarmStateChange:
		var d AlarmDetail
		if e.DecodeDetail(&d) != nil {
			return false
		}
		return d.State.Value == AlarmStateAlarm && strings.HasPrefix(d.AlarmName, f.prefix())
	case KindCommandStatusChange:
		var d CommandStatusDetail
		return e.DecodeDetail(&d) == nil && d.Status == CommandStatusSuccess
	case KindAgentActive:
		var d CloudTrailDetail
		return e.DecodeDetail(&d) == nil &&
			d.EventName == CloudTrailUpdateInfo &&
			d.RequestParameters.AgentStatus == AgentStatusActive
	case KindVolumeNotification:
		var d VolumeDetail
		return e.DecodeDetail(&d) == nil && d.Event == VolumeEventCreate
	case KindInstanceStateChange:
		var d InstanceStateDetail
		return e.DecodeDetail(&d) == nil && d.State == InstanceStateStopped
	}
	return false
}

func (f Filter) prefix() string {
	if f.AlarmPrefix == "" {
		return DefaultAlarmNamePrefix
	}
	return f.AlarmPrefix
}
