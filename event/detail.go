package event

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xraph/volshift"
)

// AlarmDetail is the detail of a CloudWatch alarm state change.
type AlarmDetail struct {
	AlarmName string `json:"alarmName"`
	State     struct {
		Value  string `json:"value"`
		Reason string `json:"reason"`
	} `json:"state"`
	Configuration struct {
		Description string `json:"description"`
		Metrics     []struct {
			ID         string `json:"id"`
			MetricStat struct {
				Metric struct {
					Namespace  string            `json:"namespace"`
					Name       string            `json:"name"`
					Dimensions map[string]string `json:"dimensions"`
				} `json:"metric"`
			} `json:"metricStat"`
		} `json:"metrics"`
	} `json:"configuration"`
}

// Target returns the instance id and drive letter from the first metric's
// dimensions.
func (d *AlarmDetail) Target() (instanceID, driveLetter string, err error) {
	if len(d.Configuration.Metrics) == 0 {
		return "", "", fmt.Errorf("%w: alarm %q has no metrics", volshift.ErrInvalidEvent, d.AlarmName)
	}
	dims := d.Configuration.Metrics[0].MetricStat.Metric.Dimensions
	instanceID, driveLetter = dims["InstanceId"], dims["instance"]
	if instanceID == "" || driveLetter == "" {
		return "", "", fmt.Errorf("%w: alarm %q lacks InstanceId or instance dimension", volshift.ErrInvalidEvent, d.AlarmName)
	}
	return instanceID, driveLetter, nil
}

// CommandStatusDetail is the detail of an SSM command status change.
type CommandStatusDetail struct {
	CommandID    string `json:"command-id"`
	DocumentName string `json:"document-name"`
	Status       string `json:"status"`
}

// CloudTrailDetail is the detail of an SSM API call recorded by
// CloudTrail. Only UpdateInstanceInformation is of interest.
type CloudTrailDetail struct {
	EventName         string `json:"eventName"`
	RequestParameters struct {
		InstanceID  string `json:"instanceId"`
		AgentStatus string `json:"agentStatus"`
	} `json:"requestParameters"`
}

// VolumeDetail is the detail of an EBS volume notification.
type VolumeDetail struct {
	Event     string `json:"event"`
	Result    string `json:"result"`
	Cause     string `json:"cause"`
	RequestID string `json:"request-id"`
}

// InstanceStateDetail is the detail of an EC2 instance state change.
type InstanceStateDetail struct {
	InstanceID string `json:"instance-id"`
	State      string `json:"state"`
}

var volumeARN = regexp.MustCompile(`.*volume/(vol-.*)`)

// VolumeID extracts the volume id from the first resource ARN.
func (e *Envelope) VolumeID() (string, error) {
	if len(e.Resources) == 0 {
		return "", fmt.Errorf("%w: volume notification has no resources", volshift.ErrInvalidEvent)
	}
	m := volumeARN.FindStringSubmatch(e.Resources[0])
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return "", fmt.Errorf("%w: %q is not a volume arn", volshift.ErrInvalidEvent, e.Resources[0])
	}
	return m[1], nil
}
