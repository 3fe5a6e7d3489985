package volshift

import "time"

// Config holds configuration for the Runtime.
type Config struct {
	// Concurrency is the number of pollers started per stage activity.
	Concurrency int

	// PollInterval is how long a poller waits after an empty or failed poll,
	// or when its stage limit denies a slot.
	PollInterval time.Duration

	// HeartbeatInterval is how often in-flight tasks heartbeat to the
	// orchestrator. Zero disables heartbeats.
	HeartbeatInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// StageTimeout bounds a single stage handler invocation. The
	// attach-and-cleanup stage gets AttachTimeout instead.
	StageTimeout time.Duration

	// FailStalledTasks fails the orchestrator token when a stage cannot
	// start its external operation. When false the run is left suspended
	// and only the DLQ records the failure.
	FailStalledTasks bool

	// AlarmPrefix selects which alarms start a run.
	AlarmPrefix string

	Attach   AttachConfig
	Worker   WorkerConfig
	Commands CommandConfig
	Devices  DeviceConfig
}

// AttachConfig bounds the replacement-volume attach loop.
type AttachConfig struct {
	// MaxAttempts is the number of attach calls made before giving up.
	MaxAttempts int
	// Delay is the wait before every attempt.
	Delay time.Duration
	// Timeout bounds the whole attach-and-cleanup stage.
	Timeout time.Duration
}

// WorkerConfig describes the helper instance that performs the copy.
type WorkerConfig struct {
	InstanceType    string
	ImageID         string
	KeyName         string
	InstanceProfile string
	NamePrefix      string
}

// CommandConfig names the remote command documents.
type CommandConfig struct {
	ResizeDocument   string
	CopyDocument     string
	CopyTimeout      time.Duration
	CloudWatchOutput bool
}

// DeviceConfig holds the device slots used while shuffling volumes.
type DeviceConfig struct {
	// TargetOnWorker is where the original volume is attached on the worker.
	TargetOnWorker string
	// ReplacementOnWorker is where the replacement volume is attached on
	// the worker.
	ReplacementOnWorker string
	// Root is the slot the replacement volume takes on the target instance.
	Root string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		PollInterval:      time.Second,
		ShutdownTimeout:   30 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		StageTimeout:      30 * time.Second,
		FailStalledTasks:  true,
		AlarmPrefix:       "EBS_Automation",
		Attach: AttachConfig{
			MaxAttempts: 150,
			Delay:       2 * time.Second,
			Timeout:     10 * time.Minute,
		},
		Worker: WorkerConfig{
			InstanceType:    "c6g.2xlarge",
			ImageID:         "ami-06cf15d6d096df5d2",
			KeyName:         "ebs-automation-org",
			InstanceProfile: "AmazonSSMRoleForInstancesQuickSetup",
			NamePrefix:      "EBS Automation Worker ",
		},
		Commands: CommandConfig{
			ResizeDocument:   "EBS_Automation_ResizeDriveAndGetVolumeId",
			CopyDocument:     "EBS_Automation_CopyTargetVolumeToReplacement",
			CopyTimeout:      time.Hour,
			CloudWatchOutput: true,
		},
		Devices: DeviceConfig{
			TargetOnWorker:      "/dev/sdf",
			ReplacementOnWorker: "/dev/sdg",
			Root:                "/dev/sda1",
		},
	}
}
