package resumer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xraph/volshift"
)

var (
	sizePattern   = regexp.MustCompile(`Size: (\d+)\r?\n`)
	volumePattern = regexp.MustCompile(`Volume: (.*)_.*\r?\n`)
)

// ResizeOutput is what the resize command reports about the guest disk.
type ResizeOutput struct {
	Size     string
	VolumeID string
}

// ParseResult is the outcome of parsing command output. Output holds the
// fields that were found; Missing names the ones that were not.
type ParseResult struct {
	Output  ResizeOutput
	Missing []string
}

// OK reports whether every required field was found.
func (p ParseResult) OK() bool { return len(p.Missing) == 0 }

// Err returns nil when OK, otherwise an error wrapping
// volshift.ErrMissingOutput.
func (p ParseResult) Err() error {
	if p.OK() {
		return nil
	}
	return fmt.Errorf("%w: %s", volshift.ErrMissingOutput, strings.Join(p.Missing, ", "))
}

// ParseResizeOutput extracts the disk size and the backing volume id from
// the resize command's output. The guest prints the volume serial without
// its dash ("vol0123abc_1"); a leading "vol" is rewritten to "vol-".
func ParseResizeOutput(out string) ParseResult {
	var res ParseResult

	if m := sizePattern.FindStringSubmatch(out); m != nil {
		res.Output.Size = m[1]
	} else {
		res.Missing = append(res.Missing, "Size")
	}

	if m := volumePattern.FindStringSubmatch(out); m != nil && strings.TrimSpace(m[1]) != "" {
		res.Output.VolumeID = volumeID(strings.TrimSpace(m[1]))
	} else {
		res.Missing = append(res.Missing, "Volume")
	}

	return res
}

func volumeID(serial string) string {
	if strings.HasPrefix(serial, "vol") && !strings.HasPrefix(serial, "vol-") {
		return "vol-" + strings.TrimPrefix(serial, "vol")
	}
	return serial
}
