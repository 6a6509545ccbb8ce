package engine

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Capability describes what the installed mapper binary accepts.
type Capability int

const (
	// CapabilityBasic: the mapper takes a specification and an output directory only.
	CapabilityBasic Capability = iota
	// CapabilityMappingFlag: the mapper also accepts --mapping-file to pin a mapping.
	CapabilityMappingFlag
)

// MappingFileFlag is the flag probed for and passed under CapabilityMappingFlag.
const MappingFileFlag = "--mapping-file"

func (c Capability) String() string {
	switch c {
	case CapabilityMappingFlag:
		return "mapping-flag"
	default:
		return "basic"
	}
}

// ResolveCapability turns a configured setting into a Capability. "auto" (or an
// empty setting) probes the binary once.
func ResolveCapability(ctx context.Context, setting, binary string) (Capability, error) {
	switch strings.ToLower(setting) {
	case "basic":
		return CapabilityBasic, nil
	case "mapping-flag":
		return CapabilityMappingFlag, nil
	case "", "auto":
		return ProbeCapability(ctx, binary), nil
	}
	return CapabilityBasic, fmt.Errorf("unknown engine capability %q (want auto, basic or mapping-flag)", setting)
}

// ProbeCapability runs `binary --help` and looks for MappingFileFlag. A binary
// that cannot be run is reported as CapabilityBasic.
func ProbeCapability(ctx context.Context, binary string) Capability {
	out, _ := exec.CommandContext(ctx, binary, "--help").CombinedOutput()
	if strings.Contains(string(out), MappingFileFlag) {
		return CapabilityMappingFlag
	}
	return CapabilityBasic
}
