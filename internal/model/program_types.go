package model

// ProgramType is the care-coordination program a billed code belongs to.
type ProgramType string

const (
	ProgramCCM     ProgramType = "CCM"
	ProgramPCM     ProgramType = "PCM"
	ProgramBHI     ProgramType = "BHI"
	ProgramRPM     ProgramType = "RPM"
	ProgramRTM     ProgramType = "RTM"
	ProgramTCM     ProgramType = "TCM"
	ProgramAPCM    ProgramType = "APCM"
	ProgramAWV     ProgramType = "AWV"
	ProgramUnknown ProgramType = "UNKNOWN"
)

// ProgramInfo describes one of the supported programs.
type ProgramInfo struct {
	Type        ProgramType
	Description string
}

// AllProgramTypes lists the supported programs in canonical order.
// UNKNOWN is not a program and is deliberately absent.
var AllProgramTypes = []ProgramInfo{
	{Type: ProgramCCM, Description: "Chronic Care Management"},
	{Type: ProgramPCM, Description: "Principal Care Management"},
	{Type: ProgramBHI, Description: "Behavioral Health Integration"},
	{Type: ProgramRPM, Description: "Remote Patient Monitoring"},
	{Type: ProgramRTM, Description: "Remote Therapeutic Monitoring"},
	{Type: ProgramTCM, Description: "Transitional Care Management"},
	{Type: ProgramAPCM, Description: "Advanced Primary Care Management"},
	{Type: ProgramAWV, Description: "Annual Wellness Visit"},
}

// ProgramTypeNames returns the names of all supported programs.
func ProgramTypeNames() []string {
	names := make([]string, len(AllProgramTypes))
	for i, p := range AllProgramTypes {
		names[i] = string(p.Type)
	}
	return names
}

// ProgramTypeByName returns the ProgramInfo for the given name, or ok=false.
func ProgramTypeByName(name string) (ProgramInfo, bool) {
	for _, p := range AllProgramTypes {
		if string(p.Type) == name {
			return p, true
		}
	}
	return ProgramInfo{}, false
}
