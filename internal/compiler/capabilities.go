package compiler

import "strings"

// Capabilities is what the host may offer for this toolchain.
type Capabilities struct {
	Version         string `json:"version"`
	SupportsObjdump bool   `json:"supportsObjdump"`
	SupportsAstView bool   `json:"supportsAstView"`
	SupportsCfg     bool   `json:"supportsCfg"`
	PostProcess     string `json:"postProcess"`

	// Objdump runs the disassembler in one fixed mode. These report which
	// of the host's objdump parameters are honoured; none are.
	ObjdumpIntelSyntax bool `json:"objdumpIntelSyntax"`
	ObjdumpDemangle    bool `json:"objdumpDemangle"`
	ObjdumpMaxSize     bool `json:"objdumpMaxSize"`

	CaptureToolchainDiagnostics bool `json:"captureToolchainDiagnostics"`
}

// Capabilities reports the adapter's capability surface. Only meaningful
// after Initialise.
func (c *Compiler) Capabilities() Capabilities {
	return Capabilities{
		Version:                     c.Info.Version,
		SupportsObjdump:             c.SupportsObjdump(),
		SupportsAstView:             c.Info.SupportsAstView,
		SupportsCfg:                 c.Info.SupportsCfg,
		PostProcess:                 c.Info.PostProcess,
		CaptureToolchainDiagnostics: c.CaptureDiagnostics,
	}
}

// IsCfgCompiler reports whether a toolchain version string belongs to a
// compiler whose output the control-flow-graph view understands.
func IsCfgCompiler(version string) bool {
	return strings.Contains(version, "clang") || strings.HasPrefix(version, "g++")
}
