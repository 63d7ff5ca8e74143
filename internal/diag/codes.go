package diag

import "fmt"

type Code uint16

const (
	UnknownCode Code = 0

	// Build errors, reported once per operation.
	BuildInfo               Code = 1000
	BuildUnresolvedVariable Code = 1001
	BuildAmbiguousVariable  Code = 1002
	BuildFrameRechain       Code = 1003
	BuildInvalidCallMode    Code = 1004
	BuildMultipleCreators   Code = 1005
	BuildContribution       Code = 1006

	// Emission.
	EmitInfo       Code = 2000
	EmitFailed     Code = 2001
	EmitUnresolved Code = 2002

	// Compilation backends.
	CompileInfo        Code = 3000
	CompileError       Code = 3001
	CompileToolchain   Code = 3002
	CompileCachedBreak Code = 3003

	// Loading compiled artifacts.
	LoadInfo         Code = 4000
	LoadMissingEntry Code = 4001
	LoadBadSignature Code = 4002
	LoadOpenFailed   Code = 4003
	LoadCacheCorrupt Code = 4004
)

var codeDescription = map[Code]string{
	UnknownCode:             "Unknown error",
	BuildInfo:               "Build information",
	BuildUnresolvedVariable: "Unresolved variable",
	BuildAmbiguousVariable:  "Ambiguous variable",
	BuildFrameRechain:       "Frame chained twice",
	BuildInvalidCallMode:    "Invalid call mode",
	BuildMultipleCreators:   "Variable has more than one creator",
	BuildContribution:       "Builder contribution failed",
	EmitInfo:                "Emit information",
	EmitFailed:              "Source emission failed",
	EmitUnresolved:          "Frame left unresolved",
	CompileInfo:             "Compile information",
	CompileError:            "Compilation error",
	CompileToolchain:        "Compiler toolchain failure",
	CompileCachedBreak:      "Unit is recorded as broken",
	LoadInfo:                "Load information",
	LoadMissingEntry:        "Entry point not found",
	LoadBadSignature:        "Entry point has an unexpected signature",
	LoadOpenFailed:          "Artifact could not be opened",
	LoadCacheCorrupt:        "Cache record is corrupt",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("BLD%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("EMT%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("CMP%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("LDR%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
