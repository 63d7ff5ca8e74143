package engine

import "fmt"

// Stage groups builders. Stages contribute in declaration order.
type Stage uint8

const (
	StageSetup Stage = iota
	StagePopulation
	StageAuthentication
	StageAuthorization
	StageValidation
	StageExecution
	StagePostExecution
	StageCleanup

	numStages
)

// Stages lists every stage in contribution order.
func Stages() []Stage {
	out := make([]Stage, 0, numStages)
	for s := StageSetup; s < numStages; s++ {
		out = append(out, s)
	}
	return out
}

func (s Stage) String() string {
	switch s {
	case StageSetup:
		return "setup"
	case StagePopulation:
		return "population"
	case StageAuthentication:
		return "authentication"
	case StageAuthorization:
		return "authorization"
	case StageValidation:
		return "validation"
	case StageExecution:
		return "execution"
	case StagePostExecution:
		return "post-execution"
	case StageCleanup:
		return "cleanup"
	default:
		return fmt.Sprintf("Stage(%d)", s)
	}
}
