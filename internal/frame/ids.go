package frame

import "fmt"

// ID identifies a Frame inside its Graph. Zero is never a valid frame.
type ID uint32

// NoFrame marks the absence of a frame.
const NoFrame ID = 0

// VarID identifies a Variable inside its Graph. Zero is never a valid variable.
type VarID uint32

// NoVar marks the absence of a variable.
const NoVar VarID = 0

// Kind selects the frame variant.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindCode
	KindLiteral
	KindCall
	KindConstruct
	KindReturn
	KindIf
	KindComposite
	KindConditional
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindCode:
		return "code"
	case KindLiteral:
		return "literal"
	case KindCall:
		return "call"
	case KindConstruct:
		return "construct"
	case KindReturn:
		return "return"
	case KindIf:
		return "if"
	case KindComposite:
		return "composite"
	case KindConditional:
		return "conditional"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}
