package abc

// ExceptionInfo is one entry of a method's exception table. The protected
// range is [From, To); To marks the first block after the try region.
type ExceptionInfo struct {
	From          *Label
	To            *Label
	Target        *Label
	ExceptionType string
	VarName       string

	// Live is cleared once the protected range has been removed entirely
	Live bool
}

// NewExceptionInfo creates a live exception table entry
func NewExceptionInfo(from, to, target *Label, exceptionType, varName string) *ExceptionInfo {
	return &ExceptionInfo{
		From:          from,
		To:            to,
		Target:        target,
		ExceptionType: exceptionType,
		VarName:       varName,
		Live:          true,
	}
}
