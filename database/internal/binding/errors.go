package binding

// SQL states reported by binding failures.
const (
	SQLStateInvalidParameterNumber = "HY093"
	SQLStateSyntaxError            = "42000"
)

// Error is a template compile or bind failure.
type Error struct {
	SQLState string
	Message  string
}

func (e *Error) Error() string {
	return "binding: " + e.Message
}

func parameterError(msg string) *Error {
	return &Error{SQLState: SQLStateInvalidParameterNumber, Message: "invalid parameter number: " + msg}
}

func syntaxError(msg string) *Error {
	return &Error{SQLState: SQLStateSyntaxError, Message: "syntax error: " + msg}
}
