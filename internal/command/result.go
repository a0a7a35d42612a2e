package command

// Status classifies a dispatch outcome so callers never have to scrape the
// display text for success markers.
type Status string

const (
	StatusOK             Status = "ok"
	StatusMissingParam   Status = "missing_param"
	StatusInvalidParam   Status = "invalid_param"
	StatusNotFound       Status = "not_found"
	StatusAccessDenied   Status = "access_denied"
	StatusTimeout        Status = "timeout"
	StatusUnknownCommand Status = "unknown_command"
	StatusAmbiguous      Status = "ambiguous"
	StatusFailed         Status = "failed"
)

// Result is what every dispatch produces: a machine-checkable status plus
// the human-readable text that gets printed and spoken.
type Result struct {
	Status  Status
	Message string
}

func (r Result) OK() bool { return r.Status == StatusOK }

func ok(msg string) Result { return Result{Status: StatusOK, Message: msg} }

func failed(msg string) Result { return Result{Status: StatusFailed, Message: msg} }

func invalid(msg string) Result { return Result{Status: StatusInvalidParam, Message: msg} }

func missing(param string) Result {
	return Result{Status: StatusMissingParam, Message: "Missing required parameter: " + param}
}
