package agent

import (
	"context"

	"github.com/racp/ocserv-agent/internal/occtl"
	"github.com/racp/ocserv-agent/pkg/apierror"
)

const readinessMessageMax = 160

type Readiness struct {
	OK           bool    `json:"ok"`
	ErrorCode    *string `json:"errorCode,omitempty"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
}

// CheckReady runs `occtl show status` and reports the outcome. The executor
// should carry the short readiness deadline. It never returns an error.
func CheckReady(ctx context.Context, exec occtl.Executor) Readiness {
	if _, err := exec.Run(ctx, "show", "status"); err != nil {
		code := string(apierror.CodeOcctlFailed)
		message := err.Error()
		if apiErr, ok := apierror.As(err); ok {
			code = string(apiErr.Code)
			message = apiErr.Message
		}
		if len(message) > readinessMessageMax {
			message = message[:readinessMessageMax]
		}
		return Readiness{OK: false, ErrorCode: &code, ErrorMessage: &message}
	}
	return Readiness{OK: true}
}
