package remote

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// Kind tags a failed remote call so callers can switch on it
type Kind string

const (
	KindNoAnalysis   Kind = "no_analysis" // 404 "No analysis found"; routed to a creation affordance
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindValidation   Kind = "validation"
	KindRemote       Kind = "remote"
	KindTransport    Kind = "transport"
)

const noAnalysisMarker = "No analysis found"

// Error is the structured failure of a remote call
type Error struct {
	Op      string          `json:"op"`
	Status  int             `json:"status,omitempty"`
	Kind    Kind            `json:"kind"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// KindOf returns the kind of err, or "" for nil.
// Errors that never reached the service are transport failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindTransport
}

// StatusOf returns the HTTP status carried by err, 0 when there is none
func StatusOf(err error) int {
	var re *Error
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

// IsNoAnalysis reports the "no analysis yet" domain condition
func IsNoAnalysis(err error) bool {
	return KindOf(err) == KindNoAnalysis
}

// errorBody accepts both {"message": ..., "detail": ...} and {"detail": "..."}
type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Detail  json.RawMessage `json:"detail"`
}

func parseError(op string, status int, body []byte) *Error {
	e := &Error{Op: op, Status: status}

	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		e.Message = eb.Message
		if e.Message == "" {
			e.Message = eb.Error
		}
		if len(eb.Detail) > 0 && string(eb.Detail) != "null" {
			var s string
			if json.Unmarshal(eb.Detail, &s) == nil {
				if e.Message == "" {
					e.Message = s
				} else {
					e.Detail = eb.Detail
				}
			} else {
				e.Detail = eb.Detail
			}
		}
	} else if len(body) > 0 {
		e.Message = strings.TrimSpace(string(body))
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}

	switch {
	case status == http.StatusNotFound && strings.Contains(e.Message, noAnalysisMarker):
		e.Kind = KindNoAnalysis
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindUnauthorized
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
	default:
		e.Kind = KindRemote
	}
	return e
}
