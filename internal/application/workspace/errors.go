package workspace

import (
	"github.com/pkg/errors"

	"github.com/bryanwahyu/analytics-workspace/internal/infra/remote"
)

// Local validation failures. None of these reach the network.
var (
	ErrBusy                  = errors.New("operation already in progress")
	ErrUnknownFile           = errors.New("file does not belong to project")
	ErrNoSelection           = errors.New("no file selected")
	ErrSameFile              = errors.New("both slots must hold different files")
	ErrCannotCompare         = errors.New("two distinct files are required to compare")
	ErrInvalidComparisonType = errors.New("invalid comparison type")
	ErrInvalidJoinType       = errors.New("invalid join type")
	ErrStepIncomplete        = errors.New("current step is incomplete")
	ErrWrongStep             = errors.New("operation not available on this step")
	ErrNoResult              = errors.New("no result to save")
	ErrNameRequired          = errors.New("dashboard name is required")
	ErrEmptyMessage          = errors.New("message is empty")
	ErrNoFileBound           = errors.New("chat is not bound to a file")
	ErrUnknownTemporary      = errors.New("temporary analysis index out of range")
	ErrNotEnoughFiles        = errors.New("project needs at least two files")
	ErrProjectNotOpen        = errors.New("project is not open in this workspace")
	ErrFlowNotOpen           = errors.New("workflow is not open")
)

// ErrorView is the surfaced form of a failure kept in controller state until
// dismissed or until a retry succeeds.
type ErrorView struct {
	Kind    remote.Kind `json:"kind"`
	Status  int         `json:"status,omitempty"`
	Message string      `json:"message"`
}

func viewOf(err error) *ErrorView {
	if err == nil {
		return nil
	}
	v := &ErrorView{Kind: remote.KindOf(err), Status: remote.StatusOf(err), Message: err.Error()}
	if IsLocal(err) {
		v.Kind = remote.KindValidation
	}
	var re *remote.Error
	if errors.As(err, &re) {
		v.Message = re.Message
	}
	return v
}

var localErrors = []error{
	ErrBusy, ErrUnknownFile, ErrNoSelection, ErrSameFile, ErrCannotCompare,
	ErrInvalidComparisonType, ErrInvalidJoinType, ErrStepIncomplete, ErrWrongStep,
	ErrNoResult, ErrNameRequired, ErrEmptyMessage, ErrNoFileBound, ErrUnknownTemporary,
	ErrNotEnoughFiles, ErrProjectNotOpen, ErrFlowNotOpen,
}

// IsLocal reports whether err is a validation failure raised before any call
func IsLocal(err error) bool {
	for _, l := range localErrors {
		if errors.Is(err, l) {
			return true
		}
	}
	return false
}
