// Package timeoff implements the leave approval workflow on top of the
// fact store: pending requests, approval and rejection, and the debit of
// the leave balance.
package timeoff

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/warp/workfacts/facts"
)

// LeaveType tags a request. Only LeaveAnnual debits the balance; any other
// tag, known or not, is informational.
type LeaveType string

const (
	LeaveAnnual       LeaveType = "annual_leave"
	LeaveSick         LeaveType = "sick_leave"
	LeavePersonal     LeaveType = "personal_leave"
	LeaveCompensatory LeaveType = "compensatory_leave"
	LeaveOther        LeaveType = "other"
)

// Debits reports whether approving this type reduces the leave balance.
func (t LeaveType) Debits() bool { return t == LeaveAnnual }

// Known reports whether t is one of the named leave types.
func (t LeaveType) Known() bool {
	switch t {
	case LeaveAnnual, LeaveSick, LeavePersonal, LeaveCompensatory, LeaveOther:
		return true
	}
	return false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// LeaveRequest is a request held by the Workflow. ProcessedAt and
// ApprovedBy are set when it is approved or rejected.
type LeaveRequest struct {
	ID          string     `json:"request_id"`
	UserID      string     `json:"user_id"`
	LeaveType   LeaveType  `json:"leave_type"`
	StartDate   string     `json:"start_date"`
	EndDate     string     `json:"end_date"`
	Days        float64    `json:"days"`
	Reason      string     `json:"reason,omitempty"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	ApprovedBy  string     `json:"approved_by,omitempty"`
}

// process marks r as resolved with status by approver at t.
func (r *LeaveRequest) process(status Status, approver string, t time.Time) {
	r.Status = status
	r.ApprovedBy = approver
	r.ProcessedAt = &t
}

// SubmitInput is what a caller provides to open a request. Days is a
// pointer so that a missing value and an explicit 0 can be told apart.
type SubmitInput struct {
	UserID    string    `json:"user_id" validate:"required"`
	LeaveType LeaveType `json:"leave_type" validate:"required"`
	StartDate string    `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string    `json:"end_date" validate:"required,datetime=2006-01-02"`
	Days      *float64  `json:"days" validate:"required,gte=0"`
	Reason    string    `json:"reason"`
}

// RecordInput applies an already approved leave directly.
type RecordInput struct {
	UserID    string    `json:"user_id" validate:"required"`
	LeaveType LeaveType `json:"leave_type" validate:"required"`
	Days      *float64  `json:"days" validate:"required,gte=0"`
	StartDate string    `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string    `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Approver  string    `json:"approver"`
}

// Resolution is the outcome of an approval. Persisted is false when the
// new balance could not be written.
type Resolution struct {
	RequestID          string    `json:"request_id,omitempty"`
	UserID             string    `json:"user_id"`
	LeaveType          LeaveType `json:"leave_type"`
	Status             Status    `json:"status"`
	Approver           string    `json:"approver,omitempty"`
	DaysDeducted       float64   `json:"days_deducted"`
	PreviousBalance    float64   `json:"previous_balance"`
	RemainingLeaveDays float64   `json:"remaining_leave_days"`
	Debited            bool      `json:"debited"`
	Persisted          bool      `json:"persisted"`
}

// =============================================================================
// INPUT VALIDATION
// =============================================================================

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and converts the first failure into a
// *facts.ValidationError.
func validateStruct(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &facts.ValidationError{Reason: err.Error()}
	}
	fe := verrs[0]
	return &facts.ValidationError{Field: fe.Field(), Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "datetime":
		return "must be a YYYY-MM-DD date"
	case "gte":
		return "must be >= " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

// checkRange rejects an end date before the start date. Both must already
// be valid YYYY-MM-DD strings; empty values are not checked.
func checkRange(start, end string) error {
	if start == "" || end == "" {
		return nil
	}
	s, err := time.Parse(facts.DateLayout, start)
	if err != nil {
		return &facts.ValidationError{Field: "start_date", Reason: "must be a YYYY-MM-DD date"}
	}
	e, err := time.Parse(facts.DateLayout, end)
	if err != nil {
		return &facts.ValidationError{Field: "end_date", Reason: "must be a YYYY-MM-DD date"}
	}
	if e.Before(s) {
		return &facts.ValidationError{Field: "end_date", Reason: "must not be before start_date"}
	}
	return nil
}
