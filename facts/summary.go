package facts

import "time"

// Summary is the front-end's fixed-shape view of a user.
type Summary struct {
	LeaveDays     float64 `json:"leave_days"`
	OvertimeHours float64 `json:"overtime_hours"`
	NextBonusDate string  `json:"next_bonus_date"`
	Salary        float64 `json:"salary"`
	MealAllowance float64 `json:"meal_allowance"`
	LastUpdated   string  `json:"last_updated"`

	LastUpdatedAt time.Time `json:"-"`
}

// NewSummary folds records into a Summary. Missing facts stay zero and
// LastUpdated is the max UpdatedAt, or "" when records is empty.
func NewSummary(records []Record) Summary {
	var s Summary
	for _, r := range records {
		switch r.DataType {
		case DataTypeLeave:
			s.LeaveDays = r.Value.Number
		case DataTypeOvertime:
			s.OvertimeHours = r.Value.Number
		case DataTypeBonus:
			s.NextBonusDate = r.Value.Text
		case DataTypeSalary:
			s.Salary = r.Value.Number
		case DataTypeMeal:
			s.MealAllowance = r.Value.Number
		}
		if r.UpdatedAt.After(s.LastUpdatedAt) {
			s.LastUpdatedAt = r.UpdatedAt
		}
	}
	if !s.LastUpdatedAt.IsZero() {
		s.LastUpdated = FormatTimestamp(s.LastUpdatedAt)
	}
	return s
}
