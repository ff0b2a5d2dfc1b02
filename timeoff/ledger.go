/*
ledger.go - Leave balance arithmetic

PURPOSE:
  One pure function that decides the balance after an approved leave.

RULES:
  - Only annual_leave changes the balance
  - The new balance is max(0, current - days); it never goes negative
  - Other leave types return the current balance unchanged and debited=false

PRECISION:
  Balances are often fractional (half days). The subtraction runs in
  decimal so 15 - 0.5 - 0.1 is 14.4, not 14.399999999999999.

SEE ALSO:
  - workflow.go: reads the balance, calls ApplyLeave, writes the result
*/
package timeoff

import "github.com/shopspring/decimal"

// ApplyLeave returns the balance after taking days of leaveType from
// current, and whether the balance was debited.
func ApplyLeave(current float64, leaveType LeaveType, days float64) (float64, bool) {
	if !leaveType.Debits() {
		return current, false
	}
	next := decimal.NewFromFloat(current).Sub(decimal.NewFromFloat(days))
	if next.IsNegative() {
		next = decimal.Zero
	}
	f, _ := next.Float64()
	return f, true
}
