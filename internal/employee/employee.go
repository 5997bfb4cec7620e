package employee

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledgerdesk/internal/core"
)

// Sealer encrypts sensitive values before they are stored.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
}

// BankAccount is the stored form of direct deposit details. The full
// account number only exists encrypted.
type BankAccount struct {
	BankName      string `json:"bank_name"`
	RoutingNumber string `json:"routing_number"`
	AccountType   string `json:"account_type"`
	AccountLast4  string `json:"account_last4"`
	AccountSealed []byte `json:"-"`
}

// Employee is the record created when the setup wizard is submitted.
type Employee struct {
	ID            string       `json:"id"`
	CompanyID     string       `json:"company_id"`
	FirstName     string       `json:"first_name"`
	LastName      string       `json:"last_name"`
	Email         string       `json:"email"`
	Phone         string       `json:"phone"`
	JobTitle      string       `json:"job_title"`
	Department    string       `json:"department,omitempty"`
	HireDate      core.Date    `json:"hire_date"`
	PayType       string       `json:"pay_type"`
	AnnualSalary  core.Money   `json:"annual_salary"`
	HourlyRate    core.Money   `json:"hourly_rate"`
	PaySchedule   string       `json:"pay_schedule"`
	FilingStatus  string       `json:"filing_status"`
	PaymentMethod string       `json:"payment_method"`
	Bank          *BankAccount `json:"bank,omitempty"`
	VacationHours string       `json:"vacation_hours"`
	SickHours     string       `json:"sick_hours"`
	AccrualMethod string       `json:"accrual_method"`

	// Hours earned per paycheck; set only for per_pay_period accrual.
	VacationPerPeriod string    `json:"vacation_hours_per_period,omitempty"`
	SickPerPeriod     string    `json:"sick_hours_per_period,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// FullName joins first and last name.
func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// FromForm builds the employee record. Only the governing pay field is
// copied, and bank details are kept only for direct deposit.
func FromForm(id, companyID string, f SetupForm, sealer Sealer, now time.Time) (Employee, error) {
	e := Employee{
		ID:            id,
		CompanyID:     companyID,
		FirstName:     f.Personal.FirstName,
		LastName:      f.Personal.LastName,
		Email:         f.Contact.Email,
		Phone:         f.Contact.Phone,
		JobTitle:      f.Employment.JobTitle,
		Department:    f.Employment.Department,
		HireDate:      f.Employment.HireDate,
		PayType:       f.Pay.PayType,
		PaySchedule:   f.Pay.PaySchedule,
		FilingStatus:  f.Tax.FilingStatus,
		PaymentMethod: f.Banking.PaymentMethod,
		VacationHours: f.TimeOff.VacationHours.String(),
		SickHours:     f.TimeOff.SickHours.String(),
		AccrualMethod: f.TimeOff.AccrualMethod,
		CreatedAt:     now.UTC(),
	}
	if f.TimeOff.AccrualMethod == AccrualPerPayPeriod && PeriodsPerYear(f.Pay.PaySchedule) > 0 {
		e.VacationPerPeriod = AccrualPerPeriod(f.TimeOff.VacationHours, f.Pay.PaySchedule).String()
		e.SickPerPeriod = AccrualPerPeriod(f.TimeOff.SickHours, f.Pay.PaySchedule).String()
	}
	switch f.Pay.PayType {
	case PaySalary:
		e.AnnualSalary = f.Pay.AnnualSalary
	case PayHourly:
		e.HourlyRate = f.Pay.HourlyRate
	}
	if f.Banking.PaymentMethod == MethodDirectDeposit {
		if sealer == nil {
			return Employee{}, errors.New("direct deposit requires an account sealer")
		}
		sealed, err := sealer.Seal([]byte(f.Banking.AccountNumber))
		if err != nil {
			return Employee{}, fmt.Errorf("seal account number: %w", err)
		}
		acct := f.Banking.AccountNumber
		last4 := acct
		if len(acct) > 4 {
			last4 = acct[len(acct)-4:]
		}
		e.Bank = &BankAccount{
			BankName:      f.Banking.BankName,
			RoutingNumber: f.Banking.RoutingNumber,
			AccountType:   f.Banking.AccountType,
			AccountLast4:  last4,
			AccountSealed: sealed,
		}
	}
	return e, nil
}

// PeriodsPerYear returns how many paychecks a schedule produces.
func PeriodsPerYear(schedule string) int {
	switch schedule {
	case "weekly":
		return 52
	case "biweekly":
		return 26
	case "semimonthly":
		return 24
	case "monthly":
		return 12
	default:
		return 0
	}
}

// AccrualPerPeriod spreads annual hours over the pay schedule, rounded to
// two decimals. Unknown schedules accrue nothing.
func AccrualPerPeriod(annualHours decimal.Decimal, schedule string) decimal.Decimal {
	n := PeriodsPerYear(schedule)
	if n == 0 {
		return decimal.Zero
	}
	return annualHours.Div(decimal.NewFromInt(int64(n))).Round(2)
}
