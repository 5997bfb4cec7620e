package employee

import (
	"net/mail"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"ledgerdesk/internal/wizard"
)

// Step numbers, in wizard order.
const (
	StepPersonal = iota + 1
	StepContact
	StepEmployment
	StepPay
	StepTax
	StepBenefits
	StepTimeOff
	StepBanking
)

// Steps returns the eight setup steps. now anchors date checks so that the
// validators stay deterministic for a given clock.
func Steps(now func() time.Time) []wizard.Step[SetupForm] {
	if now == nil {
		now = time.Now
	}
	return []wizard.Step[SetupForm]{
		{Key: "personal", Title: "Personal Information", Validate: func(f SetupForm) wizard.FieldErrors { return ValidatePersonal(f, now()) }},
		{Key: "contact", Title: "Contact Information", Validate: ValidateContact},
		{Key: "employment", Title: "Employment Details", Validate: ValidateEmployment},
		{Key: "pay", Title: "Pay Information", Validate: ValidatePay},
		{Key: "tax", Title: "Tax Withholding", Validate: ValidateTax},
		{Key: "benefits", Title: "Benefits", Validate: ValidateBenefits},
		{Key: "time_off", Title: "Time Off", Validate: ValidateTimeOff},
		{Key: "banking", Title: "Payment Method", Validate: ValidateBanking},
	}
}

func ValidatePersonal(f SetupForm, now time.Time) wizard.FieldErrors {
	errs := wizard.FieldErrors{}
	p := f.Personal
	if p.FirstName == "" {
		errs.Add("personal.first_name", "First name is required")
	}
	if p.LastName == "" {
		errs.Add("personal.last_name", "Last name is required")
	}
	if p.SSN != "" && len(digits(p.SSN)) != 9 {
		errs.Add("personal.ssn", "SSN must have 9 digits")
	}
	switch {
	case p.DateOfBirth.IsEmpty():
		errs.Add("personal.date_of_birth", "Date of birth is required")
	case !p.DateOfBirth.Before(now):
		errs.Add("personal.date_of_birth", "Date of birth must be in the past")
	}
	return errs
}

func ValidateContact(f SetupForm) wizard.FieldErrors {
	errs := wizard.FieldErrors{}
	c := f.Contact
	if c.Email == "" {
		errs.Add("contact.email", "Email is required")
	} else if _, err := mail.ParseAddress(c.Email); err != nil {
		errs.Add("contact.email", "Email is invalid")
	}
	if c.Phone == "" {
		errs.Add("contact.phone", "Phone is required")
	} else if len(digits(c.Phone)) < 10 {
		errs.Add("contact.phone", "Phone must have at least 10 digits")
	}
	if c.Street == "" {
		errs.Add("contact.street", "Street address is required")
	}
	if c.City == "" {
		errs.Add("contact.city", "City is required")
	}
	if c.State == "" {
		errs.Add("contact.state", "State is required")
	}
	if z := digits(c.Zip); len(z) != 5 && len(z) != 9 {
		errs.Add("contact.zip", "ZIP code must have 5 or 9 digits")
	}
	return errs
}

func ValidateEmployment(f SetupForm) wizard.FieldErrors {
	errs := wizard.FieldErrors{}
	e := f.Employment
	if e.HireDate.IsEmpty() {
		errs.Add("employment.hire_date", "Hire date is required")
	}
	if e.JobTitle == "" {
		errs.Add("employment.job_title", "Job title is required")
	}
	if !slices.Contains(employmentTypes, e.EmploymentType) {
		errs.Add("employment.employment_type", "Employment type is invalid")
	}
	return errs
}

// ValidatePay checks only the compensation field governed by the pay type.
func ValidatePay(f SetupForm) wizard.FieldErrors {
	errs := wizard.FieldErrors{}
	p := f.Pay
	switch p.PayType {
	case PaySalary:
		if p.AnnualSalary.Cents <= 0 {
			errs.Add("pay.annual_salary", "Annual salary is required")
		}
	case PayHourly:
		if p.HourlyRate.Cents <= 0 {
			errs.Add("pay.hourly_rate", "Hourly rate is required")
		}
	default:
		errs.Add("pay.pay_type", "Pay type must be salary or hourly")
	}
	if !slices.Contains(paySchedules, p.PaySchedule) {
		errs.Add("pay.pay_schedule", "Pay schedule is invalid")
	}
	if p.DefaultHours.IsNegative() || p.DefaultHours.GreaterThan(decimal.NewFromInt(168)) {
		errs.Add("pay.default_hours", "Default hours must be between 0 and 168")
	}
	return errs
}

func ValidateTax(f SetupForm) wizard.FieldErrors {
	errs := wizard.FieldErrors{}
	t := f.Tax
	if !slices.Contains(filingStatuses, t.FilingStatus) {
		errs.Add("tax.filing_status", "Filing status is required")
	}
	if t.Allowances < 0 {
		errs.Add("tax.allowances", "Allowances cannot be negative")
	}
	if t.ExtraWithholding.IsNegative() {
		errs.Add("tax.extra_withholding", "Extra withholding cannot be negative")
	}
	return errs
}

func ValidateBenefits(f SetupForm) wizard.FieldErrors {
	errs := wizard.FieldErrors{}
	r := f.Benefits.RetirementPercent
	if r.IsNegative() || r.GreaterThan(decimal.NewFromInt(100)) {
		errs.Add("benefits.retirement_percent", "Retirement contribution must be between 0 and 100")
	}
	return errs
}

func ValidateTimeOff(f SetupForm) wizard.FieldErrors {
	errs := wizard.FieldErrors{}
	t := f.TimeOff
	if t.VacationHours.IsNegative() {
		errs.Add("time_off.vacation_hours", "Vacation hours cannot be negative")
	}
	if t.SickHours.IsNegative() {
		errs.Add("time_off.sick_hours", "Sick hours cannot be negative")
	}
	if t.AccrualMethod != "" && !slices.Contains(accrualMethods, t.AccrualMethod) {
		errs.Add("time_off.accrual_method", "Accrual method is invalid")
	}
	return errs
}

// ValidateBanking checks bank fields only for direct deposit.
func ValidateBanking(f SetupForm) wizard.FieldErrors {
	errs := wizard.FieldErrors{}
	b := f.Banking
	switch b.PaymentMethod {
	case MethodCheck:
		return errs
	case MethodDirectDeposit:
	default:
		errs.Add("banking.payment_method", "Payment method must be direct_deposit or check")
		return errs
	}
	if b.BankName == "" {
		errs.Add("banking.bank_name", "Bank name is required")
	}
	if b.RoutingNumber == "" {
		errs.Add("banking.routing_number", "Routing number is required")
	} else if !ValidRoutingNumber(b.RoutingNumber) {
		errs.Add("banking.routing_number", "Routing number is invalid")
	}
	if n := len(digits(b.AccountNumber)); b.AccountNumber == "" {
		errs.Add("banking.account_number", "Account number is required")
	} else if n < 4 || n > 17 || n != len(b.AccountNumber) {
		errs.Add("banking.account_number", "Account number must be 4 to 17 digits")
	}
	if b.AccountType != AccountChecking && b.AccountType != AccountSavings {
		errs.Add("banking.account_type", "Account type must be checking or savings")
	}
	return errs
}

// ValidRoutingNumber applies the ABA checksum to a 9 digit routing number.
func ValidRoutingNumber(s string) bool {
	if len(s) != 9 {
		return false
	}
	var d [9]int
	for i := 0; i < 9; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
		d[i] = int(s[i] - '0')
	}
	sum := 3*(d[0]+d[3]+d[6]) + 7*(d[1]+d[4]+d[7]) + (d[2] + d[5] + d[8])
	return sum%10 == 0
}

func digits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
