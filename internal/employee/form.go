// Package employee holds the employee setup form, its eight wizard steps
// and the record produced on submission.
package employee

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"ledgerdesk/internal/core"
)

// Enumerated values accepted by the form.
const (
	PaySalary = "salary"
	PayHourly = "hourly"

	MethodDirectDeposit = "direct_deposit"
	MethodCheck         = "check"

	AccountChecking = "checking"
	AccountSavings  = "savings"

	AccrualPerPayPeriod = "per_pay_period"
)

var (
	employmentTypes = []string{"full_time", "part_time", "contractor", "seasonal"}
	paySchedules    = []string{"weekly", "biweekly", "semimonthly", "monthly"}
	filingStatuses  = []string{"single", "married_joint", "married_separate", "head_of_household"}
	accrualMethods  = []string{AccrualPerPayPeriod, "per_hour_worked", "annual_upfront"}
)

var ErrUnknownField = errors.New("unknown employee field")

type Personal struct {
	FirstName     string    `json:"first_name"`
	MiddleName    string    `json:"middle_name,omitempty"`
	LastName      string    `json:"last_name"`
	SSN           string    `json:"ssn,omitempty"`
	DateOfBirth   core.Date `json:"date_of_birth"`
	MaritalStatus string    `json:"marital_status,omitempty"`
}

type Contact struct {
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Street         string `json:"street"`
	City           string `json:"city"`
	State          string `json:"state"`
	Zip            string `json:"zip"`
	EmergencyName  string `json:"emergency_name,omitempty"`
	EmergencyPhone string `json:"emergency_phone,omitempty"`
}

type Employment struct {
	HireDate       core.Date `json:"hire_date"`
	JobTitle       string    `json:"job_title"`
	Department     string    `json:"department,omitempty"`
	EmploymentType string    `json:"employment_type"`
	Manager        string    `json:"manager,omitempty"`
	WorkLocation   string    `json:"work_location,omitempty"`
}

type Pay struct {
	PayType      string          `json:"pay_type"`
	AnnualSalary core.Money      `json:"annual_salary"`
	HourlyRate   core.Money      `json:"hourly_rate"`
	PaySchedule  string          `json:"pay_schedule"`
	DefaultHours decimal.Decimal `json:"default_hours"`
}

type Tax struct {
	FilingStatus     string     `json:"filing_status"`
	Allowances       int        `json:"allowances"`
	ExtraWithholding core.Money `json:"extra_withholding"`
	StateCode        string     `json:"state_code,omitempty"`
	Exempt           bool       `json:"exempt,omitempty"`
}

type Benefits struct {
	HealthPlan        string          `json:"health_plan,omitempty"`
	DentalPlan        string          `json:"dental_plan,omitempty"`
	VisionPlan        string          `json:"vision_plan,omitempty"`
	RetirementPercent decimal.Decimal `json:"retirement_percent"`
}

type TimeOff struct {
	VacationHours decimal.Decimal `json:"vacation_hours"`
	SickHours     decimal.Decimal `json:"sick_hours"`
	AccrualMethod string          `json:"accrual_method,omitempty"`
}

type Banking struct {
	PaymentMethod string `json:"payment_method"`
	BankName      string `json:"bank_name,omitempty"`
	RoutingNumber string `json:"routing_number,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	AccountType   string `json:"account_type,omitempty"`
}

// SetupForm aggregates every field collected by the setup wizard.
type SetupForm struct {
	Personal   Personal   `json:"personal"`
	Contact    Contact    `json:"contact"`
	Employment Employment `json:"employment"`
	Pay        Pay        `json:"pay"`
	Tax        Tax        `json:"tax"`
	Benefits   Benefits   `json:"benefits"`
	TimeOff    TimeOff    `json:"time_off"`
	Banking    Banking    `json:"banking"`
}

// NewSetupForm returns a form holding the defaults shown when the wizard
// opens.
func NewSetupForm() SetupForm {
	return SetupForm{
		Employment: Employment{EmploymentType: "full_time"},
		Pay:        Pay{PayType: PaySalary, PaySchedule: "biweekly", DefaultHours: decimal.NewFromInt(40)},
		Tax:        Tax{FilingStatus: "single"},
		TimeOff:    TimeOff{AccrualMethod: AccrualPerPayPeriod},
		Banking:    Banking{PaymentMethod: MethodDirectDeposit, AccountType: AccountChecking},
	}
}

// Field names a single form field as "group.field".
type Field string

// Fields lists every settable field.
func Fields() []Field {
	out := make([]Field, 0, len(setters))
	for f := range setters {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type setter func(f *SetupForm, v string)

func text(dst func(*SetupForm) *string) setter {
	return func(f *SetupForm, v string) { *dst(f) = strings.TrimSpace(v) }
}

func lower(dst func(*SetupForm) *string) setter {
	return func(f *SetupForm, v string) { *dst(f) = strings.ToLower(strings.TrimSpace(v)) }
}

func date(dst func(*SetupForm) *core.Date) setter {
	return func(f *SetupForm, v string) {
		d, err := core.ParseDate(v)
		if err != nil {
			d = core.Date{}
		}
		*dst(f) = d
	}
}

func money(dst func(*SetupForm) *core.Money) setter {
	return func(f *SetupForm, v string) { *dst(f) = core.CoerceCents(v) }
}

func number(dst func(*SetupForm) *decimal.Decimal) setter {
	return func(f *SetupForm, v string) { *dst(f) = core.CoerceQuantity(v) }
}

var setters = map[Field]setter{
	"personal.first_name":     text(func(f *SetupForm) *string { return &f.Personal.FirstName }),
	"personal.middle_name":    text(func(f *SetupForm) *string { return &f.Personal.MiddleName }),
	"personal.last_name":      text(func(f *SetupForm) *string { return &f.Personal.LastName }),
	"personal.ssn":            text(func(f *SetupForm) *string { return &f.Personal.SSN }),
	"personal.date_of_birth":  date(func(f *SetupForm) *core.Date { return &f.Personal.DateOfBirth }),
	"personal.marital_status": lower(func(f *SetupForm) *string { return &f.Personal.MaritalStatus }),

	"contact.email":           lower(func(f *SetupForm) *string { return &f.Contact.Email }),
	"contact.phone":           text(func(f *SetupForm) *string { return &f.Contact.Phone }),
	"contact.street":          text(func(f *SetupForm) *string { return &f.Contact.Street }),
	"contact.city":            text(func(f *SetupForm) *string { return &f.Contact.City }),
	"contact.state":           text(func(f *SetupForm) *string { return &f.Contact.State }),
	"contact.zip":             text(func(f *SetupForm) *string { return &f.Contact.Zip }),
	"contact.emergency_name":  text(func(f *SetupForm) *string { return &f.Contact.EmergencyName }),
	"contact.emergency_phone": text(func(f *SetupForm) *string { return &f.Contact.EmergencyPhone }),

	"employment.hire_date":       date(func(f *SetupForm) *core.Date { return &f.Employment.HireDate }),
	"employment.job_title":       text(func(f *SetupForm) *string { return &f.Employment.JobTitle }),
	"employment.department":      text(func(f *SetupForm) *string { return &f.Employment.Department }),
	"employment.employment_type": lower(func(f *SetupForm) *string { return &f.Employment.EmploymentType }),
	"employment.manager":         text(func(f *SetupForm) *string { return &f.Employment.Manager }),
	"employment.work_location":   text(func(f *SetupForm) *string { return &f.Employment.WorkLocation }),

	"pay.pay_type":      lower(func(f *SetupForm) *string { return &f.Pay.PayType }),
	"pay.annual_salary": money(func(f *SetupForm) *core.Money { return &f.Pay.AnnualSalary }),
	"pay.hourly_rate":   money(func(f *SetupForm) *core.Money { return &f.Pay.HourlyRate }),
	"pay.pay_schedule":  lower(func(f *SetupForm) *string { return &f.Pay.PaySchedule }),
	"pay.default_hours": number(func(f *SetupForm) *decimal.Decimal { return &f.Pay.DefaultHours }),

	"tax.filing_status": lower(func(f *SetupForm) *string { return &f.Tax.FilingStatus }),
	"tax.allowances": func(f *SetupForm, v string) {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			n = 0
		}
		f.Tax.Allowances = n
	},
	"tax.extra_withholding": money(func(f *SetupForm) *core.Money { return &f.Tax.ExtraWithholding }),
	"tax.state_code": func(f *SetupForm, v string) {
		f.Tax.StateCode = strings.ToUpper(strings.TrimSpace(v))
	},
	"tax.exempt": func(f *SetupForm, v string) {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		f.Tax.Exempt = err == nil && b
	},

	"benefits.health_plan":        text(func(f *SetupForm) *string { return &f.Benefits.HealthPlan }),
	"benefits.dental_plan":        text(func(f *SetupForm) *string { return &f.Benefits.DentalPlan }),
	"benefits.vision_plan":        text(func(f *SetupForm) *string { return &f.Benefits.VisionPlan }),
	"benefits.retirement_percent": number(func(f *SetupForm) *decimal.Decimal { return &f.Benefits.RetirementPercent }),

	"time_off.vacation_hours": number(func(f *SetupForm) *decimal.Decimal { return &f.TimeOff.VacationHours }),
	"time_off.sick_hours":     number(func(f *SetupForm) *decimal.Decimal { return &f.TimeOff.SickHours }),
	"time_off.accrual_method": lower(func(f *SetupForm) *string { return &f.TimeOff.AccrualMethod }),

	"banking.payment_method": lower(func(f *SetupForm) *string { return &f.Banking.PaymentMethod }),
	"banking.bank_name":      text(func(f *SetupForm) *string { return &f.Banking.BankName }),
	"banking.routing_number": text(func(f *SetupForm) *string { return &f.Banking.RoutingNumber }),
	"banking.account_number": text(func(f *SetupForm) *string { return &f.Banking.AccountNumber }),
	"banking.account_type":   lower(func(f *SetupForm) *string { return &f.Banking.AccountType }),
}

// Set updates one field from its text form. Numeric and date input is
// coerced (invalid becomes zero); only an unknown field is an error.
func (f *SetupForm) Set(field Field, value string) error {
	s, ok := setters[field]
	if !ok {
		return ErrUnknownField
	}
	s(f, value)
	return nil
}

// Apply sets several fields at once. Unknown fields are reported together
// and leave the form unchanged.
func (f *SetupForm) Apply(values map[Field]string) error {
	var unknown []string
	for k := range values {
		if _, ok := setters[k]; !ok {
			unknown = append(unknown, string(k))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.Join(ErrUnknownField, errors.New(strings.Join(unknown, ", ")))
	}
	for k, v := range values {
		setters[k](f, v)
	}
	return nil
}
