package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryTotal is the subtotal and count of one movement category.
type CategoryTotal struct {
	Category  MovementCategory  `json:"category"`
	Direction MovementDirection `json:"direction"`
	Total     decimal.Decimal   `json:"total"`
	Count     int               `json:"count"`
}

// FinancialSummary holds the figures of one reporting window.
type FinancialSummary struct {
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	Balance    decimal.Decimal `json:"balance"`
	Tuition    CategoryTotal   `json:"tuition"`
	Rental     CategoryTotal   `json:"rental"`
	Commission CategoryTotal   `json:"commission"`
}

// Movement is one payment flattened into a report line.
type Movement struct {
	PaymentID     string            `json:"payment_id"`
	Date          time.Time         `json:"date"`
	Direction     MovementDirection `json:"direction"`
	Category      MovementCategory  `json:"category"`
	Label         string            `json:"label"`
	Amount        decimal.Decimal   `json:"amount"`
	StudentName   *string           `json:"student_name,omitempty"`
	ProfessorName *string           `json:"professor_name,omitempty"`
	CourseName    *string           `json:"course_name,omitempty"`
}

// SummaryChange holds changePercent for each summary figure.
type SummaryChange struct {
	Income          decimal.Decimal `json:"income"`
	Expense         decimal.Decimal `json:"expense"`
	Balance         decimal.Decimal `json:"balance"`
	TuitionTotal    decimal.Decimal `json:"tuition_total"`
	TuitionCount    decimal.Decimal `json:"tuition_count"`
	RentalTotal     decimal.Decimal `json:"rental_total"`
	RentalCount     decimal.Decimal `json:"rental_count"`
	CommissionTotal decimal.Decimal `json:"commission_total"`
	CommissionCount decimal.Decimal `json:"commission_count"`
}

// FinancialReport is the monthly report with its comparison to the prior month.
type FinancialReport struct {
	Month     int              `json:"month"`
	Year      int              `json:"year"`
	Current   FinancialSummary `json:"current"`
	Previous  FinancialSummary `json:"previous"`
	Change    SummaryChange    `json:"change_percent"`
	Movements []Movement       `json:"movements"`
}
