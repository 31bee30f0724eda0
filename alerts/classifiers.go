// Package alerts turns the store's business records into prioritized notifications and keeps the
// latest set of notifications up to date.
package alerts

import (
	"fmt"
	"time"

	"github.com/pdv-retail/business-alerts/common"
	"github.com/pdv-retail/business-alerts/model"
	"github.com/shopspring/decimal"
)

// Classification windows, in days.
const (
	payableLookahead       = 7
	payableOverdueLimit    = 30
	payableWarningDays     = 3
	receivableCriticalDays = 30
	checkLookahead         = 3
)

// Evaluation is the point in time that records are classified against.
type Evaluation struct {
	Now      time.Time
	Location *time.Location
}

// NewEvaluation returns an evaluation for now as observed in loc.
func NewEvaluation(now time.Time, loc *time.Location) Evaluation {
	if loc == nil {
		loc = time.UTC
	}
	return Evaluation{Now: now.In(loc), Location: loc}
}

// daysUntil returns the number of calendar days from today until t.
func (e Evaluation) daysUntil(t time.Time) int {
	return common.DaysBetween(e.Now, t, e.Location)
}

// Outcome is the result of classifying a single record: either a notification or the reason the
// record was skipped.
type Outcome struct {
	RecordID     string
	Notification *model.Notification
	Reason       string
}

// Matched returns true if the record produced a notification.
func (o Outcome) Matched() bool {
	return o.Notification != nil
}

func matched(recordID string, n *model.Notification) Outcome {
	return Outcome{RecordID: recordID, Notification: n}
}

func skipped(recordID, format string, a ...interface{}) Outcome {
	return Outcome{RecordID: recordID, Reason: fmt.Sprintf(format, a...)}
}

// Classification collects the outcomes of one classifier over one collection.
type Classification struct {
	Category      model.Category
	Notifications []*model.Notification
	Skipped       []Outcome
}

// classifyAll applies a per-record classifier to every record of a collection.
func classifyAll[T any](
	category model.Category,
	records []T,
	e Evaluation,
	classify func(T, Evaluation) Outcome,
) Classification {
	result := Classification{Category: category, Notifications: make([]*model.Notification, 0)}
	for _, record := range records {
		outcome := classify(record, e)
		if outcome.Matched() {
			result.Notifications = append(result.Notifications, outcome.Notification)
		} else {
			result.Skipped = append(result.Skipped, outcome)
		}
	}
	return result
}

func days(n int) string {
	if n == 1 {
		return "1 dia"
	}
	return fmt.Sprintf("%d dias", n)
}

// ClassifyProduct flags products whose stock is at or below the configured minimum. Negative
// stock quantities are treated as invalid data.
func ClassifyProduct(p model.Product, _ Evaluation) Outcome {
	stock := p.StockQuantity
	if stock.IsNegative() {
		return skipped(p.ID, "negative stock quantity %s", stock.String())
	}
	if stock.GreaterThan(p.MinStock) {
		return skipped(p.ID, "stock above minimum")
	}

	severity := model.SeverityWarning
	title := "Estoque baixo"
	if stock.Equal(decimal.Zero) {
		severity = model.SeverityCritical
		title = "Produto sem estoque"
	}

	return matched(p.ID, &model.Notification{
		ID:       "stock-" + p.ID,
		Type:     model.TypeLowStock,
		Severity: severity,
		Title:    title,
		Message: fmt.Sprintf(
			"%s: estoque atual %s, mínimo %s",
			p.Name, common.FormatQuantity(stock), common.FormatQuantity(p.MinStock),
		),
		Icon: "package",
		Data: p,
	})
}

// ClassifyProducts applies ClassifyProduct to every product.
func ClassifyProducts(products []model.Product, e Evaluation) Classification {
	return classifyAll(model.CategoryLowStock, products, e, ClassifyProduct)
}

// ClassifyPayable flags unpaid bills due within the next week or overdue by at most 30 days.
func ClassifyPayable(p model.Payable, e Evaluation) Outcome {
	if p.Status == model.PayableStatusPaid {
		return skipped(p.ID, "already paid")
	}

	dueDate, err := common.ParseDate(p.DueDate, e.Location)
	if err != nil {
		return skipped(p.ID, "invalid due date: %s", err.Error())
	}

	daysUntilDue := e.daysUntil(dueDate)
	if daysUntilDue > payableLookahead || daysUntilDue < -payableOverdueLimit {
		return skipped(p.ID, "due in %d days, outside the alert window", daysUntilDue)
	}

	amount := common.FormatCurrency(p.Amount)
	var severity model.Severity
	var title, message string
	switch {
	case daysUntilDue < 0:
		severity = model.SeverityCritical
		title = "Conta vencida"
		message = fmt.Sprintf("%s (%s) venceu há %s", p.Description, amount, days(-daysUntilDue))
	case daysUntilDue == 0:
		severity = model.SeverityWarning
		title = "Conta vence hoje"
		message = fmt.Sprintf("%s (%s) vence hoje", p.Description, amount)
	case daysUntilDue <= payableWarningDays:
		severity = model.SeverityWarning
		title = "Conta a vencer"
		message = fmt.Sprintf("%s (%s) vence em %s", p.Description, amount, days(daysUntilDue))
	default:
		severity = model.SeverityInfo
		title = "Conta a vencer"
		message = fmt.Sprintf(
			"%s (%s) vence em %s, %s", p.Description, amount, days(daysUntilDue), common.FormatDate(dueDate),
		)
	}

	return matched(p.ID, &model.Notification{
		ID:       "bill-" + p.ID,
		Type:     model.TypeUpcomingBill,
		Severity: severity,
		Title:    title,
		Message:  message,
		Icon:     "receipt",
		Data:     p,
	})
}

// ClassifyPayables applies ClassifyPayable to every payable.
func ClassifyPayables(payables []model.Payable, e Evaluation) Classification {
	return classifyAll(model.CategoryUpcomingBills, payables, e, ClassifyPayable)
}

// ClassifyReceivable flags amounts that should already have been received. Receivables due today
// are not overdue yet.
func ClassifyReceivable(r model.Receivable, e Evaluation) Outcome {
	if r.Status == model.ReceivableStatusReceived {
		return skipped(r.ID, "already received")
	}

	dueDate, err := common.ParseDate(r.DueDate, e.Location)
	if err != nil {
		return skipped(r.ID, "invalid due date: %s", err.Error())
	}

	daysOverdue := -e.daysUntil(dueDate)
	if daysOverdue <= 0 {
		return skipped(r.ID, "not overdue")
	}

	severity := model.SeverityWarning
	if daysOverdue > receivableCriticalDays {
		severity = model.SeverityCritical
	}

	return matched(r.ID, &model.Notification{
		ID:       "receivable-" + r.ID,
		Type:     model.TypeOverdueReceivable,
		Severity: severity,
		Title:    "Recebimento em atraso",
		Message: fmt.Sprintf(
			"%s: %s em atraso há %s", r.CustomerName, common.FormatCurrency(r.Amount), days(daysOverdue),
		),
		Icon: "alert-circle",
		Data: r,
	})
}

// ClassifyReceivables applies ClassifyReceivable to every receivable.
func ClassifyReceivables(receivables []model.Receivable, e Evaluation) Classification {
	return classifyAll(model.CategoryOverdueReceivables, receivables, e, ClassifyReceivable)
}

// ClassifyCustomer flags customers whose birthday is today.
func ClassifyCustomer(c model.Customer, e Evaluation) Outcome {
	if c.BirthDate == "" {
		return skipped(c.ID, "no birth date")
	}

	birthDate, err := common.ParseDate(c.BirthDate, e.Location)
	if err != nil {
		return skipped(c.ID, "invalid birth date: %s", err.Error())
	}
	if !common.SameMonthDay(birthDate, e.Now) {
		return skipped(c.ID, "not a birthday")
	}

	message := fmt.Sprintf("Hoje é aniversário de %s", c.Name)
	if c.Email != "" && common.ValidateEmailAddress(c.Email) == nil {
		message = fmt.Sprintf("%s (%s)", message, c.Email)
	}

	return matched(c.ID, &model.Notification{
		ID:       "birthday-" + c.ID,
		Type:     model.TypeBirthday,
		Severity: model.SeverityInfo,
		Title:    "Aniversariante do dia",
		Message:  message,
		Icon:     "cake",
		Data:     c,
	})
}

// ClassifyCustomers applies ClassifyCustomer to every customer.
func ClassifyCustomers(customers []model.Customer, e Evaluation) Classification {
	return classifyAll(model.CategoryBirthdays, customers, e, ClassifyCustomer)
}

// ClassifyCheck flags pending checks that clear within the next three days. The compensation
// date is used when present, otherwise the due date.
func ClassifyCheck(c model.Check, e Evaluation) Outcome {
	if c.Status != model.CheckStatusPending {
		return skipped(c.ID, "status is %q", c.Status)
	}

	dateValue := c.CompensationDate
	if dateValue == "" {
		dateValue = c.DueDate
	}
	compensationDate, err := common.ParseDate(dateValue, e.Location)
	if err != nil {
		return skipped(c.ID, "invalid compensation date: %s", err.Error())
	}

	daysUntilCompensation := e.daysUntil(compensationDate)
	if daysUntilCompensation < 0 || daysUntilCompensation > checkLookahead {
		return skipped(c.ID, "clears in %d days, outside the alert window", daysUntilCompensation)
	}

	when := "compensa hoje"
	if daysUntilCompensation > 0 {
		when = "compensa em " + days(daysUntilCompensation)
	}
	issuer := c.IssuerName
	if issuer == "" {
		issuer = c.Bank
	}

	return matched(c.ID, &model.Notification{
		ID:       "check-" + c.ID,
		Type:     model.TypePendingCheck,
		Severity: model.SeverityInfo,
		Title:    "Cheque a compensar",
		Message: fmt.Sprintf(
			"Cheque nº %s de %s (%s) %s", c.Number, issuer, common.FormatCurrency(c.Amount), when,
		),
		Icon: "banknote",
		Data: c,
	})
}

// ClassifyChecks applies ClassifyCheck to every check.
func ClassifyChecks(checks []model.Check, e Evaluation) Classification {
	return classifyAll(model.CategoryPendingChecks, checks, e, ClassifyCheck)
}
