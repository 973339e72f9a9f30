// Package notification sends best-effort customer emails about charges.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	chargedomain "github.com/smallbiznis/recurra/internal/charge/domain"
	customerdomain "github.com/smallbiznis/recurra/internal/customer/domain"
	"github.com/smallbiznis/recurra/internal/providers/email"
	"github.com/smallbiznis/recurra/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultTimeout = 15 * time.Second

type Params struct {
	fx.In

	Log       *zap.Logger
	Email     email.Provider
	Customers customerdomain.Service
}

// Dispatcher delivers in background goroutines. Failures are logged and
// never reach the caller.
type Dispatcher struct {
	log       *zap.Logger
	email     email.Provider
	customers customerdomain.Service
	timeout   time.Duration
	wg        sync.WaitGroup
}

func New(p Params) *Dispatcher {
	return &Dispatcher{
		log:       p.Log.Named("notification"),
		email:     p.Email,
		customers: p.Customers,
		timeout:   defaultTimeout,
	}
}

func (d *Dispatcher) ChargeCreated(ctx context.Context, charge chargedomain.Charge) {
	d.dispatch(ctx, email.TemplateChargeCreated, charge)
}

// PaidHook is registered with the charge service.
func (d *Dispatcher) PaidHook(ctx context.Context, charge chargedomain.Charge) error {
	d.dispatch(ctx, email.TemplateChargePaid, charge)
	return nil
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, templateName string, charge chargedomain.Charge) {
	if d == nil || d.email == nil {
		return
	}
	// Detach from the request so delivery survives the response being written.
	base := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("notification panic recovered", zap.Any("panic", r))
			}
		}()

		sendCtx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()

		if err := d.deliver(sendCtx, templateName, charge); err != nil {
			d.log.Warn("notification failed",
				zap.String("template", templateName),
				zap.String("charge_id", charge.ID.String()),
				zap.String("tenant_id", charge.TenantID.String()),
				zap.Error(err),
			)
		}
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, templateName string, charge chargedomain.Charge) error {
	customer, err := d.customers.GetByID(ctx, charge.TenantID, charge.CustomerID)
	if err != nil {
		return fmt.Errorf("load customer: %w", err)
	}
	to := strings.TrimSpace(customer.Email)
	if to == "" {
		d.log.Debug("customer has no email, skipping notification",
			zap.String("customer_id", customer.ID.String()),
		)
		return nil
	}

	return d.email.SendTemplate(ctx, []string{to}, templateName, map[string]any{
		"customer_name": customer.Name,
		"amount":        formatBRL(charge.AmountCents),
		"due_date":      charge.DueDate.String(),
		"description":   charge.Description,
		"invoice_url":   charge.InvoiceURL,
	})
}

func formatBRL(cents int64) string {
	return "R$ " + strings.Replace(money.Decimal(cents), ".", ",", 1)
}
