package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	chargedomain "github.com/smallbiznis/recurra/internal/charge/domain"
	customerrepo "github.com/smallbiznis/recurra/internal/customer/repository"
	customerservice "github.com/smallbiznis/recurra/internal/customer/service"
	"github.com/smallbiznis/recurra/internal/providers/email"
	"github.com/smallbiznis/recurra/internal/testutil"
	"github.com/smallbiznis/recurra/pkg/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMail struct {
	to       []string
	template string
	data     map[string]any
}

type recordingEmail struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (r *recordingEmail) Send(context.Context, []string, string, string) error {
	return nil
}

func (r *recordingEmail) SendTemplate(_ context.Context, to []string, templateName string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fields, _ := data.(map[string]any)
	r.sent = append(r.sent, sentMail{to: to, template: templateName, data: fields})
	return r.err
}

func (r *recordingEmail) messages() []sentMail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentMail(nil), r.sent...)
}

func newDispatcher(t *testing.T, provider email.Provider, customerEmail string) *Dispatcher {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.SeedCustomer(t, db, testutil.CustomerSeed{ID: 100, TenantID: 1, Name: "Maria", Email: customerEmail})
	return New(Params{
		Log:   zap.NewNop(),
		Email: provider,
		Customers: customerservice.New(customerservice.Params{
			DB:   db,
			Log:  zap.NewNop(),
			Repo: customerrepo.Provide(),
		}),
	})
}

func sampleCharge() chargedomain.Charge {
	return chargedomain.Charge{
		ID:          snowflake.ID(500),
		TenantID:    1,
		CustomerID:  100,
		AmountCents: 9990,
		DueDate:     calendar.New(2024, time.January, 10),
		Description: "Plano mensal",
		InvoiceURL:  "https://pay.example/mock_1",
	}
}

func TestChargeCreatedSendsTemplate(t *testing.T) {
	mail := &recordingEmail{}
	d := newDispatcher(t, mail, "maria@example.com")

	d.ChargeCreated(context.Background(), sampleCharge())
	d.Wait()

	sent := mail.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"maria@example.com"}, sent[0].to)
	assert.Equal(t, email.TemplateChargeCreated, sent[0].template)
	assert.Equal(t, "R$ 99,90", sent[0].data["amount"])
	assert.Equal(t, "2024-01-10", sent[0].data["due_date"])
	assert.Equal(t, "https://pay.example/mock_1", sent[0].data["invoice_url"])
}

func TestPaidHookSendsReceipt(t *testing.T) {
	mail := &recordingEmail{}
	d := newDispatcher(t, mail, "maria@example.com")

	require.NoError(t, d.PaidHook(context.Background(), sampleCharge()))
	d.Wait()

	sent := mail.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, email.TemplateChargePaid, sent[0].template)
}

func TestDispatchSkipsCustomersWithoutEmail(t *testing.T) {
	mail := &recordingEmail{}
	d := newDispatcher(t, mail, "")

	d.ChargeCreated(context.Background(), sampleCharge())
	d.Wait()

	assert.Empty(t, mail.messages())
}

func TestDispatchSwallowsFailures(t *testing.T) {
	mail := &recordingEmail{err: errors.New("smtp down")}
	d := newDispatcher(t, mail, "maria@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	d.ChargeCreated(ctx, sampleCharge())
	cancel()
	d.Wait()

	assert.Len(t, mail.messages(), 1)
}

func TestNilDispatcherIsInert(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() { d.ChargeCreated(context.Background(), sampleCharge()) })
}
