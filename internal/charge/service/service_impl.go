package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/internal/charge/domain"
	"github.com/smallbiznis/recurra/internal/clock"
	customerdomain "github.com/smallbiznis/recurra/internal/customer/domain"
	"github.com/smallbiznis/recurra/internal/gateway/adapters"
	gatewaydomain "github.com/smallbiznis/recurra/internal/gateway/domain"
	obsmetrics "github.com/smallbiznis/recurra/internal/observability/metrics"
	"github.com/smallbiznis/recurra/internal/ratelimit"
	tenantdomain "github.com/smallbiznis/recurra/internal/tenant/domain"
	"github.com/smallbiznis/recurra/pkg/billing"
	"github.com/smallbiznis/recurra/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Customers  customerdomain.Service
	Tenants    tenantdomain.Service
	Gateways   *adapters.Registry
	Locker     *ratelimit.Locker   `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
	Notifier   domain.Notifier     `optional:"true"`
	PaidHooks  []domain.PaidHook   `group:"charge_paid_hooks"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	customers  customerdomain.Service
	tenants    tenantdomain.Service
	gateways   *adapters.Registry
	locker     *ratelimit.Locker
	obsMetrics *obsmetrics.Metrics
	notifier   domain.Notifier
	paidHooks  []domain.PaidHook

	inflight singleflight.Group
}

func New(p Params) domain.Service {
	return NewService(p)
}

func NewService(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("charge.service"),
		genID:      p.GenID,
		clock:      clk,
		repo:       p.Repo,
		customers:  p.Customers,
		tenants:    p.Tenants,
		gateways:   p.Gateways,
		locker:     p.Locker,
		obsMetrics: p.ObsMetrics,
		notifier:   p.Notifier,
		paidHooks:  p.PaidHooks,
	}
}

func (s *Service) Create(ctx context.Context, tenantID snowflake.ID, req domain.CreateChargeRequest) (domain.Charge, error) {
	if tenantID == 0 {
		return domain.Charge{}, domain.ErrInvalidTenant
	}
	req, err := normalizeCreate(req)
	if err != nil {
		return domain.Charge{}, err
	}

	if req.IdempotencyKey == "" {
		charge, _, err := s.createRemote(ctx, tenantID, req)
		if err != nil {
			return domain.Charge{}, err
		}
		return *charge, nil
	}

	charge, replayed, err := s.resolve(ctx, tenantID, req.IdempotencyKey, func(ctx context.Context) (*domain.Charge, bool, error) {
		return s.createRemote(ctx, tenantID, req)
	})
	if err != nil {
		return domain.Charge{}, err
	}
	if replayed {
		s.obsMetrics.RecordChargeReplayed(ctx, charge.Provider)
	}
	return *charge, nil
}

func normalizeCreate(req domain.CreateChargeRequest) (domain.CreateChargeRequest, error) {
	if req.CustomerID == 0 {
		return req, domain.ErrInvalidCustomer
	}
	if req.AmountCents <= 0 {
		return req, domain.ErrInvalidAmount
	}
	if req.DueDate.IsZero() {
		return req, domain.ErrInvalidDueDate
	}
	method, err := billing.ParsePaymentMethod(string(req.PaymentMethod))
	if err != nil {
		return req, domain.ErrInvalidPaymentMethod
	}
	req.PaymentMethod = method
	if req.SubscriptionID != nil && *req.SubscriptionID == 0 {
		req.SubscriptionID = nil
	}
	req.Description = strings.TrimSpace(req.Description)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	req.Fees = req.Fees.Normalize()
	return req, nil
}

// createRemote calls the tenant gateway and persists the outcome. The bool
// result reports that another writer won the idempotency key first.
func (s *Service) createRemote(ctx context.Context, tenantID snowflake.ID, req domain.CreateChargeRequest) (*domain.Charge, bool, error) {
	account, err := s.tenants.GetAccount(ctx, tenantID)
	if err != nil {
		return nil, false, err
	}
	gw, err := s.gateways.Resolve(account.Provider)
	if err != nil {
		return nil, false, err
	}
	customer, err := s.customers.GetByID(ctx, tenantID, req.CustomerID)
	if err != nil {
		if errors.Is(err, customerdomain.ErrNotFound) {
			return nil, false, domain.ErrInvalidCustomer
		}
		return nil, false, err
	}

	chargeID := s.genID.Generate()
	reference := req.IdempotencyKey
	if reference == "" {
		reference = chargeID.String()
	}
	creds := gatewaydomain.Credentials(account.Credentials)

	result, err := gw.CreateCharge(ctx, creds, gatewaydomain.CreateChargeRequest{
		Customer: gatewaydomain.Customer{
			Name:              customer.Name,
			Document:          customer.Document,
			Email:             customer.Email,
			Phone:             customer.Phone,
			AddressStreet:     customer.AddressStreet,
			AddressNumber:     customer.AddressNumber,
			AddressCity:       customer.AddressCity,
			AddressState:      customer.AddressState,
			AddressPostalCode: customer.AddressPostalCode,
		},
		AmountCents: req.AmountCents,
		DueDate:     req.DueDate,
		Method:      req.PaymentMethod,
		Description: req.Description,
		Fees:        req.Fees,
		Reference:   reference,
	})
	if err != nil {
		return nil, false, err
	}

	provider := strings.TrimSpace(result.Provider)
	if provider == "" {
		provider = gw.Provider()
	}
	now := s.clock.Now()

	charge := &domain.Charge{
		ID:                 chargeID,
		TenantID:           tenantID,
		CustomerID:         req.CustomerID,
		SubscriptionID:     req.SubscriptionID,
		AmountCents:        req.AmountCents,
		DueDate:            req.DueDate,
		PaymentMethod:      req.PaymentMethod,
		Status:             domain.StatusPending,
		Description:        req.Description,
		Provider:           provider,
		ProviderChargeID:   result.ProviderChargeID,
		InvoiceURL:         result.InvoiceURL,
		FineCents:          req.Fees.FineCents,
		InterestBps:        req.Fees.InterestBps,
		DiscountCents:      req.Fees.DiscountCents,
		DiscountDaysBefore: req.Fees.DiscountDaysBefore,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		charge.IdempotencyKey = &key
	}
	payment := &domain.Payment{
		ID:                s.genID.Generate(),
		TenantID:          tenantID,
		ChargeID:          chargeID,
		Provider:          provider,
		ProviderPaymentID: result.ProviderChargeID,
		Status:            domain.PaymentStatusCreated,
		RawPayload:        rawJSON(result.Raw),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	inserted := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.InsertIfAbsent(ctx, tx, charge)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		inserted = true
		return s.repo.InsertPayment(ctx, tx, payment)
	})
	if err != nil {
		s.cancelOrphan(ctx, gw, creds, tenantID, result.ProviderChargeID, "persist_failed")
		return nil, false, fmt.Errorf("persist charge: %w", err)
	}

	if !inserted {
		s.cancelOrphan(ctx, gw, creds, tenantID, result.ProviderChargeID, "lost_race")
		winner, err := s.repo.FindByIdempotencyKey(ctx, s.db, tenantID, req.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if winner == nil {
			return nil, false, domain.ErrCreationInFlight
		}
		return winner, true, nil
	}

	s.log.Info("charge created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("charge_id", charge.ID.String()),
		zap.String("provider", provider),
		zap.String("provider_charge_id", charge.ProviderChargeID),
		zap.String("due_date", charge.DueDate.String()),
	)
	s.obsMetrics.RecordChargeCreated(ctx, provider)
	if s.notifier != nil {
		s.notifier.ChargeCreated(ctx, *charge)
	}
	return charge, false, nil
}

// cancelOrphan drops a remote charge that has no local row. Failures are only logged.
func (s *Service) cancelOrphan(ctx context.Context, gw gatewaydomain.Gateway, creds gatewaydomain.Credentials, tenantID snowflake.ID, providerChargeID, reason string) {
	if providerChargeID == "" {
		return
	}
	fields := []zap.Field{
		zap.String("tenant_id", tenantID.String()),
		zap.String("provider", gw.Provider()),
		zap.String("provider_charge_id", providerChargeID),
		zap.String("reason", reason),
	}
	if err := gw.CancelCharge(context.WithoutCancel(ctx), creds, providerChargeID); err != nil {
		s.log.Warn("orphan remote charge not canceled", append(fields, zap.Error(err))...)
		return
	}
	s.log.Info("orphan remote charge canceled", fields...)
}

func (s *Service) GetByID(ctx context.Context, tenantID, id snowflake.ID) (domain.Charge, error) {
	if tenantID == 0 {
		return domain.Charge{}, domain.ErrInvalidTenant
	}
	if id == 0 {
		return domain.Charge{}, domain.ErrInvalidID
	}
	charge, err := s.repo.FindByID(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.Charge{}, err
	}
	if charge == nil {
		return domain.Charge{}, domain.ErrChargeNotFound
	}
	return *charge, nil
}

func (s *Service) List(ctx context.Context, tenantID snowflake.ID, req domain.ListChargeRequest) (domain.ListChargeResponse, error) {
	if tenantID == 0 {
		return domain.ListChargeResponse{}, domain.ErrInvalidTenant
	}
	if req.Status != "" && !req.Status.Valid() {
		return domain.ListChargeResponse{}, domain.ErrInvalidStatus
	}
	if !req.DueFrom.IsZero() && !req.DueTo.IsZero() && req.DueTo.Before(req.DueFrom) {
		return domain.ListChargeResponse{}, domain.ErrInvalidDueDate
	}

	page := req.Pagination.Normalize()
	items, err := s.repo.List(ctx, s.db, tenantID, req.ListChargeFilter, page)
	if err != nil {
		return domain.ListChargeResponse{}, err
	}
	items, info := pagination.Trim(items, page)

	charges := make([]domain.Charge, 0, len(items))
	for _, item := range items {
		charges = append(charges, *item)
	}
	return domain.ListChargeResponse{PageInfo: info, Charges: charges}, nil
}

func (s *Service) ListPayments(ctx context.Context, tenantID, id snowflake.ID) ([]domain.Payment, error) {
	if _, err := s.GetByID(ctx, tenantID, id); err != nil {
		return nil, err
	}
	items, err := s.repo.ListPayments(ctx, s.db, tenantID, id)
	if err != nil {
		return nil, err
	}
	payments := make([]domain.Payment, 0, len(items))
	for _, item := range items {
		payments = append(payments, *item)
	}
	return payments, nil
}

func (s *Service) MarkPaid(ctx context.Context, tenantID, id snowflake.ID, req domain.MarkPaidRequest) (domain.Charge, error) {
	charge, _, err := s.markPaid(ctx, tenantID, id, req)
	if err != nil {
		return domain.Charge{}, err
	}
	return charge, nil
}

// markPaid reports whether this call performed the transition.
func (s *Service) markPaid(ctx context.Context, tenantID, id snowflake.ID, req domain.MarkPaidRequest) (domain.Charge, bool, error) {
	if tenantID == 0 {
		return domain.Charge{}, false, domain.ErrInvalidTenant
	}
	if id == 0 {
		return domain.Charge{}, false, domain.ErrInvalidID
	}
	source := strings.ToLower(strings.TrimSpace(req.Source))
	switch source {
	case "":
		source = domain.SourceManual
	case domain.SourceManual, domain.SourceWebhook:
	default:
		return domain.Charge{}, false, domain.ErrInvalidSource
	}

	var (
		result  *domain.Charge
		applied bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrChargeNotFound
		}
		switch current.Status {
		case domain.StatusPaid:
			result = current
			return nil
		case domain.StatusCanceled:
			return domain.ErrChargeCanceled
		}

		now := s.clock.Now()
		affected, err := s.repo.MarkPaid(ctx, tx, tenantID, id, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			// Lost a concurrent transition; report whatever won.
			latest, err := s.repo.FindByID(ctx, tx, tenantID, id)
			if err != nil {
				return err
			}
			if latest != nil && latest.Status == domain.StatusPaid {
				result = latest
				return nil
			}
			return domain.ErrChargeCanceled
		}

		if err := s.confirmPayment(ctx, tx, current, source, req.Raw); err != nil {
			return err
		}

		updated, err := s.repo.FindByID(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}
		result = updated
		applied = true
		return nil
	})
	if err != nil {
		return domain.Charge{}, false, err
	}
	if result == nil {
		return domain.Charge{}, false, domain.ErrChargeNotFound
	}

	if applied {
		s.log.Info("charge paid",
			zap.String("tenant_id", tenantID.String()),
			zap.String("charge_id", id.String()),
			zap.String("source", source),
		)
		s.obsMetrics.RecordChargePaid(ctx, result.Provider, source)
		s.runPaidHooks(ctx, *result)
	}
	return *result, applied, nil
}

func (s *Service) confirmPayment(ctx context.Context, tx *gorm.DB, charge *domain.Charge, source string, raw json.RawMessage) error {
	confirmed, err := s.repo.HasConfirmedPayment(ctx, tx, charge.ID)
	if err != nil {
		return err
	}
	if confirmed {
		return nil
	}

	now := s.clock.Now()
	affected, err := s.repo.ConfirmCreatedPayment(ctx, tx, charge.ID, source, rawJSON(raw), now)
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	return s.repo.InsertPayment(ctx, tx, &domain.Payment{
		ID:                s.genID.Generate(),
		TenantID:          charge.TenantID,
		ChargeID:          charge.ID,
		Provider:          charge.Provider,
		ProviderPaymentID: charge.ProviderChargeID,
		Status:            domain.PaymentStatusConfirmed,
		Source:            source,
		RawPayload:        rawJSON(raw),
		ConfirmedAt:       &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
}

func (s *Service) runPaidHooks(ctx context.Context, charge domain.Charge) {
	for i, hook := range s.paidHooks {
		if hook == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("paid hook panic recovered", zap.Int("hook", i), zap.Any("panic", r))
				}
			}()
			if err := hook(ctx, charge); err != nil {
				s.log.Warn("paid hook failed",
					zap.Int("hook", i),
					zap.String("charge_id", charge.ID.String()),
					zap.Error(err),
				)
			}
		}()
	}
}

func (s *Service) Cancel(ctx context.Context, tenantID, id snowflake.ID) (domain.Charge, error) {
	current, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return domain.Charge{}, err
	}
	switch current.Status {
	case domain.StatusPaid:
		return domain.Charge{}, domain.ErrChargeAlreadyPaid
	case domain.StatusCanceled:
		return current, nil
	}

	if current.ProviderChargeID != "" {
		account, err := s.tenants.GetAccount(ctx, tenantID)
		if err != nil {
			return domain.Charge{}, err
		}
		gw, err := s.gateways.Resolve(current.Provider)
		if err != nil {
			return domain.Charge{}, err
		}
		if err := gw.CancelCharge(ctx, gatewaydomain.Credentials(account.Credentials), current.ProviderChargeID); err != nil {
			return domain.Charge{}, err
		}
	}

	affected, err := s.repo.MarkCanceled(ctx, s.db, tenantID, id, s.clock.Now())
	if err != nil {
		return domain.Charge{}, err
	}

	updated, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return domain.Charge{}, err
	}
	if affected == 0 {
		if updated.Status == domain.StatusPaid {
			s.log.Warn("charge paid while cancel was in flight",
				zap.String("tenant_id", tenantID.String()),
				zap.String("charge_id", id.String()),
			)
			return domain.Charge{}, domain.ErrChargeAlreadyPaid
		}
		return updated, nil
	}

	s.log.Info("charge canceled",
		zap.String("tenant_id", tenantID.String()),
		zap.String("charge_id", id.String()),
	)
	s.obsMetrics.RecordChargeCanceled(ctx, updated.Provider)
	return updated, nil
}

func (s *Service) MarkOverdue(ctx context.Context, req domain.MarkOverdueRequest) (int64, error) {
	if req.AsOf.IsZero() {
		return 0, domain.ErrInvalidDueDate
	}
	affected, err := s.repo.MarkOverdue(ctx, s.db, req.TenantID, req.AsOf, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		s.log.Info("charges marked overdue",
			zap.String("as_of", req.AsOf.String()),
			zap.Int64("count", affected),
		)
	}
	return affected, nil
}

func (s *Service) ConfirmByProvider(ctx context.Context, tenantID snowflake.ID, req domain.ConfirmByProviderRequest) (domain.ConfirmResult, error) {
	if tenantID == 0 {
		return domain.ConfirmResult{}, domain.ErrInvalidTenant
	}
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	ref := strings.TrimSpace(req.ProviderChargeID)
	if provider == "" || ref == "" {
		return domain.ConfirmResult{Outcome: domain.ConfirmNotFound}, nil
	}

	charge, err := s.repo.FindByProviderRef(ctx, s.db, tenantID, provider, ref)
	if err != nil {
		return domain.ConfirmResult{}, err
	}
	if charge == nil {
		return domain.ConfirmResult{Outcome: domain.ConfirmNotFound}, nil
	}

	switch charge.Status {
	case domain.StatusPaid:
		return domain.ConfirmResult{Outcome: domain.ConfirmAlreadyPaid, Charge: charge}, nil
	case domain.StatusCanceled:
		s.log.Warn("payment confirmed for canceled charge",
			zap.String("tenant_id", tenantID.String()),
			zap.String("charge_id", charge.ID.String()),
			zap.String("provider_charge_id", ref),
		)
		return domain.ConfirmResult{Outcome: domain.ConfirmCanceled, Charge: charge}, nil
	}

	updated, applied, err := s.markPaid(ctx, tenantID, charge.ID, domain.MarkPaidRequest{
		Source: domain.SourceWebhook,
		Raw:    req.Raw,
	})
	if err != nil {
		if errors.Is(err, domain.ErrChargeCanceled) {
			return domain.ConfirmResult{Outcome: domain.ConfirmCanceled, Charge: charge}, nil
		}
		return domain.ConfirmResult{}, err
	}
	outcome := domain.ConfirmApplied
	if !applied {
		outcome = domain.ConfirmAlreadyPaid
	}
	return domain.ConfirmResult{Outcome: outcome, Charge: &updated}, nil
}

func rawJSON(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return datatypes.JSON(raw)
}
