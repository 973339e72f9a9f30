package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/internal/clock"
	customerdomain "github.com/smallbiznis/recurra/internal/customer/domain"
	"github.com/smallbiznis/recurra/internal/subscription/domain"
	"github.com/smallbiznis/recurra/pkg/billing"
	"github.com/smallbiznis/recurra/pkg/calendar"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Customers customerdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	customers customerdomain.Service
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("subscription.service"),
		genID:     p.GenID,
		clock:     clk,
		repo:      p.Repo,
		customers: p.Customers,
	}
}

func (s *Service) Create(ctx context.Context, tenantID snowflake.ID, req domain.CreateSubscriptionRequest) (domain.Subscription, error) {
	if tenantID == 0 {
		return domain.Subscription{}, domain.ErrInvalidTenant
	}
	if req.CustomerID == 0 {
		return domain.Subscription{}, domain.ErrInvalidCustomer
	}
	if req.AmountCents <= 0 {
		return domain.Subscription{}, domain.ErrInvalidAmount
	}
	interval, err := calendar.ParseInterval(string(req.Interval))
	if err != nil {
		return domain.Subscription{}, domain.ErrInvalidInterval
	}
	method, err := billing.ParsePaymentMethod(string(req.PaymentMethod))
	if err != nil {
		return domain.Subscription{}, domain.ErrInvalidPaymentMethod
	}
	if req.NextDueDate.IsZero() {
		return domain.Subscription{}, domain.ErrInvalidNextDueDate
	}

	if _, err := s.customers.GetByID(ctx, tenantID, req.CustomerID); err != nil {
		if errors.Is(err, customerdomain.ErrNotFound) {
			return domain.Subscription{}, domain.ErrInvalidCustomer
		}
		return domain.Subscription{}, err
	}

	now := s.clock.Now()
	sub := domain.Subscription{
		ID:            s.genID.Generate(),
		TenantID:      tenantID,
		CustomerID:    req.CustomerID,
		Description:   strings.TrimSpace(req.Description),
		AmountCents:   req.AmountCents,
		Interval:      interval,
		PaymentMethod: method,
		NextDueDate:   req.NextDueDate,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	sub.SetFees(req.Fees)

	if err := s.repo.Insert(ctx, s.db, &sub); err != nil {
		return domain.Subscription{}, err
	}
	return sub, nil
}

func (s *Service) GetByID(ctx context.Context, tenantID, id snowflake.ID) (domain.Subscription, error) {
	if tenantID == 0 {
		return domain.Subscription{}, domain.ErrInvalidTenant
	}
	if id == 0 {
		return domain.Subscription{}, domain.ErrInvalidID
	}
	sub, err := s.repo.FindByID(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.Subscription{}, err
	}
	if sub == nil {
		return domain.Subscription{}, domain.ErrNotFound
	}
	return *sub, nil
}

func (s *Service) Update(ctx context.Context, tenantID, id snowflake.ID, req domain.UpdateSubscriptionRequest) (domain.Subscription, error) {
	current, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return domain.Subscription{}, err
	}
	updated := current

	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.AmountCents != nil {
		if *req.AmountCents <= 0 {
			return domain.Subscription{}, domain.ErrInvalidAmount
		}
		updated.AmountCents = *req.AmountCents
	}
	if req.Interval != nil {
		interval, err := calendar.ParseInterval(string(*req.Interval))
		if err != nil {
			return domain.Subscription{}, domain.ErrInvalidInterval
		}
		updated.Interval = interval
	}
	if req.PaymentMethod != nil {
		method, err := billing.ParsePaymentMethod(string(*req.PaymentMethod))
		if err != nil {
			return domain.Subscription{}, domain.ErrInvalidPaymentMethod
		}
		updated.PaymentMethod = method
	}
	if req.NextDueDate != nil {
		if req.NextDueDate.IsZero() {
			return domain.Subscription{}, domain.ErrInvalidNextDueDate
		}
		if req.NextDueDate.Before(current.NextDueDate) {
			return domain.Subscription{}, domain.ErrNextDueDateBackwards
		}
		updated.NextDueDate = *req.NextDueDate
	}
	if req.Fees != nil {
		updated.SetFees(*req.Fees)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	updated.UpdatedAt = s.clock.Now()

	affected, err := s.repo.Update(ctx, s.db, &updated, current.NextDueDate)
	if err != nil {
		return domain.Subscription{}, err
	}
	if affected == 0 {
		return domain.Subscription{}, domain.ErrConcurrentUpdate
	}
	return updated, nil
}

func (s *Service) ListDue(ctx context.Context, asOf calendar.Date, limit int) ([]domain.Subscription, error) {
	if asOf.IsZero() {
		return nil, domain.ErrInvalidNextDueDate
	}
	if limit <= 0 {
		limit = 100
	}
	items, err := s.repo.ListDue(ctx, s.db, asOf, limit)
	if err != nil {
		return nil, err
	}
	subs := make([]domain.Subscription, 0, len(items))
	for _, item := range items {
		subs = append(subs, *item)
	}
	return subs, nil
}

func (s *Service) AdvanceNextDueDate(ctx context.Context, sub domain.Subscription) (calendar.Date, bool, error) {
	next, err := sub.Interval.Next(sub.NextDueDate)
	if err != nil {
		return calendar.Date{}, false, err
	}
	if !next.After(sub.NextDueDate) {
		return calendar.Date{}, false, domain.ErrInvalidNextDueDate
	}

	affected, err := s.repo.AdvanceNextDueDate(ctx, s.db, sub.TenantID, sub.ID, sub.NextDueDate, next, s.clock.Now())
	if err != nil {
		return calendar.Date{}, false, err
	}
	if affected == 0 {
		s.log.Debug("next due date already moved",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("from", sub.NextDueDate.String()),
		)
		return next, false, nil
	}
	return next, true, nil
}
