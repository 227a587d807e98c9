package masterdata

import (
	"context"
	"errors"
	"strconv"

	"github.com/counterpos/counterpos/internal/platform/httpx"
)

// service implements Service interface
type service struct {
	repo Repository
}

// NewService creates a new master data service
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Payment method operations
func (s *service) ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	return s.repo.ListPaymentMethods(ctx, true)
}

func (s *service) GetPaymentMethod(ctx context.Context, id int64) (PaymentMethod, error) {
	if id <= 0 {
		return PaymentMethod{}, ErrPaymentMethodNotFound
	}
	m, err := s.repo.GetPaymentMethod(ctx, id)
	if err != nil {
		return PaymentMethod{}, err
	}
	if !m.Active {
		return PaymentMethod{}, ErrPaymentMethodNotFound
	}
	return m, nil
}

// Customer type operations
func (s *service) ListCustomerTypes(ctx context.Context) ([]CustomerType, error) {
	return s.repo.ListCustomerTypes(ctx, true)
}

func (s *service) GetCustomerType(ctx context.Context, id int64) (CustomerType, error) {
	if id <= 0 {
		return CustomerType{}, ErrCustomerTypeNotFound
	}
	c, err := s.repo.GetCustomerType(ctx, id)
	if err != nil {
		return CustomerType{}, err
	}
	if !c.Active {
		return CustomerType{}, ErrCustomerTypeNotFound
	}
	return c, nil
}

// Settings reads store switches. A missing row means the feature is off.
func (s *service) Settings(ctx context.Context) (Settings, error) {
	raw, ok, err := s.repo.GetSetting(ctx, SettingDineOption)
	if err != nil {
		return Settings{}, err
	}
	if !ok {
		return Settings{}, nil
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return Settings{}, nil
	}
	return Settings{DineOptionEnabled: enabled}, nil
}

func (s *service) CheckSelection(ctx context.Context, paymentMethodID, customerTypeID *int64, dineOption string) error {
	return classify(s.checkSelection(ctx, paymentMethodID, customerTypeID, dineOption))
}

func (s *service) RequireSelection(ctx context.Context, paymentMethodID, customerTypeID *int64, dineOption string) (Resolved, error) {
	resolved, err := s.requireSelection(ctx, paymentMethodID, customerTypeID, dineOption)
	return resolved, classify(err)
}

func (s *service) checkSelection(ctx context.Context, paymentMethodID, customerTypeID *int64, dineOption string) error {
	if paymentMethodID != nil {
		if _, err := s.GetPaymentMethod(ctx, *paymentMethodID); err != nil {
			return err
		}
	}
	if customerTypeID != nil {
		if _, err := s.GetCustomerType(ctx, *customerTypeID); err != nil {
			return err
		}
	}
	return validDineOption(dineOption)
}

func (s *service) requireSelection(ctx context.Context, paymentMethodID, customerTypeID *int64, dineOption string) (Resolved, error) {
	if paymentMethodID == nil {
		return Resolved{}, ErrPaymentMethodRequired
	}
	if customerTypeID == nil {
		return Resolved{}, ErrCustomerTypeRequired
	}
	if err := validDineOption(dineOption); err != nil {
		return Resolved{}, err
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return Resolved{}, err
	}
	if settings.DineOptionEnabled && dineOption == "" {
		return Resolved{}, ErrDineOptionRequired
	}
	if !settings.DineOptionEnabled {
		dineOption = ""
	}
	pm, err := s.GetPaymentMethod(ctx, *paymentMethodID)
	if err != nil {
		return Resolved{}, err
	}
	ct, err := s.GetCustomerType(ctx, *customerTypeID)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{PaymentMethod: pm, CustomerType: ct, DineOption: dineOption}, nil
}

func validDineOption(v string) error {
	switch v {
	case "", "dine_in", "takeout":
		return nil
	}
	return ErrUnknownDineOption
}

// classify marks selection failures as validation errors so handlers answer 400.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrPaymentMethodNotFound), errors.Is(err, ErrCustomerTypeNotFound),
		errors.Is(err, ErrPaymentMethodRequired), errors.Is(err, ErrCustomerTypeRequired),
		errors.Is(err, ErrDineOptionRequired), errors.Is(err, ErrUnknownDineOption):
		return httpx.Wrap(httpx.ErrValidation, err)
	}
	return err
}
