package masterdata

import (
	"context"
	"errors"
)

// PaymentMethod is a tender accepted at the counter.
type PaymentMethod struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// CustomerType classifies the buyer of a sale.
type CustomerType struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Settings are the store-wide switches the counter screens read.
type Settings struct {
	DineOptionEnabled bool `json:"dine_option_enabled"`
}

// SettingDineOption is the app_settings key of the dine-in/takeout flag.
const SettingDineOption = "dine_in_takeout_enabled"

// Sentinel errors.
var (
	ErrPaymentMethodNotFound = errors.New("masterdata: payment method not found")
	ErrCustomerTypeNotFound  = errors.New("masterdata: customer type not found")
	ErrPaymentMethodRequired = errors.New("masterdata: payment method must be chosen")
	ErrCustomerTypeRequired  = errors.New("masterdata: customer type must be chosen")
	ErrDineOptionRequired    = errors.New("masterdata: dine-in or takeout must be chosen")
	ErrUnknownDineOption     = errors.New("masterdata: unknown dine option")
)

// Repository interface for master data lookups
type Repository interface {
	ListPaymentMethods(ctx context.Context, activeOnly bool) ([]PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, id int64) (PaymentMethod, error)

	ListCustomerTypes(ctx context.Context, activeOnly bool) ([]CustomerType, error)
	GetCustomerType(ctx context.Context, id int64) (CustomerType, error)

	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// Service interface for master data business logic
type Service interface {
	ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, id int64) (PaymentMethod, error)

	ListCustomerTypes(ctx context.Context) ([]CustomerType, error)
	GetCustomerType(ctx context.Context, id int64) (CustomerType, error)

	Settings(ctx context.Context) (Settings, error)

	// CheckSelection validates whichever of the ids are set.
	CheckSelection(ctx context.Context, paymentMethodID, customerTypeID *int64, dineOption string) error
	// RequireSelection additionally insists every required choice is made.
	RequireSelection(ctx context.Context, paymentMethodID, customerTypeID *int64, dineOption string) (Resolved, error)
}

// Resolved is a validated checkout selection with display names.
type Resolved struct {
	PaymentMethod PaymentMethod
	CustomerType  CustomerType
	DineOption    string
}
