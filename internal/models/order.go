package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

const PaymentMethodCashOnDelivery = "cash_on_delivery"

var (
	ErrInvalidOrderInput   = errors.New("invalid order input")
	ErrCampaignUnavailable = fmt.Errorf("%w: campaign unavailable", ErrInvalidOrderInput)
)

var orderStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// OrderStatuses returns every fulfillment status in lifecycle order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

func (s OrderStatus) Valid() bool {
	for _, status := range orderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func ParseOrderStatus(value string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(value)))
	return status, status.Valid()
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPaid, PaymentRefunded:
		return true
	default:
		return false
	}
}

func ParsePaymentStatus(value string) (PaymentStatus, bool) {
	status := PaymentStatus(strings.ToLower(strings.TrimSpace(value)))
	return status, status.Valid()
}

// Order is a customer purchase against a campaign. Campaign fields are a
// snapshot taken when the order was placed and never follow later campaign edits.
type Order struct {
	ID            string          `json:"id"`
	CustomerName  string          `json:"customerName"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address"`
	CampaignID    string          `json:"campaignId"`
	CampaignTitle string          `json:"campaignTitle"`
	CampaignSlug  string          `json:"campaignSlug"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	Quantity      int             `json:"quantity"`
	Status        OrderStatus     `json:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	PaymentMethod string          `json:"paymentMethod"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// TotalPrice is always recomputed from unit price and quantity.
func (o Order) TotalPrice() decimal.Decimal {
	return o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity)))
}

func (o Order) Savings() decimal.Decimal {
	return savings(o.OriginalPrice, o.UnitPrice, o.Quantity)
}

func (o Order) MarshalJSON() ([]byte, error) {
	type orderJSON Order
	return json.Marshal(struct {
		orderJSON
		TotalPrice decimal.Decimal `json:"totalPrice"`
		Savings    decimal.Decimal `json:"savings"`
	}{
		orderJSON:  orderJSON(o),
		TotalPrice: o.TotalPrice(),
		Savings:    o.Savings(),
	})
}

// TotalPrice returns unitPrice × qty.
func TotalPrice(unitPrice decimal.Decimal, qty int) (decimal.Decimal, error) {
	if unitPrice.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: unit price must not be negative", ErrInvalidOrderInput)
	}
	if qty < 1 {
		return decimal.Zero, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidOrderInput)
	}
	return unitPrice.Mul(decimal.NewFromInt(int64(qty))), nil
}

// Savings returns max(0, (originalPrice − unitPrice) × qty).
func Savings(originalPrice, unitPrice decimal.Decimal, qty int) (decimal.Decimal, error) {
	if originalPrice.IsNegative() || unitPrice.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: prices must not be negative", ErrInvalidOrderInput)
	}
	if qty < 1 {
		return decimal.Zero, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidOrderInput)
	}
	return savings(originalPrice, unitPrice, qty), nil
}

func savings(originalPrice, unitPrice decimal.Decimal, qty int) decimal.Decimal {
	if qty < 1 || originalPrice.LessThanOrEqual(unitPrice) {
		return decimal.Zero
	}
	return originalPrice.Sub(unitPrice).Mul(decimal.NewFromInt(int64(qty)))
}

// OrderInput is what a storefront customer submits.
type OrderInput struct {
	CampaignID    string `json:"campaignId" validate:"required,max=128"`
	CustomerName  string `json:"name" validate:"required,max=120"`
	Phone         string `json:"phone" validate:"required,max=32"`
	Address       string `json:"address" validate:"required,max=500"`
	Quantity      int    `json:"quantity" validate:"gte=1"`
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,max=64"`
	Notes         string `json:"notes" validate:"omitempty,max=1000"`
}

var inputValidator = newInputValidator()

func newInputValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalized returns a copy with surrounding whitespace removed from text fields.
func (in OrderInput) Normalized() OrderInput {
	in.CampaignID = strings.TrimSpace(in.CampaignID)
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	in.Notes = strings.TrimSpace(in.Notes)
	return in
}

// Validate checks a normalized input and reports every failing field.
func (in OrderInput) Validate() error {
	err := inputValidator.Struct(in)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("%w: %w", ErrInvalidOrderInput, err)
	}

	problems := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		problems = append(problems, describeFieldError(fieldErr))
	}
	return fmt.Errorf("%w: %s", ErrInvalidOrderInput, strings.Join(problems, ", "))
}

func describeFieldError(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return fieldErr.Field() + " is required"
	case "gte":
		return fieldErr.Field() + " must be at least " + fieldErr.Param()
	case "max":
		return fieldErr.Field() + " must be at most " + fieldErr.Param() + " characters"
	default:
		return fieldErr.Field() + " is invalid"
	}
}

// NewOrder builds a pending, unpaid order from a customer submission and the
// campaign it references.
func NewOrder(input OrderInput, campaign Campaign, now time.Time) (Order, error) {
	input = input.Normalized()
	if err := input.Validate(); err != nil {
		return Order{}, err
	}
	if input.CampaignID != campaign.ID {
		return Order{}, fmt.Errorf("%w: campaign reference does not match", ErrInvalidOrderInput)
	}
	if !campaign.AvailableAt(now) {
		return Order{}, fmt.Errorf("%w: %s", ErrCampaignUnavailable, campaign.ID)
	}

	if _, err := TotalPrice(campaign.Price, input.Quantity); err != nil {
		return Order{}, err
	}
	originalPrice := campaign.OriginalPrice
	if originalPrice.IsZero() {
		originalPrice = campaign.Price
	}
	if _, err := Savings(originalPrice, campaign.Price, input.Quantity); err != nil {
		return Order{}, err
	}

	paymentMethod := input.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = PaymentMethodCashOnDelivery
	}

	now = now.UTC()
	return Order{
		ID:            uuid.NewString(),
		CustomerName:  input.CustomerName,
		Phone:         input.Phone,
		Address:       input.Address,
		CampaignID:    campaign.ID,
		CampaignTitle: campaign.Title,
		CampaignSlug:  campaign.Slug,
		UnitPrice:     campaign.Price,
		OriginalPrice: originalPrice,
		Quantity:      input.Quantity,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		PaymentMethod: paymentMethod,
		Notes:         input.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
