package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bitbucket.org/taralabs/invoicing_backend/models"
	"bitbucket.org/taralabs/invoicing_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const unknownCustomerName = "Unknown Customer"

// getOrCreateCustomerByEmail resolves a customer by email within the
// caller's transaction, creating a placeholder when absent. Used when an
// invoice arrives with a bare email/name pair instead of a customer id.
func getOrCreateCustomerByEmail(ctx context.Context, tx *gorm.DB, tenantId string, email string, name string) (models.Customer, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return models.Customer{}, fmt.Errorf("%w: customer email is required", utils.ErrValidation)
	}

	var customer models.Customer
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND email = ?", tenantId, email).
		First(&customer).Error
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Customer{}, err
	}

	if name == "" {
		name = unknownCustomerName
	}
	customer = models.Customer{
		ID:       uuid.NewString(),
		TenantId: tenantId,
		Name:     name,
		Email:    email,
		Status:   models.CustomerStatusActive,
	}
	if err := tx.WithContext(ctx).Create(&customer).Error; err != nil {
		return models.Customer{}, err
	}
	return customer, nil
}

// adjustCustomerCredit applies delta to the customer's credit balance,
// clamped at a floor of 0. The clamp is computed in Go inside the
// transaction; sqlite has no GREATEST().
func adjustCustomerCredit(ctx context.Context, tx *gorm.DB, tenantId string, customerId string, delta decimal.Decimal) error {
	var customer models.Customer
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantId, customerId).
		First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: customer %s", utils.ErrNotFound, customerId)
		}
		return err
	}
	balance := customer.CreditBalance.Add(delta)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	return tx.WithContext(ctx).Model(&models.Customer{}).
		Where("tenant_id = ? AND id = ?", tenantId, customerId).
		Update("credit_balance", balance).Error
}

func (s *InvoiceService) CreateCustomer(ctx context.Context, tenantId string, input models.NewCustomer) (models.Customer, error) {
	ctx = tenantCtx(ctx, tenantId)
	if err := utils.ValidateStruct(input); err != nil {
		return models.Customer{}, err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, ""); err != nil {
			return models.Customer{}, err
		}
	}
	customer := models.Customer{
		ID:              uuid.NewString(),
		TenantId:        tenantId,
		Name:            input.Name,
		Email:           strings.TrimSpace(strings.ToLower(input.Email)),
		Phone:           input.Phone,
		Gstin:           input.Gstin,
		BillingAddress:  input.BillingAddress,
		ShippingAddress: input.ShippingAddress,
		Status:          models.CustomerStatusActive,
	}
	if err := s.db.WithContext(ctx).Create(&customer).Error; err != nil {
		return models.Customer{}, err
	}
	return customer, nil
}

func (s *InvoiceService) GetCustomer(ctx context.Context, tenantId string, customerId string) (models.Customer, error) {
	ctx = tenantCtx(ctx, tenantId)
	var customer models.Customer
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantId, customerId).
		First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Customer{}, fmt.Errorf("%w: customer %s", utils.ErrNotFound, customerId)
	}
	return customer, err
}

func (s *InvoiceService) UpdateCustomer(ctx context.Context, tenantId string, customerId string, input models.NewCustomer) (models.Customer, error) {
	ctx = tenantCtx(ctx, tenantId)
	if err := utils.ValidateStruct(input); err != nil {
		return models.Customer{}, err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, ""); err != nil {
			return models.Customer{}, err
		}
	}
	customer, err := s.GetCustomer(ctx, tenantId, customerId)
	if err != nil {
		return models.Customer{}, err
	}
	customer.Name = input.Name
	customer.Email = strings.TrimSpace(strings.ToLower(input.Email))
	customer.Phone = input.Phone
	customer.Gstin = input.Gstin
	customer.BillingAddress = input.BillingAddress
	customer.ShippingAddress = input.ShippingAddress
	if err := s.db.WithContext(ctx).Save(&customer).Error; err != nil {
		return models.Customer{}, err
	}
	return customer, nil
}

func (s *InvoiceService) ListCustomers(ctx context.Context, tenantId string, page int, limit int) ([]models.Customer, int64, error) {
	ctx = tenantCtx(ctx, tenantId)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Customer{}).
		Where("tenant_id = ?", tenantId).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var customers []models.Customer
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantId).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&customers).Error
	return customers, total, err
}
