// Package fees holds the fee schedule as a pure function of amount and
// service class. No I/O, no state: the same inputs always price the same.
package fees

import (
	"github.com/shopspring/decimal"

	"github.com/emeka-o/billvault/internal/models"
)

const (
	ClassDeposit     = "DEPOSIT"
	ClassWithdrawal  = "WITHDRAWAL"
	ClassBillPayment = "BILL_PAYMENT"
	ClassUtility     = "UTILITY"
)

var (
	depositRate      = decimal.RequireFromString("0.015")
	depositSurcharge = decimal.NewFromInt(100)
	depositCap       = decimal.NewFromInt(2000)
	depositThreshold = decimal.NewFromInt(2500)

	withdrawalSmall    = decimal.NewFromInt(5000)
	withdrawalLarge    = decimal.NewFromInt(50000)
	withdrawalFeeSmall = decimal.NewFromInt(10)
	withdrawalFeeMid   = decimal.NewFromInt(25)
	withdrawalFeeLarge = decimal.NewFromInt(50)

	billPaymentRate = decimal.RequireFromString("0.02")
	billPaymentCap  = decimal.NewFromInt(100)

	utilityFee = decimal.NewFromInt(50)
)

// Calculate returns the fee for amount under the given service class.
// Unknown classes price at zero.
func Calculate(amount decimal.Decimal, class string) decimal.Decimal {
	switch class {
	case ClassDeposit:
		fee := amount.Mul(depositRate).Round(2)
		if amount.LessThan(depositThreshold) {
			return fee
		}
		return decimal.Min(fee.Add(depositSurcharge), depositCap)

	case ClassWithdrawal:
		switch {
		case amount.LessThan(withdrawalSmall):
			return withdrawalFeeSmall
		case amount.LessThanOrEqual(withdrawalLarge):
			return withdrawalFeeMid
		default:
			return withdrawalFeeLarge
		}

	case ClassBillPayment:
		return decimal.Min(amount.Mul(billPaymentRate).Round(2), billPaymentCap)

	case ClassUtility:
		return utilityFee

	default:
		return decimal.Zero
	}
}

// ClassForService maps a purchase service type to its fee class.
func ClassForService(serviceType string) string {
	switch serviceType {
	case models.ServiceCableTV, models.ServiceElectricity:
		return ClassUtility
	default:
		return ClassBillPayment
	}
}
