package purchase

import (
	"github.com/shopspring/decimal"

	"github.com/emeka-o/billvault/internal/models"
)

// DefaultProducts is the seed catalog used when no price feed is wired in.
// Real deployments refresh prices from the provider's catalog endpoint.
func DefaultProducts() []Product {
	n := func(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

	return []Product{
		{ServiceType: models.ServiceData, Code: "MTN-1GB", Name: "MTN 1GB (30 days)", Provider: "MTN", Amount: n(1000)},
		{ServiceType: models.ServiceData, Code: "MTN-5GB", Name: "MTN 5GB (30 days)", Provider: "MTN", Amount: n(3500)},
		{ServiceType: models.ServiceData, Code: "AIRTEL-1GB", Name: "Airtel 1GB (30 days)", Provider: "AIRTEL", Amount: n(1000)},
		{ServiceType: models.ServiceData, Code: "GLO-2GB", Name: "Glo 2GB (30 days)", Provider: "GLO", Amount: n(1500)},
		{ServiceType: models.ServiceData, Code: "9MOBILE-1GB", Name: "9mobile 1GB (30 days)", Provider: "9MOBILE", Amount: n(1200)},

		{ServiceType: models.ServiceCableTV, Code: "DSTV-COMPACT", Name: "DStv Compact", Provider: "DSTV", Amount: n(15700)},
		{ServiceType: models.ServiceCableTV, Code: "DSTV-YANGA", Name: "DStv Yanga", Provider: "DSTV", Amount: n(5100)},
		{ServiceType: models.ServiceCableTV, Code: "GOTV-MAX", Name: "GOtv Max", Provider: "GOTV", Amount: n(8500)},
		{ServiceType: models.ServiceCableTV, Code: "STARTIMES-BASIC", Name: "StarTimes Basic", Provider: "STARTIMES", Amount: n(3700)},

		{ServiceType: models.ServiceElectricity, Code: "IKEDC-2000", Name: "Ikeja Electric NGN 2000", Provider: "IKEDC", Amount: n(2000)},
		{ServiceType: models.ServiceElectricity, Code: "IKEDC-5000", Name: "Ikeja Electric NGN 5000", Provider: "IKEDC", Amount: n(5000)},
		{ServiceType: models.ServiceElectricity, Code: "EKEDC-5000", Name: "Eko Electric NGN 5000", Provider: "EKEDC", Amount: n(5000)},
		{ServiceType: models.ServiceElectricity, Code: "AEDC-10000", Name: "Abuja Electric NGN 10000", Provider: "AEDC", Amount: n(10000)},
	}
}
