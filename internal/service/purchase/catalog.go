package purchase

import (
	"github.com/shopspring/decimal"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/models"
)

// Product is one purchasable unit with a fixed price: a data bundle, a
// cable bouquet or an electricity denomination. Airtime and international
// top-ups are open-amount and never appear here.
type Product struct {
	ServiceType string
	Code        string
	Name        string
	Provider    string
	Amount      decimal.Decimal
}

// Catalog resolves (serviceType, productCode) to a priced product. Prices
// come from outside the engine; the catalog only answers lookups.
type Catalog struct {
	products map[string]Product
}

func NewCatalog(products []Product) *Catalog {
	m := make(map[string]Product, len(products))
	for _, p := range products {
		m[catalogKey(p.ServiceType, p.Code)] = p
	}
	return &Catalog{products: m}
}

func (c *Catalog) Lookup(serviceType string, code string) (Product, error) {
	p, ok := c.products[catalogKey(serviceType, code)]
	if !ok {
		return Product{}, apperrors.ErrInvalidProduct
	}
	return p, nil
}

func catalogKey(serviceType string, code string) string {
	return serviceType + ":" + code
}

// openAmount reports whether the service takes a caller-supplied amount
// instead of a catalog price.
func openAmount(serviceType string) bool {
	return serviceType == models.ServiceAirtime || serviceType == models.ServiceInternational
}
