package purchase

import (
	"regexp"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/models"
)

var (
	// Nigerian MSISDN, local or international form.
	phonePattern = regexp.MustCompile(`^(\+234|0)[789][01][0-9]{8}$`)

	// E.164 for international top-ups.
	intlPhonePattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

	// Smartcard and meter numbers are plain digit strings.
	accountPattern = regexp.MustCompile(`^[0-9]{8,13}$`)
)

func validateRecipient(serviceType string, recipient string) error {
	var ok bool
	switch serviceType {
	case models.ServiceAirtime, models.ServiceData:
		ok = phonePattern.MatchString(recipient)
	case models.ServiceInternational:
		ok = intlPhonePattern.MatchString(recipient)
	case models.ServiceCableTV, models.ServiceElectricity:
		ok = accountPattern.MatchString(recipient)
	}

	if !ok {
		return apperrors.ErrInvalidRecipient
	}
	return nil
}
