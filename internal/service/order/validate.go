package order

import (
	"strings"

	"storefront-orders/internal/domain"
)

const minPhoneDigits = 8

// normalizeLines merges duplicate products and rejects empty or non-positive input.
func normalizeLines(in []LineInput) ([]LineInput, error) {
	if len(in) == 0 {
		return nil, domain.Invalid("lines", "order must contain at least one item")
	}
	out := make([]LineInput, 0, len(in))
	index := make(map[string]int, len(in))
	for i, l := range in {
		id := strings.TrimSpace(l.ProductID)
		if id == "" {
			return nil, domain.Invalid("lines", "line %d has no product", i+1)
		}
		if l.Quantity < 1 {
			return nil, domain.Invalid("lines", "quantity for line %d must be at least 1", i+1)
		}
		if j, ok := index[id]; ok {
			out[j].Quantity += l.Quantity
			continue
		}
		index[id] = len(out)
		out = append(out, LineInput{ProductID: id, Quantity: l.Quantity})
	}
	return out, nil
}

func normalizePayment(method string, card *CardInput) (domain.PaymentMethod, *domain.CardDetails, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "", "cash", "cod":
		return domain.PaymentCash, nil, nil
	case "card":
	default:
		return "", nil, domain.Invalid("paymentMethod", "unsupported payment method %q", method)
	}

	if card == nil {
		return "", nil, domain.Invalid("card", "card details are required for card payments")
	}
	holder := strings.TrimSpace(card.Holder)
	if holder == "" {
		return "", nil, domain.Invalid("card.holder", "card holder is required")
	}
	number := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, card.Number)
	if len(number) < 13 || len(number) > 19 || !allDigits(number) {
		return "", nil, domain.Invalid("card.number", "card number must have 13 to 19 digits")
	}
	expiry := strings.TrimSpace(card.Expiry)
	if expiry == "" {
		return "", nil, domain.Invalid("card.expiry", "card expiry is required")
	}
	return domain.PaymentCard, &domain.CardDetails{Holder: holder, Last4: number[len(number)-4:], Expiry: expiry}, nil
}

// guestContact requires every delivery field because there is no account to fall back on.
func guestContact(in DeliveryInput) (domain.Contact, error) {
	c := trimContact(in)
	if c.Name == "" {
		return c, domain.Invalid("name", "name is required")
	}
	if c.Phone == "" {
		return c, domain.Invalid("phone", "phone is required")
	}
	if err := checkPhone(c.Phone); err != nil {
		return c, err
	}
	if c.City == "" {
		return c, domain.Invalid("city", "city is required")
	}
	if c.Address == "" {
		return c, domain.Invalid("address", "address is required")
	}
	return c, nil
}

// customerContact fills blanks from the account and still requires a
// deliverable city and address.
func customerContact(in DeliveryInput, account *domain.Customer) (domain.Contact, error) {
	c := trimContact(in)
	if account != nil {
		if c.Name == "" {
			c.Name = account.FullName()
		}
		if c.Name == "" {
			c.Name = account.Email
		}
		if c.Phone == "" {
			c.Phone = strings.TrimSpace(account.Phone)
		}
		if c.City == "" {
			c.City = strings.TrimSpace(account.City)
		}
		if c.Address == "" {
			c.Address = strings.TrimSpace(account.Address)
		}
	}
	if c.Phone != "" {
		if err := checkPhone(c.Phone); err != nil {
			return c, err
		}
	}
	if c.City == "" {
		return c, domain.Invalid("city", "city is required")
	}
	if c.Address == "" {
		return c, domain.Invalid("address", "address is required")
	}
	return c, nil
}

func trimContact(in DeliveryInput) domain.Contact {
	return domain.Contact{
		Name:    strings.TrimSpace(in.Name),
		Phone:   strings.TrimSpace(in.Phone),
		City:    strings.TrimSpace(in.City),
		Address: strings.TrimSpace(in.Address),
	}
}

func checkPhone(phone string) error {
	if len(domain.PhoneDigits(phone)) < minPhoneDigits {
		return domain.Invalid("phone", "phone number must contain at least %d digits", minPhoneDigits)
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
