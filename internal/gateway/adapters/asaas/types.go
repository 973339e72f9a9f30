package asaas

import (
	"encoding/json"
	"strings"

	"github.com/smallbiznis/recurra/internal/gateway/domain"
	"github.com/smallbiznis/recurra/pkg/money"
)

type customerRequest struct {
	Name          string `json:"name"`
	CPFCNPJ       string `json:"cpfCnpj"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
	AddressNumber string `json:"addressNumber,omitempty"`
	Province      string `json:"province,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
}

type customerResponse struct {
	ID string `json:"id"`
}

type paymentRequest struct {
	Customer          string        `json:"customer"`
	BillingType       string        `json:"billingType"`
	Value             json.Number   `json:"value"`
	DueDate           string        `json:"dueDate"`
	Description       string        `json:"description,omitempty"`
	ExternalReference string        `json:"externalReference,omitempty"`
	Fine              *feeValue     `json:"fine,omitempty"`
	Interest          *feeValue     `json:"interest,omitempty"`
	Discount          *discountTerm `json:"discount,omitempty"`
}

type feeValue struct {
	Value json.Number `json:"value"`
	Type  string      `json:"type,omitempty"`
}

type discountTerm struct {
	Value            json.Number `json:"value"`
	DueDateLimitDays int         `json:"dueDateLimitDays"`
	Type             string      `json:"type"`
}

type paymentResponse struct {
	ID                    string `json:"id"`
	Status                string `json:"status"`
	InvoiceURL            string `json:"invoiceUrl"`
	BankSlipURL           string `json:"bankSlipUrl"`
	TransactionReceiptURL string `json:"transactionReceiptUrl"`
}

// invoiceLink prefers the hosted invoice, then the boleto, then the receipt.
func (p paymentResponse) invoiceLink() string {
	for _, link := range []string{p.InvoiceURL, p.BankSlipURL, p.TransactionReceiptURL} {
		if link = strings.TrimSpace(link); link != "" {
			return link
		}
	}
	return ""
}

type webhookPayload struct {
	Event   string          `json:"event"`
	Payment *webhookPayment `json:"payment"`
}

type webhookPayment struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Value  json.Number `json:"value"`
}

type errorEnvelope struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

func newCustomerRequest(c domain.Customer) customerRequest {
	return customerRequest{
		Name:          strings.TrimSpace(c.Name),
		CPFCNPJ:       digitsOnly(c.Document),
		Email:         strings.TrimSpace(c.Email),
		Phone:         digitsOnly(c.Phone),
		Address:       strings.TrimSpace(c.AddressStreet),
		AddressNumber: strings.TrimSpace(c.AddressNumber),
		Province:      strings.TrimSpace(c.AddressCity),
		PostalCode:    digitsOnly(c.AddressPostalCode),
	}
}

func newPaymentRequest(customerID, billingType string, req domain.CreateChargeRequest) paymentRequest {
	out := paymentRequest{
		Customer:          customerID,
		BillingType:       billingType,
		Value:             money.Number(req.AmountCents),
		DueDate:           req.DueDate.String(),
		Description:       strings.TrimSpace(req.Description),
		ExternalReference: req.Reference,
	}

	fees := req.Fees.Normalize()
	if fees.FineCents > 0 {
		out.Fine = &feeValue{Value: money.Number(fees.FineCents), Type: "FIXED"}
	}
	if fees.InterestBps > 0 {
		// Asaas expects a monthly percentage; 100 bps is 1.00.
		out.Interest = &feeValue{Value: money.Number(int64(fees.InterestBps))}
	}
	if fees.DiscountCents > 0 {
		out.Discount = &discountTerm{
			Value:            money.Number(fees.DiscountCents),
			DueDateLimitDays: fees.DiscountDaysBefore,
			Type:             "FIXED",
		}
	}
	return out
}

func digitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
