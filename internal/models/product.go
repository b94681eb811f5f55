package models

import "fmt"

// ProductCategory is the closed set of lender-product categories. Values are
// stable matching keys; human-readable names come from DisplayName.
type ProductCategory string

const (
	CategoryLineOfCredit           ProductCategory = "line_of_credit"
	CategoryTermLoan               ProductCategory = "term_loan"
	CategoryEquipmentFinancing     ProductCategory = "equipment_financing"
	CategoryInvoiceFactoring       ProductCategory = "invoice_factoring"
	CategoryPurchaseOrderFinancing ProductCategory = "purchase_order_financing"
	CategoryWorkingCapital         ProductCategory = "working_capital"
	CategoryAssetBasedLending      ProductCategory = "asset_based_lending"
	CategorySBALoan                ProductCategory = "sba_loan"
)

var categoryDisplayNames = map[ProductCategory]string{
	CategoryLineOfCredit:           "Business Line of Credit",
	CategoryTermLoan:               "Term Loan",
	CategoryEquipmentFinancing:     "Equipment Financing",
	CategoryInvoiceFactoring:       "Invoice Factoring",
	CategoryPurchaseOrderFinancing: "Purchase Order Financing",
	CategoryWorkingCapital:         "Working Capital",
	CategoryAssetBasedLending:      "Asset-Based Lending",
	CategorySBALoan:                "SBA Loan",
}

func (c ProductCategory) Valid() bool {
	_, ok := categoryDisplayNames[c]
	return ok
}

func (c ProductCategory) DisplayName() string {
	if name, ok := categoryDisplayNames[c]; ok {
		return name
	}
	return string(c)
}

// Country is the closed set of markets a product serves. INTL products serve
// applicants from any country.
type Country string

const (
	CountryUS   Country = "US"
	CountryCA   Country = "CA"
	CountryINTL Country = "INTL"
)

func (c Country) Valid() bool {
	return c == CountryUS || c == CountryCA || c == CountryINTL
}

// LenderProduct is a loan/credit offering with its eligibility constraints.
// Products are soft-deleted via Active to preserve referential history with
// past matches.
type LenderProduct struct {
	ID                 string          `json:"id"`
	LenderName         string          `json:"lenderName"`
	ProductName        string          `json:"productName"`
	Category           ProductCategory `json:"category"`
	Country            Country         `json:"country"`
	AmountMin          int64           `json:"amountMin"`
	AmountMax          int64           `json:"amountMax"`
	RateMin            float64         `json:"rateMin"`
	RateMax            float64         `json:"rateMax"`
	TermMinMonths      int             `json:"termMinMonths"`
	TermMaxMonths      int             `json:"termMaxMonths"`
	MinMonthlyRevenue  int64           `json:"minMonthlyRevenue"` // 0 means no minimum
	RequiredDocuments  []DocumentType  `json:"requiredDocuments"`
	ExcludedIndustries []string        `json:"excludedIndustries,omitempty"`
	Active             bool            `json:"active"`
	CreatedAt          string          `json:"createdAt,omitempty"`
	UpdatedAt          string          `json:"updatedAt,omitempty"`
}

// Validate enforces the range invariants on a product record.
func (p *LenderProduct) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("product id is required")
	}
	if !p.Category.Valid() {
		return fmt.Errorf("product %s: unknown category %q", p.ID, p.Category)
	}
	if !p.Country.Valid() {
		return fmt.Errorf("product %s: unknown country %q", p.ID, p.Country)
	}
	if p.AmountMin < 0 || p.AmountMax < 0 {
		return fmt.Errorf("product %s: amounts must be non-negative", p.ID)
	}
	if p.AmountMin > p.AmountMax {
		return fmt.Errorf("product %s: amountMin exceeds amountMax", p.ID)
	}
	if p.RateMin < 0 || p.RateMax < 0 {
		return fmt.Errorf("product %s: rates must be non-negative", p.ID)
	}
	if p.RateMin > p.RateMax {
		return fmt.Errorf("product %s: rateMin exceeds rateMax", p.ID)
	}
	if p.TermMinMonths > p.TermMaxMonths {
		return fmt.Errorf("product %s: termMinMonths exceeds termMaxMonths", p.ID)
	}
	if p.MinMonthlyRevenue < 0 {
		return fmt.Errorf("product %s: minMonthlyRevenue must be non-negative", p.ID)
	}
	return nil
}

// AmountMidpoint returns the center of the product's amount range.
func (p *LenderProduct) AmountMidpoint() float64 {
	return float64(p.AmountMin+p.AmountMax) / 2.0
}
