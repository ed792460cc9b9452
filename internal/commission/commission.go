// Package commission computes the revenue split between the platform and
// third-party sellers. Pure functions, no persistence.
package commission

import "github.com/shopspring/decimal"

// Split is the money breakdown for one order line.
type Split struct {
	GrossRevenue     decimal.Decimal `json:"gross_revenue"`
	Commission       decimal.Decimal `json:"commission"`
	PlatformFeeTotal decimal.Decimal `json:"platform_fee_total"`
	NetToSeller      decimal.Decimal `json:"net_to_seller"`
}

// Calculate splits one line's revenue. sellerOwned is false for
// platform-owned items, which keep the whole gross: commission and
// net-to-seller are both zero because there is no seller to pay out.
func Calculate(quantity int, price, rate, fee decimal.Decimal, sellerOwned bool) Split {
	qty := decimal.NewFromInt(int64(quantity))
	gross := qty.Mul(price)
	if !sellerOwned {
		return Split{
			GrossRevenue:     gross,
			Commission:       decimal.Zero,
			PlatformFeeTotal: decimal.Zero,
			NetToSeller:      decimal.Zero,
		}
	}
	comm := gross.Mul(rate).Round(2)
	return Split{
		GrossRevenue:     gross,
		Commission:       comm,
		PlatformFeeTotal: qty.Mul(fee),
		NetToSeller:      gross.Sub(comm),
	}
}

// LineRevenue pairs a split with the line it came from, for summaries.
type LineRevenue struct {
	ItemID   string `json:"item_id"`
	SellerID *int64 `json:"seller_id,omitempty"`
	Split
}

// Summary is the derived marketplace view of an order: which lines involved
// third-party sellers and what the platform earned. Never persisted.
type Summary struct {
	SellerLines       []LineRevenue   `json:"seller_lines"`
	TotalCommission   decimal.Decimal `json:"total_commission"`
	TotalPlatformFees decimal.Decimal `json:"total_platform_fees"`
}

func Summarize(lines []LineRevenue) Summary {
	s := Summary{
		SellerLines:       []LineRevenue{},
		TotalCommission:   decimal.Zero,
		TotalPlatformFees: decimal.Zero,
	}
	for _, l := range lines {
		if l.SellerID == nil {
			continue
		}
		s.SellerLines = append(s.SellerLines, l)
		s.TotalCommission = s.TotalCommission.Add(l.Commission)
		s.TotalPlatformFees = s.TotalPlatformFees.Add(l.PlatformFeeTotal)
	}
	return s
}
