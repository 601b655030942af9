package finance

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ratio returns num/den, or zero when den is zero.
func ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}

// percent returns num/den*100 rounded to places, or zero when den is zero.
func percent(num, den decimal.Decimal, places int32) decimal.Decimal {
	return ratio(num, den).Mul(hundred).Round(places)
}

func sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
