package catalog

import "github.com/shopspring/decimal"

// DefaultProducts is the feed range stocked across the shops.
func DefaultProducts() []Product {
	return []Product{
		{ID: "STARTER MASH", Name: "Starter Mash", CostPrice: decimal.NewFromInt(4240), SellingPrice: decimal.NewFromInt(4600)},
		{ID: "SAMAKGRO 1MM", Name: "Samakgro 1MM", CostPrice: decimal.NewFromInt(3690), SellingPrice: decimal.NewFromInt(4150)},
		{ID: "SAMAKGRO 2MM", Name: "Samakgro 2MM", CostPrice: decimal.NewFromInt(3600), SellingPrice: decimal.NewFromInt(3200)},
		{ID: "SAMAKGRO 3MM", Name: "Samakgro 3MM", CostPrice: decimal.NewFromInt(3200), SellingPrice: decimal.NewFromInt(2850)},
		{ID: "SAMAKGRO 4MMHP", Name: "Samakgro 4MMHP", CostPrice: decimal.NewFromInt(2950), SellingPrice: decimal.NewFromInt(2650)},
		{ID: "SAMAKGRO 4.5MM", Name: "Samakgro 4.5MM", CostPrice: decimal.NewFromInt(2800), SellingPrice: decimal.NewFromInt(2500)},
		{ID: "BROODSTOCK", Name: "Broodstock", CostPrice: decimal.NewFromInt(3900), SellingPrice: decimal.NewFromInt(3900)},
	}
}
