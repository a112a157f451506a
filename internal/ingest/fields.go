package ingest

// fields.go defines the canonical deal schema.
//
// Synonyms cover the vocabulary observed across dotloop, Skyslope, and MLS
// back-office exports. They are matched after NormalizeLabel, so casing,
// punctuation, and diacritics never matter here.

func init() {
	Register(CanonicalField{
		Key:      "status",
		Label:    "Status",
		Required: true,
		Type:     TypeString,
		Synonyms: []string{
			"loop status", "transaction status", "deal status",
			"file status", "stage",
		},
	})

	Register(CanonicalField{
		Key:      "price",
		Label:    "Sale Price",
		Required: true,
		Type:     TypeCurrency,
		Synonyms: []string{
			"price", "sales price", "purchase price", "contract price",
			"closing price", "sold price",
		},
	})

	Register(CanonicalField{
		Key:      "agents",
		Label:    "Agent(s)",
		Required: true,
		Type:     TypeTagList,
		Synonyms: []string{
			"agent", "agent name", "agent names", "team members",
			"assigned agents",
		},
	})

	Register(CanonicalField{
		Key:   "address",
		Label: "Property Address",
		Type:  TypeString,
		Synonyms: []string{
			"address", "property", "street address", "listing address",
			"full address",
		},
	})

	Register(CanonicalField{
		Key:   "closing_date",
		Label: "Closing Date",
		Type:  TypeDate,
		Synonyms: []string{
			"close date", "closed date", "settlement date",
			"date closed", "coe date",
		},
	})

	Register(CanonicalField{
		Key:   "commission",
		Label: "Commission",
		Type:  TypeCurrency,
		Synonyms: []string{
			"gross commission", "commission amount", "gci",
			"total commission", "commission earned",
		},
	})

	Register(CanonicalField{
		Key:   "commission_rate",
		Label: "Commission Rate",
		Type:  TypeNumber,
		Synonyms: []string{
			"commission percent", "commission percentage", "rate",
		},
	})

	Register(CanonicalField{
		Key:   "side",
		Label: "Side",
		Type:  TypeString,
		Synonyms: []string{
			"representation", "representing", "buy sell side",
			"transaction side",
		},
	})

	Register(CanonicalField{
		Key:   "client",
		Label: "Client Name",
		Type:  TypeString,
		Synonyms: []string{
			"client", "customer", "customer name", "buyer seller name",
		},
	})

	Register(CanonicalField{
		Key:   "source",
		Label: "Lead Source",
		Type:  TypeString,
		Synonyms: []string{
			"source", "referral source", "lead origin",
		},
	})

	Register(CanonicalField{
		Key:   "mls_number",
		Label: "MLS Number",
		Type:  TypeString,
		Synonyms: []string{
			"mls", "mls id", "mls no", "listing number", "listing id",
		},
	})

	Register(CanonicalField{
		Key:   "listed_date",
		Label: "Listed Date",
		Type:  TypeDate,
		Synonyms: []string{
			"list date", "listing date", "date listed",
		},
	})

	Register(CanonicalField{
		Key:   "tags",
		Label: "Tags",
		Type:  TypeTagList,
		Synonyms: []string{
			"labels", "categories", "loop tags",
		},
	})
}
