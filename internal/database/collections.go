package database

const (
	CollCategories    = "categories"
	CollSubcategories = "subcategories"
	CollProducts      = "products"
	CollRequirements  = "requirements"
	CollQuotations    = "quotations"
	CollQuotas        = "quotaRequirementCollection"
	CollNegotiations  = "negotiations"
	CollPayments      = "payments"
	CollUsers         = "users"
	CollRefreshTokens = "refresh_tokens"
	CollCounters      = "counters"
	CollOutbox        = "outbox_events"
)
