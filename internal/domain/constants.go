package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Boost states. Scheduled and active boosts form the live ledger.
const (
	BoostStateScheduled = "scheduled"
	BoostStateActive    = "active"
	BoostStateExpired   = "expired"
	BoostStateCancelled = "cancelled"
)

// Boost history entry types.
const (
	HistoryApplied            = "applied"
	HistoryExtended           = "extended"
	HistoryCancelled          = "cancelled"
	HistoryExpired            = "expired"
	HistoryScheduled          = "scheduled"
	HistoryScheduledApplied   = "scheduled_applied"
	HistoryScheduledCancelled = "scheduled_cancelled"
	HistoryScheduledFailed    = "scheduled_failed"
)

const (
	WalletTxTypeBoostPurchase = "BOOST_PURCHASE"
	WalletTxTypeBoostExtend   = "BOOST_EXTEND"
	WalletTxTypeBoostRefund   = "BOOST_REFUND"
	WalletTxTypeStorePurchase = "STORE_PURCHASE"
	WalletTxTypeAdminCredit   = "ADMIN_CREDIT"
)

// Store resource types.
const (
	ResourceRAM     = "ram"
	ResourceDisk    = "disk"
	ResourceCPU     = "cpu"
	ResourceServers = "servers"
)

const (
	NotifBoostApplied   = "BOOST_APPLIED"
	NotifBoostExpired   = "BOOST_EXPIRED"
	NotifBoostFailed    = "BOOST_SCHEDULE_FAILED"
	NotifBoostCancelled = "BOOST_CANCELLED"
	NotifBoostExtended  = "BOOST_EXTENDED"
	NotifBoostScheduled = "BOOST_SCHEDULED"
)
