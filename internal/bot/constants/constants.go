package constants

const (
	// Commands.
	ProductCommandName     = "product"
	CodeCommandName        = "code"
	StockCommandName       = "stock"
	OrderCommandName       = "order"
	SellCommandName        = "sell"
	LeaderboardCommandName = "leaderboard"
	SalesCommandName       = "sales"
	DisplayCommandName     = "display"
	TestimonialCommandName = "testimonial"
	ModCommandName         = "mod"

	// Subcommands.
	AddSubcommand       = "add"
	BulkSubcommand      = "bulk"
	UpdateSubcommand    = "update"
	DeleteSubcommand    = "delete"
	ListSubcommand      = "list"
	ViewSubcommand      = "view"
	BuySubcommand       = "buy"
	CompleteSubcommand  = "complete"
	CancelSubcommand    = "cancel"
	PendingSubcommand   = "pending"
	MineSubcommand      = "mine"
	SummarySubcommand   = "summary"
	ChartSubcommand     = "chart"
	SetupSubcommand     = "setup"
	KickSubcommand      = "kick"
	BanSubcommand       = "ban"
	UnbanSubcommand     = "unban"
	PurgeSubcommand     = "purge"
	ThresholdSubcommand = "threshold"

	// Options.
	CodeOption      = "code"
	NameOption      = "name"
	PriceOption     = "price"
	ProductOption   = "product"
	CodesOption     = "codes"
	QuantityOption  = "quantity"
	OrderOption     = "order"
	UserOption      = "user"
	KindOption      = "kind"
	ChannelOption   = "channel"
	MessageOption   = "message"
	RatingOption    = "rating"
	ReasonOption    = "reason"
	CountOption     = "count"
	DaysOption      = "days"
	PeriodOption    = "period"
	ThresholdOption = "threshold"

	// Embeds.
	DefaultEmbedColor = 0x5865F2
	SuccessEmbedColor = 0x57F287
	ErrorEmbedColor   = 0xED4245

	// Limits.
	DefaultChartDays        = 7
	TestimonialsPerPage     = 5
	DefaultModerationReason = "No reason provided"
	SalesChartFileName      = "sales.png"
)
