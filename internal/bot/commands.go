package bot

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/storefront/internal/bot/constants"
	"github.com/robalyx/storefront/internal/display"
)

func stringOption(name, description string, required bool) discord.ApplicationCommandOptionString {
	return discord.ApplicationCommandOptionString{Name: name, Description: description, Required: required}
}

func intOption(name, description string, required bool) discord.ApplicationCommandOptionInt {
	return discord.ApplicationCommandOptionInt{Name: name, Description: description, Required: required}
}

func userOption(description string) discord.ApplicationCommandOptionUser {
	return discord.ApplicationCommandOptionUser{Name: constants.UserOption, Description: description, Required: true}
}

func channelOption(description string) discord.ApplicationCommandOptionChannel {
	return discord.ApplicationCommandOptionChannel{
		Name:         constants.ChannelOption,
		Description:  description,
		Required:     true,
		ChannelTypes: []discord.ChannelType{discord.ChannelTypeGuildText},
	}
}

func subcommand(name, description string, options ...discord.ApplicationCommandOption) discord.ApplicationCommandOptionSubCommand {
	return discord.ApplicationCommandOptionSubCommand{Name: name, Description: description, Options: options}
}

// Commands returns the global slash commands of the bot.
func Commands() []discord.ApplicationCommandCreate {
	productCode := stringOption(constants.ProductOption, "Product code", true)

	kindChoices := make([]discord.ApplicationCommandOptionChoiceString, 0, len(display.Kinds))
	for _, kind := range display.Kinds {
		kindChoices = append(kindChoices, discord.ApplicationCommandOptionChoiceString{
			Name:  kind.String(),
			Value: kind.String(),
		})
	}

	periodChoices := []discord.ApplicationCommandOptionChoiceString{
		{Name: "7 days", Value: "7d"},
		{Name: "30 days", Value: "30d"},
	}

	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        constants.ProductCommandName,
			Description: "Manage the product catalog",
			Options: []discord.ApplicationCommandOption{
				subcommand(constants.AddSubcommand, "Add a product",
					stringOption(constants.CodeOption, "Short product code", true),
					stringOption(constants.NameOption, "Display name", true),
					intOption(constants.PriceOption, "Price in rupiah", true)),
				subcommand(constants.UpdateSubcommand, "Change a product's name and price",
					stringOption(constants.CodeOption, "Product code", true),
					stringOption(constants.NameOption, "Display name", true),
					intOption(constants.PriceOption, "Price in rupiah", true)),
				subcommand(constants.DeleteSubcommand, "Delete a product",
					stringOption(constants.CodeOption, "Product code", true)),
				subcommand(constants.ListSubcommand, "List all products"),
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.CodeCommandName,
			Description: "Manage product codes",
			Options: []discord.ApplicationCommandOption{
				subcommand(constants.AddSubcommand, "Add one code",
					productCode,
					stringOption(constants.CodeOption, "The code", true)),
				subcommand(constants.BulkSubcommand, "Add many codes separated by commas",
					productCode,
					stringOption(constants.CodesOption, "Codes separated by commas", true)),
				subcommand(constants.DeleteSubcommand, "Delete an unused code",
					productCode,
					stringOption(constants.CodeOption, "The code", true)),
				subcommand(constants.ViewSubcommand, "View unused codes of a product", productCode),
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.StockCommandName,
			Description: "Stock overview and alerts",
			Options: []discord.ApplicationCommandOption{
				subcommand(constants.ViewSubcommand, "Show current stock"),
				subcommand(constants.ThresholdSubcommand, "Alert when a product runs low",
					discord.ApplicationCommandOptionString{
						Name:        constants.PeriodOption,
						Description: "Sales window compared against the stock",
						Required:    true,
						Choices:     periodChoices,
					},
					intOption(constants.ThresholdOption, "Alert below this many codes", true),
					channelOption("Channel for the alerts")),
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.OrderCommandName,
			Description: "Place and manage orders",
			Options: []discord.ApplicationCommandOption{
				subcommand(constants.BuySubcommand, "Order a product",
					productCode,
					intOption(constants.QuantityOption, "How many codes", false)),
				subcommand(constants.CompleteSubcommand, "Complete a pending order",
					intOption(constants.OrderOption, "Order number", true)),
				subcommand(constants.CancelSubcommand, "Cancel a pending order",
					intOption(constants.OrderOption, "Order number", true)),
				subcommand(constants.PendingSubcommand, "List pending orders"),
				subcommand(constants.MineSubcommand, "List your orders"),
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.SellCommandName,
			Description: "Record a direct sale and deliver the codes",
			Options: []discord.ApplicationCommandOption{
				userOption("Buyer"),
				productCode,
				intOption(constants.QuantityOption, "How many codes", false),
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.LeaderboardCommandName,
			Description: "Show the top buyers",
		},
		discord.SlashCommandCreate{
			Name:        constants.SalesCommandName,
			Description: "Sales reports",
			Options: []discord.ApplicationCommandOption{
				subcommand(constants.SummarySubcommand, "Revenue totals"),
				subcommand(constants.ChartSubcommand, "Daily revenue chart",
					intOption(constants.DaysOption, "Number of days", false)),
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.DisplayCommandName,
			Description: "Manage live displays",
			Options: []discord.ApplicationCommandOption{
				subcommand(constants.SetupSubcommand, "Post a live display in a channel",
					discord.ApplicationCommandOptionString{
						Name:        constants.KindOption,
						Description: "Display kind",
						Required:    true,
						Choices:     kindChoices,
					},
					channelOption("Channel to post in")),
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.TestimonialCommandName,
			Description: "Buyer testimonials",
			Options: []discord.ApplicationCommandOption{
				subcommand(constants.AddSubcommand, "Leave a testimonial",
					stringOption(constants.MessageOption, "Your review", true),
					intOption(constants.RatingOption, "Stars from 1 to 5", false)),
				subcommand(constants.ListSubcommand, "Show recent testimonials"),
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.ModCommandName,
			Description: "Moderation shortcuts",
			Options: []discord.ApplicationCommandOption{
				subcommand(constants.KickSubcommand, "Kick a member",
					userOption("Member to kick"),
					stringOption(constants.ReasonOption, "Reason", false)),
				subcommand(constants.BanSubcommand, "Ban a user",
					userOption("User to ban"),
					stringOption(constants.ReasonOption, "Reason", false)),
				subcommand(constants.UnbanSubcommand, "Lift a ban", userOption("User to unban")),
				subcommand(constants.PurgeSubcommand, "Delete recent messages",
					channelOption("Channel to clean"),
					intOption(constants.CountOption, "Number of messages (1-100)", true)),
			},
		},
	}
}
