package bot

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/shop"
)

// Request is a parsed slash command invocation.
type Request struct {
	GuildID    snowflake.ID
	User       shop.Buyer
	Admin      bool
	Command    string
	Subcommand string

	strings map[string]string
	ints    map[string]int
	ids     map[string]snowflake.ID
	users   map[string]shop.Buyer
}

// NewRequest creates an empty request for a command route.
func NewRequest(guildID snowflake.ID, user shop.Buyer, command, subcommand string) *Request {
	return &Request{
		GuildID:    guildID,
		User:       user,
		Command:    command,
		Subcommand: subcommand,
		strings:    make(map[string]string),
		ints:       make(map[string]int),
		ids:        make(map[string]snowflake.ID),
		users:      make(map[string]shop.Buyer),
	}
}

// WithString sets a string option.
func (r *Request) WithString(name, value string) *Request {
	r.strings[name] = value
	return r
}

// WithInt sets an integer option.
func (r *Request) WithInt(name string, value int) *Request {
	r.ints[name] = value
	return r
}

// WithID sets a channel or other snowflake option.
func (r *Request) WithID(name string, value snowflake.ID) *Request {
	r.ids[name] = value
	return r
}

// WithUser sets a user option.
func (r *Request) WithUser(name string, user shop.Buyer) *Request {
	r.ids[name] = user.ID
	r.users[name] = user
	return r
}

// String returns a string option or the empty string.
func (r *Request) String(name string) string {
	return r.strings[name]
}

// Int returns an integer option or def when it was not given.
func (r *Request) Int(name string, def int) int {
	if v, ok := r.ints[name]; ok {
		return v
	}
	return def
}

// ID returns a snowflake option or zero.
func (r *Request) ID(name string) snowflake.ID {
	return r.ids[name]
}

// UserOption returns a resolved user option.
func (r *Request) UserOption(name string) (shop.Buyer, bool) {
	user, ok := r.users[name]
	return user, ok
}

// Route is the "command subcommand" key of the request.
func (r *Request) Route() string {
	return route(r.Command, r.Subcommand)
}

func route(command, subcommand string) string {
	return strings.TrimSpace(command + " " + subcommand)
}

// requestFromEvent builds a Request from a slash command interaction.
func requestFromEvent(event *events.ApplicationCommandInteractionCreate) *Request {
	data := event.SlashCommandInteractionData()

	var subcommand string
	if data.SubCommandName != nil {
		subcommand = *data.SubCommandName
	}

	user := event.User()
	req := NewRequest(0, buyerFromUser(user), data.CommandName(), subcommand)
	if guildID := event.GuildID(); guildID != nil {
		req.GuildID = *guildID
	}

	for name, option := range data.Options {
		switch option.Type {
		case discord.ApplicationCommandOptionTypeString:
			req.WithString(name, data.String(name))
		case discord.ApplicationCommandOptionTypeInt:
			req.WithInt(name, data.Int(name))
		case discord.ApplicationCommandOptionTypeUser:
			req.WithUser(name, buyerFromUser(data.User(name)))
		case discord.ApplicationCommandOptionTypeChannel:
			req.WithID(name, data.Snowflake(name))
		}
	}

	return req
}

func buyerFromUser(user discord.User) shop.Buyer {
	return shop.Buyer{
		ID:        user.ID,
		Username:  user.Username,
		AvatarURL: user.EffectiveAvatarURL(),
	}
}

// Response is what a handler wants sent back to the invoking user.
type Response struct {
	Content  string
	Embeds   []discord.Embed
	File     *bytes.Buffer
	FileName string
}

// Reply is a plain ephemeral text response.
func Reply(format string, args ...any) *Response {
	return &Response{Content: fmt.Sprintf(format, args...)}
}

// update converts the response into the deferred interaction update.
func (r *Response) update() discord.MessageUpdate {
	builder := discord.NewMessageUpdateBuilder().
		SetContent(r.Content).
		SetEmbeds(r.Embeds...)

	if r.File != nil {
		builder.AddFile(r.FileName, "", r.File)
	}

	return builder.Build()
}
