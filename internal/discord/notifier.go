// Package discord posts announcements to a Discord channel.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/microcosm-cc/bluemonday"

	"github.com/lystaria/site-service/internal/config"
	"github.com/lystaria/site-service/internal/models"
	"github.com/lystaria/site-service/internal/urlutil"
)

const (
	maxTitleRunes   = 256
	maxExcerptRunes = 300
)

// ErrChannelUnavailable is returned when the configured channel cannot be
// resolved or cannot receive messages.
var ErrChannelUnavailable = errors.New("announcement channel unavailable")

// ChannelAPI is the subset of *discordgo.Session the notifier uses.
type ChannelAPI interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier delivers announcements as a role mention plus an embed.
type Notifier struct {
	api       ChannelAPI
	channelID string
	roleID    string
	strip     *bluemonday.Policy
}

// New creates a Notifier backed by a bot session. Only REST calls are made,
// so the gateway is never opened.
func New(cfg config.DiscordConfig) (*Notifier, error) {
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return NewNotifier(session, cfg.ChannelID, cfg.RoleID), nil
}

// NewNotifier creates a Notifier over api.
func NewNotifier(api ChannelAPI, channelID, roleID string) *Notifier {
	return &Notifier{
		api:       api,
		channelID: channelID,
		roleID:    roleID,
		strip:     bluemonday.StrictPolicy(),
	}
}

// Deliver posts a and returns the message id.
func (n *Notifier) Deliver(ctx context.Context, a models.Announcement) (string, error) {
	channel, err := n.api.Channel(n.channelID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	if !postable(channel) {
		return "", fmt.Errorf("%w: channel %s has type %d", ErrChannelUnavailable, n.channelID, channel.Type)
	}

	msg, err := n.api.ChannelMessageSendComplex(channel.ID, n.Message(a), discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return msg.ID, nil
}

// Message renders the outgoing message for a. Mentions are restricted to the
// configured role.
func (n *Notifier) Message(a models.Announcement) *discordgo.MessageSend {
	embed := &discordgo.MessageEmbed{
		Title: truncate(a.Post.Title, maxTitleRunes),
		URL:   a.Post.URL,
	}
	if excerpt := strings.TrimSpace(n.strip.Sanitize(a.Post.Excerpt)); excerpt != "" {
		embed.Description = truncate(excerpt, maxExcerptRunes)
	}
	if urlutil.IsHTTPURL(a.Post.Image) {
		embed.Image = &discordgo.MessageEmbedImage{URL: a.Post.Image}
	}

	return &discordgo.MessageSend{
		Content: fmt.Sprintf("<@&%s> %s", n.roleID, a.Post.URL),
		Embeds:  []*discordgo.MessageEmbed{embed},
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
			Roles: []string{n.roleID},
		},
	}
}

func postable(c *discordgo.Channel) bool {
	return c != nil && (c.Type == discordgo.ChannelTypeGuildText || c.Type == discordgo.ChannelTypeGuildNews)
}

// truncate cuts s to at most max runes, ending with an ellipsis when cut.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
