package notifications

import (
	"fmt"

	"github.com/kjannette/scout-backend/internal/models"
)

// Poster receives trade announcements. Delivery never blocks trading.
type Poster interface {
	PostTrade(token models.Token, action models.Action, reason string)
}

// SocialPoster announces executed trades through the webhook sender.
type SocialPoster struct {
	sender  *Sender
	enabled bool
}

func NewSocialPoster(sender *Sender, enabled bool) *SocialPoster {
	return &SocialPoster{sender: sender, enabled: enabled}
}

func (p *SocialPoster) PostTrade(token models.Token, action models.Action, reason string) {
	if !p.enabled || p.sender == nil {
		return
	}
	p.sender.SendAsync(TradeMessage(token, action, reason))
}

// TradeMessage renders the announcement. A token without a name is shown
// by its symbol.
func TradeMessage(token models.Token, action models.Action, reason string) string {
	name := token.Name
	if name == "" {
		name = token.Symbol
	}
	return fmt.Sprintf("🚨 SCOUT UPDATE: Just executed a %s order for $%s (%s).\n\nReason: %s\n\n#Monad #Moltiverse #SovereignScout $%s",
		action, token.Symbol, name, reason, token.Symbol)
}
