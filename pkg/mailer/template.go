package mailer

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/skillswap/realtime/pkg/model"
)

// AcceptDealLink builds the one-click accept URL embedded in the
// proposal email. It targets the API's accept-deal endpoint with every
// query parameter the redirect needs to carry onward.
func AcceptDealLink(baseURL string, provider, seeker model.User) string {
	v := url.Values{}
	v.Set("providerEmail", provider.Email)
	v.Set("providerName", provider.Name)
	v.Set("seekerEmail", seeker.Email)
	v.Set("seekerName", seeker.Name)
	v.Set("seekerId", seeker.ID)
	return strings.TrimRight(baseURL, "/") + "/accept-deal/" + url.PathEscape(provider.ID) + "?" + v.Encode()
}

// DealProposalEmail renders the notification sent to the provider when a
// seeker proposes a deal.
func DealProposalEmail(baseURL string, provider, seeker model.User, deal *model.Deal) (subject, htmlBody string) {
	subject = fmt.Sprintf("Community Skill Exchange: new proposal from %s", seeker.Name)

	var b strings.Builder
	b.WriteString(`<div style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; background-color: #f4f4f4; padding: 20px;">`)
	b.WriteString(`<div style="max-width: 600px; margin: auto; background-color: #fff; border-radius: 10px; padding: 20px;">`)
	fmt.Fprintf(&b, `<h2>%s has sent you a proposal:</h2>`, html.EscapeString(seeker.Name))
	if deal.Message != "" {
		fmt.Fprintf(&b, `<p>%s</p>`, html.EscapeString(deal.Message))
	}
	fmt.Fprintf(&b, `<p><strong>Proposed Deal:</strong><br>Time Frame: %s<br>Skill Offered: %s<br>Number of Sessions: %d</p>`,
		html.EscapeString(deal.TimeFrame), html.EscapeString(deal.SkillOffered), deal.NumberOfSessions)

	b.WriteString(`<p><strong>Selected Availability:</strong><br>`)
	for i, slot := range deal.SelectedAvailabilities {
		if i > 0 {
			b.WriteString("<br>")
		}
		b.WriteString(html.EscapeString(slot))
	}
	b.WriteString(`</p>`)

	fmt.Fprintf(&b, `<p style="text-align: center;"><a href="%s" style="display: inline-block; padding: 10px 20px; color: #fff; background-color: #007bff; text-decoration: none; border-radius: 5px;">Accept Deal</a></p>`,
		AcceptDealLink(baseURL, provider, seeker))
	b.WriteString(`<p>Best regards,<br>The Community Skill Exchange Team</p>`)
	b.WriteString(`</div></div>`)

	return subject, b.String()
}
