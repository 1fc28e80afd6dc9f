package presence

import (
	"net/url"
	"strings"

	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

var searchHosts = map[string]string{
	"google":     "q",
	"bing":       "q",
	"duckduckgo": "q",
	"yahoo":      "p",
	"yandex":     "text",
	"baidu":      "wd",
	"ecosia":     "q",
}

var socialDomains = []string{
	"facebook.com", "fb.com", "instagram.com", "twitter.com", "t.co", "x.com",
	"linkedin.com", "lnkd.in", "reddit.com", "pinterest.com", "youtube.com", "tiktok.com", "whatsapp.com",
}

var mailDomains = []string{"outlook.com", "outlook.live.com", "mail.yahoo.com", "mail.google.com", "proton.me"}

func matchesDomain(host string, domains []string) bool {
	for _, domain := range domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// ClassifyReferrer buckets a raw document.referrer into a referrer type and,
// for search engines, the query that led to the visit.
func ClassifyReferrer(referrer string) (model.ReferrerType, string) {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" || strings.EqualFold(referrer, "direct") {
		return model.ReferrerDirect, ""
	}

	u, err := url.Parse(referrer)
	if err != nil || u.Host == "" {
		return model.ReferrerReferral, ""
	}
	host := strings.ToLower(u.Hostname())
	query := u.Query()

	if strings.EqualFold(query.Get("utm_medium"), "email") || strings.HasPrefix(host, "mail.") || matchesDomain(host, mailDomains) {
		return model.ReferrerEmail, ""
	}
	for engine, param := range searchHosts {
		if strings.HasPrefix(host, engine+".") || strings.Contains(host, "."+engine+".") {
			return model.ReferrerSearch, query.Get(param)
		}
	}
	if matchesDomain(host, socialDomains) {
		return model.ReferrerSocial, ""
	}
	return model.ReferrerReferral, ""
}
