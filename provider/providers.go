package provider

import "strings"

// Provider names.
const (
	Gmail    = "gmail"
	Outlook  = "outlook"
	Yahoo    = "yahoo"
	AOL      = "aol"
	ICloud   = "icloud"
	Fastmail = "fastmail"
	GMX      = "gmx"
	Custom   = "custom"
	Generic  = "generic"
	Unknown  = "unknown"
)

// Info describes the endpoints of a provider.
type Info struct {
	Name         string
	Type         string
	IMAPEndpoint string
	SMTPEndpoint string
	Domains      []string
}

var known = map[string]Info{
	Gmail: {
		Name: Gmail, Type: "gmail",
		IMAPEndpoint: "imap.gmail.com:993", SMTPEndpoint: "smtp.gmail.com:587",
		Domains: []string{"gmail.com", "googlemail.com"},
	},
	Outlook: {
		Name: Outlook, Type: "outlook",
		IMAPEndpoint: "outlook.office365.com:993", SMTPEndpoint: "smtp.office365.com:587",
		Domains: []string{"outlook.com", "hotmail.com", "live.com", "msn.com"},
	},
	Yahoo: {
		Name: Yahoo, Type: Generic,
		IMAPEndpoint: "imap.mail.yahoo.com:993", SMTPEndpoint: "smtp.mail.yahoo.com:587",
		Domains: []string{"yahoo.com", "ymail.com", "rocketmail.com"},
	},
	AOL: {
		Name: AOL, Type: Generic,
		IMAPEndpoint: "imap.aol.com:993", SMTPEndpoint: "smtp.aol.com:587",
		Domains: []string{"aol.com", "aim.com"},
	},
	ICloud: {
		Name: ICloud, Type: Generic,
		IMAPEndpoint: "imap.mail.me.com:993", SMTPEndpoint: "smtp.mail.me.com:587",
		Domains: []string{"icloud.com", "me.com", "mac.com"},
	},
	Fastmail: {
		Name: Fastmail, Type: Generic,
		IMAPEndpoint: "imap.fastmail.com:993", SMTPEndpoint: "smtp.fastmail.com:465",
		Domains: []string{"fastmail.com", "fastmail.fm"},
	},
	GMX: {
		Name: GMX, Type: Generic,
		IMAPEndpoint: "imap.gmx.com:993", SMTPEndpoint: "mail.gmx.com:587",
		Domains: []string{"gmx.com", "gmx.net", "gmx.de"},
	},
	Custom: {Name: Custom, Type: Generic},
}

var byDomain = func() map[string]string {
	out := make(map[string]string)
	for name, info := range known {
		for _, domain := range info.Domains {
			out[domain] = name
		}
	}
	return out
}()

// Lookup returns the provider description.
func Lookup(name string) (Info, bool) {
	info, ok := known[strings.ToLower(strings.TrimSpace(name))]
	return info, ok
}

// ProviderFromAddress guesses the provider from the e-mail domain. Unknown
// domains resolve to Unknown.
func ProviderFromAddress(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return Unknown
	}
	if name, ok := byDomain[email[at+1:]]; ok {
		return name
	}
	return Unknown
}
