package textgen

import (
	"strings"
	"text/template"
)

var welcomeTemplate = template.Must(template.New("welcome").Parse(`Subject: Your account on {{.Server}} is ready

Hi {{.Name}},

An account has been created for you on {{.Server}}.

  Username:           {{.Username}}
  Temporary password: [TEMPORARY PASSWORD]

Connect with:

  ssh {{.Username}}@{{.Server}}

You will be asked to change your password on first login. Please choose a
strong password and do not share it.

Reply to this email if you have trouble signing in.
`))

// FallbackWelcomeEmail renders the built-in welcome email
func FallbackWelcomeEmail(fullName, username, serverName string) string {
	name := strings.TrimSpace(fullName)
	if name == "" {
		name = username
	}

	var b strings.Builder
	// The template only formats strings into a builder and cannot fail.
	_ = welcomeTemplate.Execute(&b, struct {
		Name, Username, Server string
	}{name, username, serverName})
	return b.String()
}
