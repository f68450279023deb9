package mailer

import (
	"bytes"
	"html/template"
	"net/url"
	"strings"
)

// Message is an outbound HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

var verificationTmpl = template.Must(template.New("verify").Parse(
	`<p>Hi {{.Name}},</p>
<p>Please verify your email by clicking the link below:</p>
<p><a href="{{.Link}}">Verify Email</a></p>`))

var welcomeTmpl = template.Must(template.New("welcome").Parse(
	`<p>Hi {{.Name}},</p>
<p>Your email is verified. You can now log in and start managing your tasks with the assistant.</p>`))

// VerificationLink returns the link that redeems token.
func VerificationLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/api/auth/verify/" + url.PathEscape(token)
}

// VerificationMessage builds the mail sent after registration.
func VerificationMessage(baseURL, to, name, token string) (Message, error) {
	var body bytes.Buffer
	err := verificationTmpl.Execute(&body, struct {
		Name string
		Link string
	}{Name: name, Link: VerificationLink(baseURL, token)})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Verify Your Email", HTML: body.String()}, nil
}

// WelcomeMessage builds the mail sent once an account is verified.
func WelcomeMessage(to, name string) (Message, error) {
	var body bytes.Buffer
	if err := welcomeTmpl.Execute(&body, struct{ Name string }{Name: name}); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Welcome to AI To-Do", HTML: body.String()}, nil
}
