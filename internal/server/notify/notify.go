// Package notify delivers verification codes to account owners.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Verification is everything a verification mail needs.
type Verification struct {
	Email     string
	Code      string
	AccountID string
	ValidFor  time.Duration
}

// Sender dispatches a verification code. A returned error means the owner
// was not reached.
type Sender interface {
	SendVerificationCode(ctx context.Context, v Verification) error
}

const verificationSubject = "Account Verification"

var verificationTemplate = template.Must(template.New("verification").Parse(
	`Hello,

Your verification code is {{.Code}}. It is valid for {{.Minutes}} minutes.

You can also verify your account here: {{.Link}}
`))

// Renderer turns a Verification into a mail subject and plain-text body.
type Renderer struct {
	clientURL string
}

func NewRenderer(clientURL string) *Renderer {
	return &Renderer{clientURL: strings.TrimRight(clientURL, "/")}
}

// Link is where the web client accepts the code for accountID.
func (r *Renderer) Link(accountID string) string {
	return fmt.Sprintf("%s/verify/%s", r.clientURL, accountID)
}

func (r *Renderer) Render(v Verification) (subject, body string, err error) {
	var buf bytes.Buffer
	err = verificationTemplate.Execute(&buf, struct {
		Code    string
		Minutes int
		Link    string
	}{
		Code:    v.Code,
		Minutes: int(v.ValidFor.Minutes()),
		Link:    r.Link(v.AccountID),
	})
	if err != nil {
		return "", "", fmt.Errorf("render verification mail: %w", err)
	}
	return verificationSubject, buf.String(), nil
}
