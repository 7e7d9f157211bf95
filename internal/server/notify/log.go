package notify

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// LogSender writes verification mails to the log instead of sending them.
// Development only: the code ends up in the log.
type LogSender struct {
	log      logging.Logger
	renderer *Renderer
}

func NewLogSender(log logging.Logger, renderer *Renderer) *LogSender {
	return &LogSender{log: log, renderer: renderer}
}

func (s *LogSender) SendVerificationCode(ctx context.Context, v Verification) error {
	subject, body, err := s.renderer.Render(v)
	if err != nil {
		return err
	}
	s.log.Info(ctx, "verification mail", "to", v.Email, "subject", subject, "body", body)
	return nil
}
