package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sethvargo/go-retry"
)

// SESAPI is the slice of the SES v2 client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESOptions configures the SES client.
type SESOptions struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewSESClient builds an SES v2 client. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain.
func NewSESClient(ctx context.Context, opts SESOptions) (*sesv2.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return sesv2.NewFromConfig(cfg, func(o *sesv2.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}

const (
	sesMaxRetries  = 3
	sesBackoffBase = 200 * time.Millisecond
)

// SESSender mails verification codes through Amazon SES, retrying transient
// failures with exponential backoff.
type SESSender struct {
	client   SESAPI
	from     string
	renderer *Renderer
	backoff  func() retry.Backoff
}

func NewSESSender(client SESAPI, from string, renderer *Renderer) *SESSender {
	return &SESSender{
		client:   client,
		from:     from,
		renderer: renderer,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(sesMaxRetries, retry.NewExponential(sesBackoffBase))
		},
	}
}

func (s *SESSender) SendVerificationCode(ctx context.Context, v Verification) error {
	subject, body, err := s.renderer.Render(v)
	if err != nil {
		return err
	}

	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{v.Email}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	err = retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		if _, err := s.client.SendEmail(ctx, in); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ses send to %s: %w", v.Email, err)
	}
	return nil
}
