// Copyright (c) 2026 CareLink. All rights reserved.
// Author: dev@carelink.app

/*
Package email delivers transactional mail through Postmark.

The auth flows treat delivery as best-effort: a failed send is logged but
never fails the request that triggered it, because the verification artifact
is already persisted and can be re-sent.
*/
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mrz1836/postmark"
)

// ErrSendFailed wraps every delivery failure reported by the provider.
var ErrSendFailed = errors.New("email: send failed")

// Sender delivers the transactional messages used by the identity flows.
type Sender struct {
	client *postmark.Client
	from   string
	logger *slog.Logger
}

// NewSender creates a Postmark-backed [Sender]. Both tokens must be set so a
// misconfigured deployment fails at startup, not at first send.
func NewSender(serverToken, accountToken, from string, logger *slog.Logger) (*Sender, error) {
	if serverToken == "" {
		return nil, errors.New("email: Postmark server token is required")
	}
	if accountToken == "" {
		return nil, errors.New("email: Postmark account token is required")
	}
	if from == "" {
		return nil, errors.New("email: sender address is required")
	}

	return &Sender{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
		logger: logger,
	}, nil
}

// LogSender is a development stand-in that writes messages to the log
// instead of delivering them. Used when no Postmark tokens are configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only [LogSender].
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (sender *LogSender) SendVerificationEmail(ctx context.Context, recipient, code, link string) error {
	sender.logger.InfoContext(ctx, "email_skipped",
		slog.String("kind", "verification"),
		slog.String("to", recipient),
		slog.String("code", code),
		slog.String("link", link),
	)
	return nil
}

func (sender *LogSender) SendPasswordResetEmail(ctx context.Context, recipient, link string) error {
	sender.logger.InfoContext(ctx, "email_skipped",
		slog.String("kind", "password_reset"),
		slog.String("to", recipient),
		slog.String("link", link),
	)
	return nil
}

// SendVerificationEmail delivers the six-digit email verification code along
// with a clickable confirmation link.
func (sender *Sender) SendVerificationEmail(ctx context.Context, recipient, code, link string) error {
	subject := "Verify your CareLink email address"
	htmlBody := fmt.Sprintf(`
		<h2>Welcome to CareLink</h2>
		<p>Your verification code is:</p>
		<p style="font-size:28px;font-weight:bold;letter-spacing:4px;">%s</p>
		<p>Or confirm directly by clicking <a href="%s">this link</a>.</p>
		<p>The code expires in 15 minutes. If you did not create an account, you can ignore this message.</p>`,
		code, link)
	textBody := fmt.Sprintf("Welcome to CareLink\n\nYour verification code is: %s\n\nOr confirm here: %s\n\nThe code expires in 15 minutes.", code, link)

	return sender.send(ctx, recipient, subject, htmlBody, textBody, "email-verification")
}

// SendPasswordResetEmail delivers the single-use password reset link.
func (sender *Sender) SendPasswordResetEmail(ctx context.Context, recipient, link string) error {
	subject := "Reset your CareLink password"
	htmlBody := fmt.Sprintf(`
		<h2>Password Reset</h2>
		<p>We received a request to reset the password for your account.</p>
		<p><a href="%s">Choose a new password</a></p>
		<p>The link expires in 15 minutes. If you did not request this, no action is needed.</p>`,
		link)
	textBody := fmt.Sprintf("Password Reset\n\nChoose a new password here: %s\n\nThe link expires in 15 minutes. If you did not request this, no action is needed.", link)

	return sender.send(ctx, recipient, subject, htmlBody, textBody, "password-reset")
}

func (sender *Sender) send(ctx context.Context, recipient, subject, htmlBody, textBody, tag string) error {

	response, err := sender.client.SendEmail(ctx, postmark.Email{
		From:       sender.from,
		To:         recipient,
		Subject:    subject,
		Tag:        tag,
		HTMLBody:   htmlBody,
		TextBody:   textBody,
		TrackOpens: true,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if response.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error %d: %s", response.ErrorCode, response.Message))
	}

	sender.logger.InfoContext(ctx, "email_sent",
		slog.String("tag", tag),
		slog.String("message_id", response.MessageID),
	)

	return nil
}
