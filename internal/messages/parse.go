// Package messages stores inbound mail for active addresses.
package messages

import (
	"errors"
	"fmt"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

const maxPartBytes = 2 << 20

// Parsed is the subset of an RFC 822 message that gets stored.
type Parsed struct {
	From       string
	Recipients []string
	Subject    string
	Text       string
	HTML       string
}

var recipientHeaders = []string{"To", "Cc", "Delivered-To", "X-Original-To"}

// Parse reads a raw message. Recipients are lower-cased and de-duplicated.
func Parse(r io.Reader) (*Parsed, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	msg := &Parsed{}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	}
	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	}

	seen := map[string]struct{}{}
	for _, key := range recipientHeaders {
		list, err := mr.Header.AddressList(key)
		if err != nil {
			continue
		}
		for _, addr := range list {
			address := strings.ToLower(strings.TrimSpace(addr.Address))
			if address == "" {
				continue
			}
			if _, dup := seen[address]; dup {
				continue
			}
			seen[address] = struct{}{}
			msg.Recipients = append(msg.Recipients, address)
		}
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read part: %w", err)
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		body, err := io.ReadAll(io.LimitReader(part.Body, maxPartBytes))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		switch {
		case strings.HasPrefix(ct, "text/html"):
			if msg.HTML == "" {
				msg.HTML = string(body)
			}
		case strings.HasPrefix(ct, "text/plain") || ct == "":
			if msg.Text == "" {
				msg.Text = string(body)
			}
		}
	}
	return msg, nil
}
