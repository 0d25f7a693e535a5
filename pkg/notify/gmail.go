package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailTransport sends through the Gmail API as the authenticated user.
type GmailTransport struct {
	srv *gmail.Service
}

func NewGmailTransport(ctx context.Context, httpClient *http.Client) (*GmailTransport, error) {
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Gmail client: %w", err)
	}
	return &GmailTransport{srv: srv}, nil
}

func (g *GmailTransport) Send(ctx context.Context, msg Message) error {
	raw := base64.URLEncoding.EncodeToString(msg.Bytes())
	if _, err := g.srv.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail send: %w", err)
	}
	return nil
}
