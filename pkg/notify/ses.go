package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"laundry-dispatch/internal/models"
)

// SESSink sends order status emails through AWS SES. Only events flagged
// with SendEmail produce mail; everything else is a no-op.
type SESSink struct {
	client *sesv2.Client
	sender string
	// lookupEmail resolves a customer id to an address. Kept as a function
	// so the sink does not depend on the users module.
	lookupEmail func(ctx context.Context, customerID int64) (string, error)
}

// NewSESSink creates the SES-backed sink.
func NewSESSink(client *sesv2.Client, sender string, lookupEmail func(ctx context.Context, customerID int64) (string, error)) *SESSink {
	return &SESSink{client: client, sender: sender, lookupEmail: lookupEmail}
}

// Notify sends a plain status email. Errors are returned for the caller to
// log; they must never affect the transaction that produced the event.
func (s *SESSink) Notify(ctx context.Context, order *models.Order, ev Event) error {
	if !ev.SendEmail {
		return nil
	}
	to, err := s.lookupEmail(ctx, order.CustomerID)
	if err != nil {
		return fmt.Errorf("notify: resolve recipient for customer %d: %w", order.CustomerID, err)
	}

	subject := fmt.Sprintf("Order %s update: %s", order.OrderNumber, order.Status)
	body := fmt.Sprintf("Your order %s is now %s.", order.OrderNumber, order.Status)
	if ev.Notes != "" {
		body += "\n\n" + ev.Notes
	}

	_, err = s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.sender),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body:    &types.Body{Text: &types.Content{Data: aws.String(body)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: ses send for order %s: %w", order.OrderNumber, err)
	}
	return nil
}
