package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type FCMProvider struct {
	client *messaging.Client
}

func NewFCMProvider(credentialsFile string) (*FCMProvider, error) {
	ctx := context.Background()

	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	return &FCMProvider{client: client}, nil
}

func (f *FCMProvider) Send(ctx context.Context, n *Notification) (string, error) {
	message := &messaging.Message{
		Data: n.Data,
	}

	if n.Token != "" {
		message.Token = n.Token
	} else if n.Topic != "" {
		message.Topic = n.Topic
	}

	if n.Title != "" || n.Body != "" {
		message.Notification = &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		}
	}

	if n.Priority == "high" {
		message.Android = &messaging.AndroidConfig{Priority: "high"}
	}

	return f.client.Send(ctx, message)
}

func (f *FCMProvider) SubscribeToTopic(ctx context.Context, tokens []string, topic string) error {
	_, err := f.client.SubscribeToTopic(ctx, tokens, topic)
	return err
}

func (f *FCMProvider) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) error {
	_, err := f.client.UnsubscribeFromTopic(ctx, tokens, topic)
	return err
}
