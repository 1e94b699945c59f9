/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"
)

// SQSCredentials configures the static credentials for a named SQS backend.
// The entrypoint fills only Region and EndpointURL from configuration; no
// code here reads per-backend credential environment variables. Leave
// AccessKeyID empty to fall back to the SDK's default
// provider chain (env vars, shared config, instance role).
type SQSCredentials struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	EndpointURL     string
}

// SQSQueue implements Queue on top of Amazon SQS for multi-process or
// multi-host deployments. Visibility-timeout redelivery is native to SQS;
// this backend is a thin translation layer.
type SQSQueue struct {
	client          *sqs.Client
	queueURL        string
	waitMessageTime time.Duration
	log             zerolog.Logger
}

// NewSQSQueue creates an SQS-backed Queue. queueURL must already exist;
// Init verifies reachability rather than creating the queue, since
// provisioning is an infrastructure concern outside the process.
func NewSQSQueue(ctx context.Context, queueURL string, waitMessageTime time.Duration, creds SQSCredentials, log zerolog.Logger) (*SQSQueue, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(creds.Region),
	}
	if creds.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if creds.EndpointURL != "" {
			o.BaseEndpoint = aws.String(creds.EndpointURL)
		}
	})

	return &SQSQueue{
		client:          client,
		queueURL:        queueURL,
		waitMessageTime: waitMessageTime,
		log:             log.With().Str("component", "sqs_queue").Logger(),
	}, nil
}

func (q *SQSQueue) Init(ctx context.Context) error {
	_, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return fmt.Errorf("verifying sqs queue %s: %w", q.queueURL, err)
	}
	return nil
}

type sqsEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (q *SQSQueue) SendMessage(ctx context.Context, msgType string, payload any) error {
	encodedPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding message payload: %w", err)
	}
	body, err := json.Marshal(sqsEnvelope{Type: msgType, Payload: encodedPayload})
	if err != nil {
		return fmt.Errorf("encoding message envelope: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("sending sqs message: %w", err)
	}
	return nil
}

func (q *SQSQueue) GetMessage(ctx context.Context) (*Message, error) {
	waitSeconds := int32(q.waitMessageTime.Seconds())
	if waitSeconds > 20 {
		waitSeconds = 20 // SQS long-poll cap
	}

	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     waitSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("receiving sqs message: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	raw := out.Messages[0]
	var envelope sqsEnvelope
	if err := json.Unmarshal([]byte(aws.ToString(raw.Body)), &envelope); err != nil {
		q.log.Error().Err(err).Str("message_id", aws.ToString(raw.MessageId)).Msg("dropping undecodable sqs message")
		_, _ = q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(q.queueURL),
			ReceiptHandle: raw.ReceiptHandle,
		})
		return nil, nil
	}

	return &Message{
		ID:            aws.ToString(raw.MessageId),
		Type:          envelope.Type,
		Payload:       envelope.Payload,
		ReceiptHandle: aws.ToString(raw.ReceiptHandle),
	}, nil
}

func (q *SQSQueue) ChangeVisibility(ctx context.Context, msg *Message, timeout time.Duration) error {
	_, err := q.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.queueURL),
		ReceiptHandle:     aws.String(msg.ReceiptHandle),
		VisibilityTimeout: int32(timeout.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("extending sqs visibility: %w", err)
	}
	return nil
}

func (q *SQSQueue) DeleteMessage(ctx context.Context, msg *Message) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(msg.ReceiptHandle),
	})
	if err != nil {
		return fmt.Errorf("deleting sqs message: %w", err)
	}
	return nil
}

func (q *SQSQueue) WaitMessageTime() time.Duration {
	return q.waitMessageTime
}

// ApproximateDepth reads SQS's own ApproximateNumberOfMessages queue
// attribute, which is itself eventually-consistent/estimated.
func (q *SQSQueue) ApproximateDepth(ctx context.Context) (int, error) {
	out, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return 0, fmt.Errorf("reading sqs queue depth: %w", err)
	}
	raw := out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]
	depth, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing sqs queue depth %q: %w", raw, err)
	}
	return depth, nil
}
