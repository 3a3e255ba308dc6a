package mailer

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskTypeSendEmail is the queue task name for one outbound email.
const TaskTypeSendEmail = "email:send"

// QueueName isolates mail delivery from any future task traffic.
const QueueName = "mail"

type emailPayload struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"htmlBody"`
}

// Enqueuer implements Sender by queueing the email for the worker. The
// request path returns as soon as the job is durably enqueued.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(redisAddr string) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

var _ Sender = (*Enqueuer)(nil)

func (e *Enqueuer) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload, err := json.Marshal(emailPayload{To: to, Subject: subject, HTMLBody: htmlBody})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskTypeSendEmail, payload)
	_, err = e.client.EnqueueContext(ctx, task, asynq.Queue(QueueName), asynq.MaxRetry(5))
	return err
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// RegisterSendEmail binds the delivery handler: dequeue the job, hand it
// to the real sender. A returned error triggers the queue's retry policy.
func RegisterSendEmail(mux *asynq.ServeMux, sender Sender) {
	mux.HandleFunc(TaskTypeSendEmail, func(ctx context.Context, t *asynq.Task) error {
		var p emailPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			// Malformed payloads never become deliverable; drop instead
			// of retrying.
			return nil
		}
		return sender.Send(ctx, p.To, p.Subject, p.HTMLBody)
	})
}
