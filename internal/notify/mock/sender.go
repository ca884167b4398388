package mock

import (
	"context"

	"github.com/stripfeed/stripfeed/internal/notify"
)

type Sender struct {
	Messages []notify.Message
	Err      error
}

func (s *Sender) Send(ctx context.Context, message notify.Message) error {
	_ = ctx
	if s.Err != nil {
		return s.Err
	}
	s.Messages = append(s.Messages, message)
	return nil
}
