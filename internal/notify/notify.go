// Package notify delivers operator alerts after update runs.
package notify

import (
	"context"
	"fmt"
	"strings"
)

type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, message Message) error
}

// FailureReport builds the message sent when an update run had failures.
func FailureReport(from, to, subject string, succeeded, total int, failedComics []string) Message {
	if subject == "" {
		subject = fmt.Sprintf("stripfeed: %d/%d comics failed", total-succeeded, total)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<p>Update run finished: %d/%d comics succeeded.</p>", succeeded, total)
	if len(failedComics) > 0 {
		b.WriteString("<p>Failed comics:</p><ul>")
		for _, comic := range failedComics {
			b.WriteString("<li>" + comic + "</li>")
		}
		b.WriteString("</ul>")
	}

	return Message{From: from, To: to, Subject: subject, Body: b.String()}
}
