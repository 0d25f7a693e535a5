// Package notify mails an addressee the unfinished tasks flagged for
// notification that are assigned to them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/harrisonrobin/tasksheet/pkg/model"
)

var (
	ErrNothingToSend    = errors.New("no flagged open tasks for this addressee")
	ErrUnknownRecipient = errors.New("no mail address for addressee")
)

// Transport delivers one message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Ledger is the part of a session the dispatcher reads and, optionally, updates.
type Ledger interface {
	Tasks() []model.Task
	ClearNotifyFlags(positions []int)
}

// Select returns the positions of tasks flagged for notification, not Done,
// and assigned to addressee in any slot. Matching is exact and case-sensitive.
func Select(tasks []model.Task, addressee string) []int {
	var positions []int
	for i, t := range tasks {
		if !t.Notify || t.IsDone() || !t.AssignedTo(addressee) {
			continue
		}
		positions = append(positions, i)
	}
	return positions
}

// Compose renders the message body for name listing tasks.
func Compose(name, salutation, link string, tasks []model.Task) string {
	var b strings.Builder
	if salutation != "" {
		b.WriteString(salutation)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "%s,\n\nThe following tasks need your attention:\n\n", name)
	for _, t := range tasks {
		due := t.Due.String()
		if due == "" {
			due = "-"
		}
		assignees := t.AssigneeList()
		if assignees == "" {
			assignees = "-"
		}
		fmt.Fprintf(&b, "■ %s\n", t.Title)
		fmt.Fprintf(&b, "  Due: %s\n", due)
		fmt.Fprintf(&b, "  Assignees: %s\n", assignees)
		fmt.Fprintf(&b, "  Priority: %s\n", t.Priority)
		fmt.Fprintf(&b, "  Status: %s\n\n", t.Status)
	}
	if link != "" {
		b.WriteString(link)
		b.WriteString("\n")
	}
	return b.String()
}

// Dispatcher composes and sends one message per trigger.
type Dispatcher struct {
	Transport  Transport
	From       mail.Address
	Subject    string
	Salutation string
	AppLink    string
	// Directory maps addressee names to mail addresses.
	Directory map[string]string
	// ClearAfterSend resets the notify flags of the tasks that were sent.
	// Off by default, so dispatching twice sends twice.
	ClearAfterSend bool
}

// Result describes a successful dispatch.
type Result struct {
	To        mail.Address `json:"to"`
	Positions []int        `json:"positions"`
}

// Dispatch sends addressee their flagged open tasks. A transport failure
// fails the whole dispatch; there is no retry.
func (d *Dispatcher) Dispatch(ctx context.Context, l Ledger, addressee string) (Result, error) {
	tasks := l.Tasks()
	positions := Select(tasks, addressee)
	if len(positions) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrNothingToSend, addressee)
	}
	addr := d.lookup(addressee)
	if addr == "" {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownRecipient, addressee)
	}

	selected := make([]model.Task, len(positions))
	for i, p := range positions {
		selected[i] = tasks[p]
	}
	msg := Message{
		From:    d.From,
		To:      mail.Address{Name: addressee, Address: addr},
		Subject: d.Subject,
		Body:    Compose(addressee, d.Salutation, d.AppLink, selected),
	}
	if err := d.Transport.Send(ctx, msg); err != nil {
		log.Warnf("could not send notification to %s: %v", addressee, err)
		return Result{}, fmt.Errorf("send notification: %w", err)
	}
	log.Printf("Sent %d task(s) to %s", len(positions), msg.To.String())

	if d.ClearAfterSend {
		l.ClearNotifyFlags(positions)
	}
	return Result{To: msg.To, Positions: positions}, nil
}

// lookup resolves addressee in the directory, falling back to a
// case-insensitive match since config keys may arrive lowercased.
func (d *Dispatcher) lookup(addressee string) string {
	if addr, ok := d.Directory[addressee]; ok {
		return addr
	}
	for name, addr := range d.Directory {
		if strings.EqualFold(name, addressee) {
			return addr
		}
	}
	return ""
}
