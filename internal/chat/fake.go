package chat

import "context"

// Sent is one message recorded by FakeTransport.
type Sent struct {
	ChatID int64
	Text   string
}

// FakeTransport records sent messages and serves scripted inbound messages.
type FakeTransport struct {
	// Sent contains every message passed to Send.
	Sent []Sent

	// Inbox is returned (and cleared) by the next Updates call.
	Inbox []Message

	// SendError, if set, will be returned by Send.
	SendError error

	// UpdatesError, if set, will be returned by Updates.
	UpdatesError error

	// OnSend, if set, is invoked with the text on every Send.
	OnSend func(text string)

	// Commits counts Commit calls.
	Commits int
}

// Send records the message.
func (f *FakeTransport) Send(_ context.Context, chatID int64, text string) error {
	if f.OnSend != nil {
		f.OnSend(text)
	}
	if f.SendError != nil {
		return f.SendError
	}
	f.Sent = append(f.Sent, Sent{ChatID: chatID, Text: text})
	return nil
}

// Updates drains the inbox.
func (f *FakeTransport) Updates(_ context.Context) ([]Message, error) {
	if f.UpdatesError != nil {
		return nil, f.UpdatesError
	}
	msgs := f.Inbox
	f.Inbox = nil
	return msgs, nil
}

// Commit records the call.
func (f *FakeTransport) Commit(_ context.Context) error {
	f.Commits++
	return nil
}

// Texts returns the text of every sent message.
func (f *FakeTransport) Texts() []string {
	out := make([]string, len(f.Sent))
	for i, s := range f.Sent {
		out[i] = s.Text
	}
	return out
}
