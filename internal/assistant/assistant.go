// Package assistant runs one conversational turn: transcript in, model
// reply out, directive extracted, dispatched, result surfaced. The LLM is
// behind the Completer interface so turns can be tested without the API.
package assistant

import (
	"context"
	"fmt"

	log "log/slog"

	"sysvox/internal/command"
	"sysvox/internal/directive"
	"sysvox/internal/session"
)

// Completer is the language-model collaborator: role-tagged transcript in,
// one reply string out.
type Completer interface {
	Complete(ctx context.Context, system string, turns []session.Turn) (string, error)
}

// Turn is the outcome of one processed utterance. Result is nil when the
// reply carried no directive.
type Turn struct {
	Prose   string
	Command string
	Result  *command.Result
}

type Assistant struct {
	llm  Completer
	sess *session.Session
	disp *command.Dispatcher
}

func New(llm Completer, sess *session.Session, disp *command.Dispatcher) *Assistant {
	return &Assistant{llm: llm, sess: sess, disp: disp}
}

// Process handles a single user utterance end to end. The transcript gains
// the user turn and the raw assistant reply regardless of whether a
// directive was present; dispatch failures come back inside Turn, not as
// an error.
func (a *Assistant) Process(ctx context.Context, utterance string) (Turn, error) {
	a.sess.Append(session.RoleUser, utterance)

	reply, err := a.llm.Complete(ctx, systemPrompt, a.sess.Window())
	if err != nil {
		return Turn{}, fmt.Errorf("chat completion: %w", err)
	}
	a.sess.Append(session.RoleAssistant, reply)

	prose, dir, hasDirective := directive.Extract(reply)
	if !hasDirective {
		return Turn{Prose: prose}, nil
	}

	log.Debug("Directive extracted", "command", dir.Command)
	res := a.disp.Dispatch(ctx, dir)
	return Turn{Prose: prose, Command: dir.Command, Result: &res}, nil
}

func (a *Assistant) Session() *session.Session { return a.sess }
