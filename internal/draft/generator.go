package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rzbill/taskboard/internal/task"
	"github.com/rzbill/taskboard/pkg/id"
	"github.com/rzbill/taskboard/pkg/log"
)

// Fallbacks used when a successful completion leaves a field empty.
const (
	FallbackTitle       = "Generated Task"
	FallbackDescription = "No description available"
)

// ErrEmptyPrompt is returned by RequestDraft for a blank prompt.
var ErrEmptyPrompt = errors.New("draft: empty prompt")

const draftPrompt = `Please generate a kanban task as JSON in the format {"title": "<TaskTitle>", "description": "<TaskDescription>"}. ` +
	`Use double quotes around strings and open and close the object with {}. ` +
	`Return only the JSON, since the raw content is parsed as JSON. ` +
	`Write plain text without formatting, lists, bullet points or bold. Task prompt: %s`

const rewritePrompt = `Please rewrite the following task to be more formal, detailed and aligned with a kanban format, ` +
	`returning JSON in the format {"title": "<TaskTitle>", "description": "<TaskDescription>"}. ` +
	`Use double quotes around strings and open and close the object with {}. ` +
	`Return only the rewritten task JSON, without any explanation or introductory text. ` +
	`Write plain text without formatting, lists, bullet points or bold:
 Title: %q, Description: %q`

// Generator produces task drafts and rewrites from a Completer.
type Generator struct {
	completer Completer
	ids       task.IDSource
	now       task.Clock
	logger    log.Logger
}

// NewGenerator wires a Completer to the task identity sources. Nil ids use
// a fresh id.Generator and a nil clock uses time.Now.
func NewGenerator(c Completer, ids task.IDSource, now task.Clock, logger log.Logger) *Generator {
	if ids == nil {
		ids = id.NewGenerator()
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Generator{completer: c, ids: ids, now: now, logger: logger.WithComponent("draft")}
}

// RequestDraft asks for a new task described by prompt. The result has a
// fresh id, the current time and editing=false.
func (g *Generator) RequestDraft(ctx context.Context, prompt string) (task.Task, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return task.Task{}, ErrEmptyPrompt
	}
	title, desc, err := g.generate(ctx, "draft", fmt.Sprintf(draftPrompt, prompt))
	if err != nil {
		return task.Task{}, err
	}
	return task.New(title, desc, g.ids, g.now)
}

// RequestRewrite asks for a more formal version of existing. Identity,
// creation time and the editing flag are carried over.
func (g *Generator) RequestRewrite(ctx context.Context, existing task.Task) (task.Task, error) {
	title, desc, err := g.generate(ctx, "rewrite", fmt.Sprintf(rewritePrompt, existing.Title, existing.Description))
	if err != nil {
		return task.Task{}, err
	}
	out := existing
	out.Title = title
	out.Description = desc
	return out, nil
}

func (g *Generator) generate(ctx context.Context, op, prompt string) (string, string, error) {
	raw, err := g.completer.Complete(ctx, prompt)
	if err != nil {
		g.logger.Warn("completion failed", log.Str("op", op), log.Err(err))
		return "", "", withOp(err, op)
	}
	title, desc, err := Parse(raw)
	if err != nil {
		g.logger.Warn("unusable completion", log.Str("op", op), log.Int("length", len(raw)), log.Err(err))
		return "", "", &GenerationError{Op: op, Kind: KindContent, Err: err}
	}
	if title == "" {
		title = FallbackTitle
	}
	if desc == "" {
		desc = FallbackDescription
	}
	return title, desc, nil
}
