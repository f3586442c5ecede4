package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rzbill/taskboard/internal/board"
	"github.com/rzbill/taskboard/internal/draft"
	"github.com/rzbill/taskboard/internal/editsession"
	"github.com/rzbill/taskboard/internal/task"
	"github.com/rzbill/taskboard/pkg/id"
	logpkg "github.com/rzbill/taskboard/pkg/log"
)

const boardHelp = `commands:
  ls                         list tasks
  new <title> | <desc>       create a task
  edit <ref>                 start editing (ref = list number or id prefix)
  title <ref> <text>         change the title while editing
  desc <ref> <text>          change the description while editing
  save <ref>                 publish the edit and stop editing
  cancel <ref>               discard unsaved edits and stop editing
  draft <prompt>             generate a task
  rewrite <ref>              rewrite a task formally
  help                       show this help
  quit                       leave the board
`

// NewBoardCommand constructs the `board` command group.
func NewBoardCommand(env *Env) *cobra.Command {
	boardCmd := &cobra.Command{Use: "board", Short: "Task board sessions"}
	boardCmd.AddCommand(newBoardJoinCommand(env))
	return boardCmd
}

// newBoardJoinCommand constructs the interactive `board join` subcommand.
func newBoardJoinCommand(env *Env) *cobra.Command {
	joinCmd := &cobra.Command{
		Use:   "join",
		Short: "Join a board and edit it interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ch, _ := cmd.Flags().GetString("channel")
			kind, _ := cmd.Flags().GetString("transport")
			watch, _ := cmd.Flags().GetBool("watch")
			if ch == "" {
				ch = env.Config.Board.Channel
			}
			if kind == "" {
				kind = env.Config.Transport.Kind
			}
			ctx := background(cmd.Context())
			logger := env.logger()

			tr, release, err := openTransport(env, kind)
			if err != nil {
				return err
			}
			defer release()

			var gen board.Generator
			if env.Config.Generator.APIKey != "" {
				completer := draft.NewChatCompleter(env.Config.Generator, nil, logger)
				gen = draft.NewGenerator(completer, id.NewGenerator(), nil, logger)
			}
			b := board.New(env.Participant, tr, gen, logger, board.Options{Debounce: env.Config.Board.Debounce})
			defer b.Close()
			if err := b.Join(ctx, ch); err != nil {
				return err
			}

			out := &syncWriter{w: cmd.OutOrStdout()}
			r := &repl{ctx: ctx, board: b, out: out}
			if watch {
				b.OnChange(func(ts []task.Task) { r.render(ts, false) })
			}
			out.printf("joined %s as %s (%s)\n", ch, env.Participant, kind)
			logger.Debug("board session started", logpkg.Channel(ch), logpkg.Str("transport", kind))
			return r.run(cmd.InOrStdin())
		},
	}
	joinCmd.Flags().StringP("channel", "c", "", "Channel (default board.channel)")
	joinCmd.Flags().String("transport", "", "memory|relay|redis (default transport.kind)")
	joinCmd.Flags().Bool("watch", true, "Re-render the board on every change")
	return joinCmd
}

type repl struct {
	ctx   context.Context
	board *board.Board
	out   *syncWriter
}

func (r *repl) run(in io.Reader) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		verb, rest, _ := strings.Cut(line, " ")
		if verb == "quit" || verb == "exit" {
			return nil
		}
		if err := r.exec(verb, strings.TrimSpace(rest)); err != nil {
			r.out.printf("error: %v\n", err)
		}
	}
	return sc.Err()
}

func (r *repl) exec(verb, rest string) error {
	switch verb {
	case "help":
		r.out.printf("%s", boardHelp)
	case "ls":
		r.render(r.board.Snapshot(), true)
	case "new":
		title, desc, _ := strings.Cut(rest, "|")
		t, ok, err := r.board.Create(r.ctx, strings.TrimSpace(title), strings.TrimSpace(desc))
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("title and description are required")
		}
		r.out.printf("created %s\n", t.ID)
	case "edit", "save", "cancel", "rewrite":
		id, err := r.resolve(rest)
		if err != nil {
			return err
		}
		return r.lifecycle(verb, id)
	case "title", "desc":
		ref, text, _ := strings.Cut(rest, " ")
		id, err := r.resolve(ref)
		if err != nil {
			return err
		}
		field := task.FieldTitle
		if verb == "desc" {
			field = task.FieldDescription
		}
		return r.board.Change(r.ctx, id, field, text)
	case "draft":
		t, err := r.board.GenerateDraft(r.ctx, rest)
		if err != nil {
			return err
		}
		if t.ID != "" {
			r.out.printf("drafted %s\n", t.ID)
		}
	default:
		return fmt.Errorf("unknown command %q (try help)", verb)
	}
	return nil
}

func (r *repl) lifecycle(verb, id string) error {
	switch verb {
	case "edit":
		return r.board.BeginEdit(r.ctx, id)
	case "save":
		return r.board.Save(r.ctx, id)
	case "cancel":
		return r.board.Cancel(r.ctx, id)
	default:
		_, err := r.board.Rewrite(r.ctx, id)
		return err
	}
}

// resolve accepts a 1-based position in the listing or a unique id prefix
// or suffix (the listing shows suffixes).
func (r *repl) resolve(ref string) (string, error) {
	if ref == "" {
		return "", errors.New("missing task reference")
	}
	tasks := r.board.Snapshot()
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(tasks) {
		return tasks[n-1].ID, nil
	}
	match := ""
	for _, t := range tasks {
		if strings.HasPrefix(t.ID, ref) || strings.HasSuffix(t.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("ambiguous task reference %q", ref)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", board.ErrUnknownTask
	}
	return match, nil
}

// render prints tasks. sessions marks this participant's open edits; it
// must be false on the board loop, which cannot query itself.
func (r *repl) render(tasks []task.Task, sessions bool) {
	var sb strings.Builder
	if len(tasks) == 0 {
		sb.WriteString("(no tasks)\n")
	}
	for i, t := range tasks {
		marker := " "
		if t.Editing {
			marker = "*"
		}
		mine := ""
		if sessions && r.board.EditState(t.ID) == editsession.Editing {
			mine = " [editing]"
		}
		fmt.Fprintf(&sb, "%2d %s %s  %s - %s%s\n", i+1, marker, shortID(t.ID), t.Title, t.Description, mine)
	}
	r.out.printf("%s", sb.String())
}

func shortID(s string) string {
	if len(s) > 8 {
		return s[len(s)-8:]
	}
	return s
}
