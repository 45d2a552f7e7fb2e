// Command threadctl drives a running discussions API from the terminal.
//
//	threadctl show <discussion>
//	threadctl post [-parent id] <discussion> <content>
//	threadctl edit <discussion> <comment> <content>
//	threadctl react <discussion> <comment> LIKE|HELPFUL
//	threadctl delete [-yes] <discussion> <comment>
//	threadctl form <schema> field=value...
//	threadctl upload [-kind content|video] <file>
//
// CONTENT_API_URL and CONTENT_API_USER_ID select the server and identity.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/config"
	"github.com/lms-discussions-api/internal/contentapi"
	"github.com/lms-discussions-api/internal/form"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/reaction"
	"github.com/lms-discussions-api/internal/schema"
	"github.com/lms-discussions-api/internal/thread"
	"github.com/lms-discussions-api/internal/validation"
	"github.com/lms-discussions-api/pkg/logger"
)

type app struct {
	cfg    *config.Config
	client *contentapi.Client
	log    zerolog.Logger
	stdout io.Writer
	stdin  io.Reader
}

func main() {
	log := logger.NewWithWriter("threadctl", os.Stderr)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	a := &app{
		cfg: cfg,
		client: contentapi.New(cfg.Client,
			contentapi.WithLogger(log),
			contentapi.WithUploadTimeouts(cfg.Upload.ContentTimeout, cfg.Upload.VideoTimeout),
		),
		log:    log,
		stdout: os.Stdout,
		stdin:  os.Stdin,
	}

	ctx := context.Background()
	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", apperr.Message(err))
		log.Debug().Err(err).Msg("Command failed")
		var fe apperr.FieldErrors
		if errors.As(err, &fe) {
			for _, e := range fe {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", e.Field, e.Message)
			}
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: threadctl show|post|edit|react|delete|form|upload [args]")
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "show":
		return a.show(ctx, args)
	case "post":
		return a.post(ctx, args)
	case "edit":
		return a.edit(ctx, args)
	case "react":
		return a.react(ctx, args)
	case "delete":
		return a.delete(ctx, args)
	case "form":
		return a.submitForm(ctx, args)
	case "upload":
		return a.upload(ctx, args)
	default:
		usage()
		return fmt.Errorf("%w: unknown command %q", apperr.ErrValidation, cmd)
	}
}

func (a *app) session(ctx context.Context, discussionID string) (*thread.Session, error) {
	s := thread.NewSession(a.client, discussionID, a.client.UserID(),
		thread.WithPolicy(thread.Policy{MaxDepth: a.cfg.Thread.MaxDepth}),
		thread.WithLogger(a.log),
	)
	if err := s.Load(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func need(fs *flag.FlagSet, args []string, n int) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < n {
		return fmt.Errorf("%w: %s needs %d arguments", apperr.ErrValidation, fs.Name(), n)
	}
	return nil
}

func (a *app) show(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	if err := need(fs, args, 1); err != nil {
		return err
	}

	s, err := a.session(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer s.Close()

	tree := s.Tree()
	fmt.Fprintf(a.stdout, "%d comments\n", thread.Count(tree))
	policy := thread.Policy{MaxDepth: a.cfg.Thread.MaxDepth}
	thread.Walk(tree, func(n *thread.Node) bool {
		a.printNode(n, policy)
		return true
	})
	return nil
}

func (a *app) printNode(n *thread.Node, policy thread.Policy) {
	indent := strings.Repeat("  ", n.Depth)
	c := n.Comment

	var marks []string
	if c.Edited {
		marks = append(marks, "edited")
	}
	if n.Orphaned {
		marks = append(marks, "orphaned")
	}
	for _, sum := range reaction.Summarize(c.Reactions, a.client.UserID()) {
		if sum.Count > 0 {
			mark := fmt.Sprintf("%s %d", sum.Type, sum.Count)
			if sum.Active {
				mark += "*"
			}
			marks = append(marks, mark)
		}
	}
	if act := policy.Actions(n, a.client.UserID()); act.Reply {
		marks = append(marks, "reply")
	}

	fmt.Fprintf(a.stdout, "%s- [%s] %s (%s, %s)", indent, c.ID, c.Content, c.AuthorID, c.CreatedAt.Format(time.RFC822))
	if len(marks) > 0 {
		fmt.Fprintf(a.stdout, " {%s}", strings.Join(marks, ", "))
	}
	fmt.Fprintln(a.stdout)
}

func (a *app) post(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("post", flag.ContinueOnError)
	parent := fs.String("parent", "", "comment to reply to")
	if err := need(fs, args, 2); err != nil {
		return err
	}

	s, err := a.session(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer s.Close()

	var parentID *string
	if *parent != "" {
		parentID = parent
	}
	c, err := s.AddComment(ctx, strings.Join(fs.Args()[1:], " "), parentID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, c.ID)
	return nil
}

func (a *app) edit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	if err := need(fs, args, 3); err != nil {
		return err
	}

	s, err := a.session(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer s.Close()

	commentID := fs.Arg(1)
	if err := s.BeginEdit(commentID); err != nil {
		return err
	}
	if err := s.Editor().SetDraft(commentID, strings.Join(fs.Args()[2:], " ")); err != nil {
		return err
	}
	return s.SaveEdit(ctx, commentID)
}

func (a *app) react(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("react", flag.ContinueOnError)
	if err := need(fs, args, 3); err != nil {
		return err
	}

	s, err := a.session(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer s.Close()

	rs, err := s.ToggleReaction(ctx, fs.Arg(1), models.ReactionType(strings.ToUpper(fs.Arg(2))))
	if err != nil {
		return err
	}
	for _, sum := range reaction.Summarize(rs, a.client.UserID()) {
		fmt.Fprintf(a.stdout, "%s %d active=%t\n", sum.Type, sum.Count, sum.Active)
	}
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := need(fs, args, 2); err != nil {
		return err
	}

	s, err := a.session(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer s.Close()

	commentID := fs.Arg(1)
	token, err := s.RequestDelete(commentID)
	if err != nil {
		return err
	}

	if !*yes {
		replies := 0
		if n := thread.Find(s.Tree(), commentID); n != nil {
			replies = len(thread.Subtree(n)) - 1
		}
		fmt.Fprintf(a.stdout, "Delete comment %s and %d replies? [y/N] ", commentID, replies)
		answer, _ := bufio.NewReader(a.stdin).ReadString('\n')
		if ans := strings.ToLower(strings.TrimSpace(answer)); ans != "y" && ans != "yes" {
			s.CancelDelete(token)
			fmt.Fprintln(a.stdout, "cancelled")
			return nil
		}
	}
	return s.ConfirmDelete(ctx, token)
}

func (a *app) submitForm(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("form", flag.ContinueOnError)
	if err := need(fs, args, 1); err != nil {
		return err
	}

	name := fs.Arg(0)
	values := make(validation.Values)
	for _, kv := range fs.Args()[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("%w: expected field=value, got %q", apperr.ErrValidation, kv)
		}
		values[k] = v
	}

	def, ok := schema.Resolve(name, values)
	if !ok {
		return fmt.Errorf("%w: %s", form.ErrUnknownSchema, name)
	}
	env := validation.NewEnv(time.Now(), a.cfg.Server.ReservedWords...)
	s := form.New(name, def, env, a.log)
	defer s.Close()

	if err := s.SetFields(values); err != nil {
		return err
	}
	entity, err := s.Submit(ctx, a.client)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "created %s %s", entity.Kind, entity.ID)
	if entity.Slug != "" {
		fmt.Fprintf(a.stdout, " (%s)", entity.Slug)
	}
	fmt.Fprintln(a.stdout)
	return nil
}

func (a *app) upload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	kind := fs.String("kind", string(models.UploadKindContent), "content or video")
	if err := need(fs, args, 1); err != nil {
		return err
	}

	path := fs.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	lastPct := -1
	result, err := a.client.Upload(ctx, contentapi.UploadFile{
		Kind:     models.UploadKind(*kind),
		Filename: filepath.Base(path),
		Body:     f,
		Size:     info.Size(),
	}, func(sent, total int64) {
		if total <= 0 {
			return
		}
		if pct := int(sent * 100 / total); pct != lastPct && pct%10 == 0 {
			lastPct = pct
			fmt.Fprintf(os.Stderr, "\ruploading %3d%%", pct)
		}
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, result.URL)
	return nil
}
