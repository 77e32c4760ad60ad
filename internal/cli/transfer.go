package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/job"
	"github.com/getodk/briefcase-sub006/internal/ports"
	"github.com/getodk/briefcase-sub006/internal/ui/tui"
	"github.com/getodk/briefcase-sub006/internal/usecase"
)

type transferFlags struct {
	forms    []string
	all      bool
	tui      bool
	format   string
	parallel int

	batchSize         int
	includeIncomplete bool
	force             bool
}

func (f *transferFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.forms, "form", "f", nil, "Form id, id[version] or title (repeatable)")
	cmd.Flags().BoolVar(&f.all, "all", false, "Select every form")
	cmd.Flags().BoolVar(&f.tui, "tui", false, "Show an interactive progress view")
	cmd.Flags().StringVar(&f.format, "format", "pretty", "Output format: pretty|json")
	cmd.Flags().IntVar(&f.parallel, "parallel", 0, "Forms transferred at once (default from briefcase.yaml)")
}

func pullCmd(flags *rootFlags) *cobra.Command {
	var f transferFlags

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download forms and submissions from the pull source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(f.format); err != nil {
				return err
			}
			ws, err := loadWorkspace(flags.workspace)
			if err != nil {
				return err
			}
			source, err := rememberedEndpoint(endpointStore(), ports.RolePullSource)
			if err != nil {
				return err
			}

			opts := usecase.PullOptions{
				BatchSize:         ws.cfg.Pull.BatchSize,
				IncludeIncomplete: ws.cfg.Pull.IncludeIncomplete,
				Parallel:          ws.cfg.Pull.Parallel,
			}
			if cmd.Flags().Changed("batch-size") {
				opts.BatchSize = f.batchSize
			}
			if cmd.Flags().Changed("include-incomplete") {
				opts.IncludeIncomplete = f.includeIncomplete
			}
			if f.parallel > 0 {
				opts.Parallel = f.parallel
			}

			offered, err := ws.transfer().ListForms(cmd.Context(), source)
			if err != nil {
				return err
			}
			forms, err := selectForms(domain.NewTransferForms(offered...), f.all, f.forms)
			if err != nil {
				return err
			}

			run := transferRun[domain.PullResult]{
				title:     "Pull from " + source.Describe(),
				forms:     forms,
				flags:     f,
				keyOf:     func(r domain.PullResult) domain.FormKey { return r.Form },
				summarize: pullSummary,
				toJSON:    pullJSON,
				launch: func(ctx context.Context, tr *usecase.Transfer, ok func(domain.PullResult), fail func(error)) (*job.Runner, error) {
					return tr.PullForms(ctx, source, forms, opts, ok, fail)
				},
			}
			return run.execute(cmd, ws)
		},
	}

	f.register(cmd)
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "Submission ids requested per page from Aggregate")
	cmd.Flags().BoolVar(&f.includeIncomplete, "include-incomplete", false, "Also pull submissions Aggregate marks incomplete")
	return cmd
}

func pushCmd(flags *rootFlags) *cobra.Command {
	var f transferFlags

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upload stored forms and submissions to the push target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(f.format); err != nil {
				return err
			}
			ws, err := loadWorkspace(flags.workspace)
			if err != nil {
				return err
			}
			target, err := rememberedEndpoint(endpointStore(), ports.RolePushTarget)
			if err != nil {
				return err
			}

			opts := usecase.PushOptions{Force: ws.cfg.Push.Force || f.force, Parallel: ws.cfg.Push.Parallel}
			if f.parallel > 0 {
				opts.Parallel = f.parallel
			}

			local, err := ws.transfer().LocalForms()
			if err != nil {
				return err
			}
			forms, err := selectForms(domain.NewTransferForms(local...), f.all, f.forms)
			if err != nil {
				return err
			}

			run := transferRun[domain.PushResult]{
				title:     "Push to " + target.Describe(),
				forms:     forms,
				flags:     f,
				keyOf:     func(r domain.PushResult) domain.FormKey { return r.Form },
				summarize: pushSummary,
				toJSON:    pushJSON,
				launch: func(ctx context.Context, tr *usecase.Transfer, ok func(domain.PushResult), fail func(error)) (*job.Runner, error) {
					return tr.PushForms(ctx, target, forms, opts, ok, fail)
				},
			}
			return run.execute(cmd, ws)
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVar(&f.force, "force", false, "Upload form definitions even when the server already has them")
	return cmd
}

// transferRun drives one pull or push from the command line.
type transferRun[T any] struct {
	title string
	forms []domain.FormMetadata
	flags transferFlags

	launch    func(ctx context.Context, tr *usecase.Transfer, ok func(T), fail func(error)) (*job.Runner, error)
	keyOf     func(T) domain.FormKey
	summarize func(T) string
	toJSON    func(T) any
}

func (r transferRun[T]) execute(cmd *cobra.Command, ws *workspaceCtx) error {
	rep := &report[T]{}

	var err error
	if r.flags.tui {
		err = r.interactive(cmd.Context(), ws, rep)
	} else {
		err = r.plain(cmd, ws, rep)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if r.flags.format == "json" {
		if err := rep.writeJSON(out, r.toJSON); err != nil {
			return err
		}
	} else {
		rep.writePretty(out, r.title, r.summarize)
	}

	if n := len(rep.errors); n > 0 {
		return fmt.Errorf("%d of %d form(s) failed", n, len(r.forms))
	}
	return nil
}

func (r transferRun[T]) plain(cmd *cobra.Command, ws *workspaceCtx, rep *report[T]) error {
	errOut := cmd.ErrOrStderr()
	progress := ports.ProgressFunc(func(ev domain.FormStatusEvent) {
		rep.event(ev)
		if r.flags.format != "json" {
			fmt.Fprintf(errOut, "[%s] %s\n", ev.Form, ev.Message)
		}
	})

	runner, err := r.launch(cmd.Context(), ws.transfer(usecase.WithProgress(progress)), rep.success, rep.failure)
	if err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	done := make(chan struct{})
	go func() {
		select {
		case <-sig:
			fmt.Fprintln(errOut, "Cancelling...")
			runner.Cancel()
		case <-done:
		}
	}()

	runner.Wait()
	close(done)
	return nil
}

func (r transferRun[T]) interactive(ctx context.Context, ws *workspaceCtx, rep *report[T]) error {
	feed := tui.NewFeed()
	progress := ports.ProgressFunc(func(ev domain.FormStatusEvent) {
		rep.event(ev)
		feed.Report(ev)
	})

	runner, err := r.launch(ctx, ws.transfer(usecase.WithProgress(progress)),
		func(v T) {
			rep.success(v)
			feed.Done(r.keyOf(v), r.summarize(v), nil)
		},
		func(err error) {
			rep.failure(err)
			feed.Done(formOf(err), "", err)
		},
	)
	if err != nil {
		return err
	}

	go func() {
		runner.Wait()
		feed.Close()
	}()

	uiErr := tui.Run(tui.Deps{
		Title:  r.title,
		Forms:  r.forms,
		Cancel: sync.OnceFunc(runner.Cancel),
		Logger: ws.log,
	}, feed)
	if uiErr != nil {
		runner.Cancel()
	}
	runner.Wait()
	return uiErr
}

func selectForms(tf *domain.TransferForms, all bool, refs []string) ([]domain.FormMetadata, error) {
	if all {
		tf.SelectAll()
	}
	for _, ref := range refs {
		matched := false
		for _, f := range tf.Forms() {
			if matchesRef(f, ref) {
				tf.SetSelected(f.Key, true)
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("form %q not found", ref)
		}
	}
	if !tf.SomeSelected() {
		return nil, errors.New("no forms selected (use --form or --all)")
	}
	return tf.SelectedForms(), nil
}

func matchesRef(f domain.FormMetadata, ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false
	}
	return f.Key.String() == ref || f.Key.ID == ref || strings.EqualFold(strings.TrimSpace(f.Name), ref)
}

func formOf(err error) domain.FormKey {
	var fe *domain.FormError
	if errors.As(err, &fe) {
		return fe.Form
	}
	return domain.FormKey{}
}

func checkFormat(format string) error {
	switch format {
	case "pretty", "json", "":
		return nil
	default:
		return fmt.Errorf("unsupported format %q (expected pretty|json)", format)
	}
}
