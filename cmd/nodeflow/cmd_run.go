package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbukum/nodeflow/document"
	"github.com/kbukum/nodeflow/engine"
	"github.com/kbukum/nodeflow/server"
)

type runOptions struct {
	event       string
	payload     string
	resumeAt    string
	mode        string
	breakpoints []string
	interactive bool
	save        bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Trigger an execution flow in a document",
		Long: `Run fires every event listener whose name matches --event and follows
the execution connections from there. A flow that reaches a breakpoint
pauses; with --interactive the pause is driven from stdin:

  c, continue   resume to the next breakpoint
  s, step       run the pending hop and pause before the next
  q, quit       cancel the flow`,
		Example: "  nodeflow run -d counter.yaml --event tick\n  nodeflow run -d counter.yaml --event tick --payload '{\"n\": 3}' --interactive",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request()
			if err != nil {
				return err
			}
			rt, err := root.runtime(true)
			if err != nil {
				return err
			}
			return rt.app.RunTask(cmd.Context(), func(ctx context.Context) error {
				if cmd.Flags().Changed("breakpoint") {
					rt.engine.SetBreakpoints(opts.breakpoints)
				}
				meta, err := rt.engine.StartExecutionFlow(ctx, rt.graph, req)
				if err != nil {
					return err
				}
				if opts.interactive {
					meta, err = debugLoop(ctx, rt.engine, meta, cmd.InOrStdin(), cmd.ErrOrStderr())
					if err != nil {
						return err
					}
				}
				if opts.save {
					document.Capture(rt.engine, rt.doc)
					if err := document.Save(root.document, rt.doc); err != nil {
						return err
					}
				}
				if err := printJSON(cmd.OutOrStdout(), server.SafeMeta(meta)); err != nil {
					return err
				}
				if meta.Status == engine.StatusError && meta.Error != nil {
					return meta.Error
				}
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.event, "event", "e", "", "event name matched against listeners")
	flags.StringVar(&opts.payload, "payload", "", "event payload as JSON")
	flags.StringVar(&opts.resumeAt, "resume-at", "", "start stepping at this node instead of matching listeners")
	flags.StringVar(&opts.mode, "mode", string(engine.ModeContinue), "stepping mode: continue, force or step")
	flags.StringSliceVarP(&opts.breakpoints, "breakpoint", "b", nil, "replace the document breakpoints")
	flags.BoolVarP(&opts.interactive, "interactive", "i", false, "drive paused flows from stdin")
	flags.BoolVar(&opts.save, "save", false, "write the store and breakpoints back to the document")
	return cmd
}

func (o *runOptions) request() (engine.FlowRequest, error) {
	if o.event == "" && o.resumeAt == "" {
		return engine.FlowRequest{}, fmt.Errorf("one of --event or --resume-at is required")
	}
	req := engine.FlowRequest{
		Event:    o.event,
		ResumeAt: o.resumeAt,
		Mode:     engine.Mode(o.mode),
	}
	if o.payload != "" {
		if err := json.Unmarshal([]byte(o.payload), &req.Payload); err != nil {
			return req, fmt.Errorf("--payload is not valid JSON: %w", err)
		}
	}
	return req, nil
}

// debugLoop drives a paused flow from in until it stops pausing, the input
// ends or the user quits. End of input cancels a paused flow.
func debugLoop(ctx context.Context, e *engine.Engine, meta *engine.MetaState, in io.Reader, prompt io.Writer) (*engine.MetaState, error) {
	scanner := bufio.NewScanner(in)
	for meta.Status == engine.StatusPaused {
		fmt.Fprintf(prompt, "paused before %s [c]ontinue [s]tep [q]uit> ", meta.PausedNode)
		if !scanner.Scan() {
			fmt.Fprintln(prompt)
			return cancelPaused(e, meta), scanner.Err()
		}

		var err error
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "c", "continue":
			meta, err = e.Resume(ctx)
		case "s", "step":
			meta, err = e.StepOver(ctx)
		case "q", "quit":
			return cancelPaused(e, meta), nil
		default:
			fmt.Fprintln(prompt, "unknown command")
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	return meta, nil
}

func cancelPaused(e *engine.Engine, meta *engine.MetaState) *engine.MetaState {
	if cancelled, ok := e.Cancel(); ok && cancelled != nil {
		return cancelled
	}
	return meta
}
