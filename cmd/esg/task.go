package main

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"esgtrack/internal/domain"
	"esgtrack/internal/engine"
	"esgtrack/internal/repo"
)

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Generate and manage compliance tasks"}
	t.AddCommand(taskGenerateCmd())
	t.AddCommand(taskRegenerateCmd())
	t.AddCommand(taskListCmd())
	t.AddCommand(taskGetCmd())
	t.AddCommand(taskUpdateCmd())
	t.AddCommand(taskDoneCmd())
	return t
}

func taskGenerateCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate tasks from the company's answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := companyID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.GenerateForCompany(ctx, id, dryRun, settings.Actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				renderTasks(res.Tasks)
				if res.Applied != nil {
					a := res.Applied
					fmt.Printf("created %d, refreshed %d, unchanged %d, removed %d, kept %d\n",
						a.Created, a.Refreshed, a.Unchanged, a.Removed, a.Kept)
				} else {
					fmt.Printf("dry run: %d tasks\n", res.Summary.Total)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show tasks without storing them")
	return cmd
}

func taskRegenerateCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "regenerate [company-id...]",
		Short: "Regenerate tasks for several companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := args
			if !all && len(ids) == 0 {
				id, err := companyID()
				if err != nil {
					return fmt.Errorf("pass company ids, --company or --all")
				}
				ids = []string{id}
			}
			if all {
				ids = nil
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				results, err := e.Regenerate(ctx, ids, settings.Regenerate.Concurrency, settings.Actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(results)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Company", "Created", "Refreshed", "Removed", "Kept", "Error"})
				failed := 0
				for _, r := range results {
					if r.Applied == nil {
						failed++
						tw.AppendRow(table.Row{r.CompanyID, "", "", "", "", r.Error})
						continue
					}
					tw.AppendRow(table.Row{r.CompanyID, r.Applied.Created, r.Applied.Refreshed, r.Applied.Removed, r.Applied.Kept, ""})
				}
				tw.Render()
				if failed > 0 {
					return fmt.Errorf("%d of %d companies failed", failed, len(results))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "regenerate every company")
	cmd.Flags().Int("concurrency", 4, "parallel generation workers")
	_ = viper.BindPFlag("regenerate.concurrency", cmd.Flags().Lookup("concurrency"))
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	var dueBefore string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := companyID()
			if err != nil {
				return err
			}
			f.CompanyID = id
			if dueBefore != "" {
				due, err := time.Parse("2006-01-02", dueBefore)
				if err != nil {
					return fmt.Errorf("--due-before: %w", err)
				}
				f.DueBefore = &due
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				renderTasks(tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Category, "category", "", "category filter")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "priority filter")
	cmd.Flags().StringVar(&f.Source, "source", "", "source filter (question, framework)")
	cmd.Flags().StringVar(&f.Framework, "framework", "", "framework tag filter")
	cmd.Flags().StringVar(&dueBefore, "due-before", "", "only tasks due before YYYY-MM-DD")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max tasks")
	return cmd
}

func taskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			company, err := companyID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, company, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var opts engine.TaskUpdateOptions
	var due string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task status, priority or due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			company, err := companyID()
			if err != nil {
				return err
			}
			opts.CompanyID = company
			opts.ID = args[0]
			opts.ActorID = settings.Actor
			opts.Force = viper.GetBool("force")
			if due != "" {
				d, err := time.Parse("2006-01-02", due)
				if err != nil {
					return fmt.Errorf("--due: %w", err)
				}
				opts.DueDate = &d
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Status, "status", "", "new status")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "new priority (high, medium, low)")
	cmd.Flags().StringVar(&due, "due", "", "new due date YYYY-MM-DD")
	return cmd
}

func taskDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Complete task (needs all evidence unless --force)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			company, err := companyID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CompleteTask(ctx, company, args[0], settings.Actor, viper.GetBool("force"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func evidenceCmd() *cobra.Command {
	ev := &cobra.Command{Use: "evidence", Short: "Attach and list task evidence"}
	ev.AddCommand(evidenceAddCmd())
	ev.AddCommand(evidenceListCmd())
	return ev
}

func evidenceAddCmd() *cobra.Command {
	var opts engine.EvidenceOptions
	var kind string
	var value float64
	cmd := &cobra.Command{
		Use:   "add <task-id>",
		Short: "Attach a file reference or data point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			company, err := companyID()
			if err != nil {
				return err
			}
			opts.CompanyID = company
			opts.TaskID = args[0]
			opts.ActorID = settings.Actor
			opts.Kind = domain.EvidenceType(kind)
			if cmd.Flags().Changed("value") {
				opts.Value = &value
			}
			if opts.Filename != "" {
				if opts.MimeType == "" {
					opts.MimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(opts.Filename)))
				}
				opts.Filename = filepath.Base(opts.Filename)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.AddEvidence(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("attached %s to %s: %s %.2f%%\n", res.Evidence.ID, res.Task.ID, res.Task.Status, res.Task.Progress)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "file", "evidence kind (file, data)")
	cmd.Flags().StringVar(&opts.Filename, "file", "", "file path or name")
	cmd.Flags().StringVar(&opts.MimeType, "mime", "", "mime type (guessed from extension)")
	cmd.Flags().Float64Var(&value, "value", 0, "measured value for data evidence")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "unit, e.g. kWh")
	cmd.Flags().StringVar(&opts.Note, "note", "", "note")
	return cmd
}

func evidenceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <task-id>",
		Short: "List a task's evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			company, err := companyID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEvidence(ctx, company, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Kind", "File", "Value", "Unit", "By", "At"})
				for _, ev := range items {
					val := ""
					if ev.Value != nil {
						val = fmt.Sprintf("%g", *ev.Value)
					}
					tw.AppendRow(table.Row{ev.ID, ev.Kind, ev.Filename, val, ev.Unit, ev.CreatedBy, ev.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Dashboard statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			company, err := companyID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Stats(ctx, company)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("%d tasks, %.1f%% complete, %d overdue, %.0fh remaining\n",
					s.Total, s.CompletionRate, s.Overdue, s.HoursRemaining)
				tw := newTable()
				tw.AppendHeader(table.Row{"Category", "Total", "Todo", "In progress", "Completed", "Rate"})
				for _, c := range domain.Categories {
					cs, ok := s.Categories[c]
					if !ok {
						continue
					}
					tw.AppendRow(table.Row{c, cs.Total, cs.Todo, cs.InProgress, cs.Completed, fmt.Sprintf("%.1f%%", cs.CompletionRate)})
				}
				tw.Render()
				if len(s.UpcomingDue) > 0 {
					fmt.Println("upcoming:")
					for _, t := range s.UpcomingDue {
						fmt.Printf("  %s  %s [%s]\n", t.DueDate.Format("2006-01-02"), t.Title, t.Priority)
					}
				}
				return nil
			})
		},
	}
}

func nextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Suggested next steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			company, err := companyID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				steps, err := e.NextSteps(ctx, company)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(steps)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Type", "Step", "Priority", "Due", "Task"})
				for _, s := range steps {
					tw.AppendRow(table.Row{s.Type, s.Title, s.Priority, s.DueDate.Format("2006-01-02"), s.TaskID})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func complianceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compliance <framework>",
		Short: "Compliance status for one framework",
		Long:  "Framework may be a canonical name (\"Green Key Global\") or an alias such as DST.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			company, err := companyID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fc, err := e.FrameworkCompliance(ctx, company, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(fc)
				}
				fmt.Printf("%s: %s, %.1f%% of required questions answered (%d/%d), %d/%d tasks completed\n",
					fc.Framework, fc.Status, fc.CompliancePercentage, fc.AnsweredQuestions, fc.RequiredQuestions,
					fc.CompletedTasks, fc.Tasks)
				if len(fc.MissingQuestions) > 0 {
					tw := newTable()
					tw.AppendHeader(table.Row{"Question", "Category", "Text"})
					for _, q := range fc.MissingQuestions {
						tw.AppendRow(table.Row{q.ID, q.Category, q.Question})
					}
					tw.Render()
				}
				for _, r := range fc.Recommendations {
					fmt.Println("- " + r)
				}
				return nil
			})
		},
	}
}

func renderTasks(tasks []domain.Task) {
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Title", "Category", "Priority", "Status", "Due", "Progress", "Frameworks"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{
			t.ID, t.Title, t.Category, t.Priority, t.Status,
			t.DueDate.Format("2006-01-02"), fmt.Sprintf("%.0f%%", t.Progress), strings.Join(t.FrameworkTags, ", "),
		})
	}
	tw.Render()
}
