package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"esgtrack/internal/domain"
	"esgtrack/internal/engine"
	"esgtrack/internal/questionbank"
	"esgtrack/internal/repo"
)

func sectorCmd() *cobra.Command {
	sec := &cobra.Command{Use: "sector", Short: "Browse the sector question bank"}
	sec.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var sectors []domain.Sector
				for _, key := range e.Bank.Sectors() {
					s, _ := e.Bank.Sector(key)
					sectors = append(sectors, s)
				}
				if viper.GetBool("json") {
					return printJSON(sectors)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Key", "Name", "Questions", "Frameworks"})
				for _, s := range sectors {
					tw.AppendRow(table.Row{s.Key, s.Name, len(s.Questions), strings.Join(s.Frameworks, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	})
	sec.AddCommand(&cobra.Command{
		Use:   "questions <sector>",
		Short: "List a sector's questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := questionbank.NormalizeSectorKey(args[0])
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, ok := e.Bank.Sector(key); !ok {
					return fmt.Errorf("unknown sector %s", key)
				}
				questions := e.Bank.SectorQuestions(key)
				if viper.GetBool("json") {
					return printJSON(questions)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Question", "Category", "Required", "Frameworks"})
				for _, q := range questions {
					tw.AppendRow(table.Row{q.ID, q.Text, q.Category, q.Required, q.Frameworks})
				}
				tw.Render()
				return nil
			})
		},
	})
	return sec
}

func companyCmd() *cobra.Command {
	cmp := &cobra.Command{Use: "company", Short: "Manage company profiles"}
	cmp.AddCommand(companyCreateCmd())
	cmp.AddCommand(companyShowCmd())
	cmp.AddCommand(companyListCmd())
	cmp.AddCommand(companyUpdateCmd())
	cmp.AddCommand(companyAnswersCmd())
	cmp.AddCommand(companyMeterCmd())
	return cmp
}

func companyCreateCmd() *cobra.Command {
	var opts engine.CompanyCreateOptions
	var answersFile string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a company",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = settings.Actor
			if answersFile != "" {
				answers, err := readAnswers(answersFile)
				if err != nil {
					return err
				}
				opts.Answers = answers
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateCompany(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "company id (generated when empty)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "company name")
	cmd.Flags().StringVar(&opts.Sector, "sector", "", "sector key, e.g. hospitality")
	cmd.Flags().StringVar(&opts.Emirate, "emirate", "", "emirate")
	cmd.Flags().StringVar(&opts.EmployeeSize, "employee-size", "", "employee size band")
	cmd.Flags().StringVar(&answersFile, "answers", "", "answers file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("sector")
	return cmd
}

func companyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a company",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argOrCompany(args)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.GetCompany(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
}

func companyListCmd() *cobra.Command {
	var f repo.CompanyFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Sector = questionbank.NormalizeSectorKey(f.Sector)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListCompanies(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Sector", "Emirate", "Answers", "Created"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Name, c.Sector, c.Emirate, len(c.Answers), c.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Sector, "sector", "", "sector filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max companies")
	return cmd
}

func companyUpdateCmd() *cobra.Command {
	var name, emirate, size string
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update company profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := argOrCompany(args)
			if err != nil {
				return err
			}
			opts := engine.CompanyUpdateOptions{
				ID:           id,
				Name:         optionalString(cmd, "name", name),
				Emirate:      optionalString(cmd, "emirate", emirate),
				EmployeeSize: optionalString(cmd, "employee-size", size),
				ActorID:      settings.Actor,
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.UpdateCompany(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "company name")
	cmd.Flags().StringVar(&emirate, "emirate", "", "emirate")
	cmd.Flags().StringVar(&size, "employee-size", "", "employee size band")
	return cmd
}

func companyAnswersCmd() *cobra.Command {
	ans := &cobra.Command{Use: "answers", Short: "Manage questionnaire answers"}
	var replace bool
	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Import answers from a YAML or JSON file",
		Long:  "The file maps question ids to answers (yes, no, partial, or free text). A null value removes an answer.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := companyID()
			if err != nil {
				return err
			}
			answers, err := readAnswers(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.UpdateAnswers(ctx, engine.AnswersUpdateOptions{
					CompanyID: id,
					Answers:   answers,
					Replace:   replace,
					ActorID:   settings.Actor,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	imp.Flags().BoolVar(&replace, "replace", false, "drop answers missing from the file")
	ans.AddCommand(imp)
	return ans
}

func companyMeterCmd() *cobra.Command {
	mtr := &cobra.Command{Use: "meter", Short: "Manage utility meters"}
	var m domain.Meter
	add := &cobra.Command{
		Use:   "add",
		Short: "Record a utility meter",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := companyID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.AddMeter(ctx, engine.MeterOptions{CompanyID: id, Meter: m, ActorID: settings.Actor})
				if err != nil {
					return err
				}
				return printJSONOrTable(c.Meters)
			})
		},
	}
	add.Flags().StringVar(&m.Number, "number", "", "meter number")
	add.Flags().StringVar(&m.Type, "type", "electricity", "meter type (electricity, water)")
	add.Flags().StringVar(&m.Provider, "provider", "", "utility provider, e.g. DEWA")
	add.Flags().StringVar(&m.Location, "location", "", "meter location")
	_ = add.MarkFlagRequired("number")
	mtr.AddCommand(add)
	return mtr
}

// readAnswers accepts a flat map or one nested under an "answers" key.
func readAnswers(path string) (domain.Answers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse answers %s: %w", path, err)
	}
	if nested, ok := raw["answers"].(map[string]any); ok && len(raw) == 1 {
		raw = nested
	}
	return domain.Answers(raw), nil
}

func argOrCompany(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return companyID()
}
