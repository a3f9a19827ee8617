package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kingrea/callsheet/internal/config"
	"github.com/kingrea/callsheet/internal/logbook"
	"github.com/kingrea/callsheet/internal/logging"
	"github.com/kingrea/callsheet/internal/messages"
	"github.com/kingrea/callsheet/internal/tui"
)

// ConsoleCmd returns the console command
func ConsoleCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Open the operator console (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, *dir)
		},
	}
}

func runConsole(cmd *cobra.Command, dir string) error {
	root, err := projectDir(dir)
	if err != nil {
		return err
	}
	if err := config.InitDir(root); err != nil {
		return fmt.Errorf("initialize %s: %w", config.Dir, err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.ProjectDir)
	if err != nil {
		return err
	}
	defer logger.Close()

	journal, err := logbook.New(cfg.JournalPath())
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	journal.Info("Run %s started · store %s", logger.RunID(), cfg.Project.Store.Driver)

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		journal.Error("Opening %s store failed: %v", cfg.Project.Store.Driver, err)
		return err
	}
	defer store.Close()

	msgs := cfg.Project.Messages
	renderer, err := messages.New(msgs.Site, msgs.Greeting, msgs.FollowUp)
	if err != nil {
		return err
	}
	guard, oracle := newGateway(cfg, logger)
	api := cfg.Project.API

	app := tui.NewApp(tui.Options{
		Store:    store,
		Guard:    guard,
		Oracle:   oracle,
		Renderer: renderer,
		Journal:  journal,
		Keys:     cfg.Project.Keys,
		Login: tui.LoginDefaults{
			Username: api.Username,
			Password: api.Password,
			Session:  api.Session,
		},
		RunID:   logger.RunID(),
		Context: ctx,
	})

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		logger.Printf("console exited with error: %v", err)
		return fmt.Errorf("run console: %w", err)
	}
	return nil
}
