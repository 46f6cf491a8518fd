package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/signalsfoundry/mapengine/internal/query"
)

const shellPrompt = "Enter a command (help for the list):"

type shellCommand struct {
	name  string
	usage string
	run   func(context.Context, *session) error
}

func shellCommands() []shellCommand {
	return []shellCommand{
		{"info-country", "show the continent and tax fees of a country", func(ctx context.Context, s *session) error {
			_, err := s.queries.InfoCountry(ctx)
			return err
		}},
		{"route", "find the fastest route between two countries", func(ctx context.Context, s *session) error {
			_, err := s.queries.Route(ctx)
			return err
		}},
		{"countries", "list every country in the dataset", func(_ context.Context, s *session) error {
			printCountries(s)
			return nil
		}},
		{"help", "print this list", func(_ context.Context, s *session) error {
			printHelp(s)
			return nil
		}},
		{"exit", "leave mapengine", nil},
	}
}

// runShell reads commands until exit or end of input.
func runShell(ctx context.Context, s *session) error {
	commands := shellCommands()
	byName := make(map[string]shellCommand, len(commands))
	for _, c := range commands {
		byName[c.name] = c
	}

	for {
		line, err := s.console.ReadLine(ctx, shellPrompt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		name := strings.ToLower(strings.TrimSpace(line))
		if name == "" {
			continue
		}
		if name == "exit" || name == "quit" {
			return nil
		}

		c, ok := byName[name]
		if !ok {
			s.console.Println(s.console.Warning(fmt.Sprintf("Command '%s' not found. Type help for the list of commands.", name)))
			continue
		}

		err = c.run(ctx, s)
		switch {
		case err == nil:
		case errors.Is(err, query.ErrInputClosed):
			return nil
		case errors.Is(err, query.ErrTooManyAttempts):
			s.console.Println(s.console.Warning("Too many invalid country names, back to the command prompt."))
		default:
			return err
		}
	}
}

func printHelp(s *session) {
	s.console.Println(s.console.Heading("Commands"))
	for _, c := range shellCommands() {
		s.console.Printf("  %-14s %s\n", c.name, c.usage)
	}
}
