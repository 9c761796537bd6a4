package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// CommandKind identifies a console command
type CommandKind string

const (
	CommandSweep     CommandKind = "sweep"
	CommandMonitor   CommandKind = "monitor"
	CommandStop      CommandKind = "stop"
	CommandFrequency CommandKind = "freq"
	CommandBand      CommandKind = "band"
	CommandStep      CommandKind = "step"
	CommandStatus    CommandKind = "status"
	CommandHelp      CommandKind = "help"
)

const consoleHelp = `commands:
  sweep               sweep the band
  monitor             monitor the current frequency
  stop                stop sampling
  freq <MHz>          tune while monitoring
  band <low> <high>   change the band, in MHz
  step normal|fast    change the sweep step
  status              show the latest sample
`

// ErrUnknownCommand is returned for a line that is not a console command
var ErrUnknownCommand = errors.New("unknown command")

// Command is one parsed console line
type Command struct {
	Kind      CommandKind
	Frequency int  // freq
	Low       int  // band
	High      int  // band
	Fast      bool // step
}

// ParseCommand parses a console line such as "freq 5800" or "band 5645 5945"
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty line", ErrUnknownCommand)
	}

	kind, args := CommandKind(fields[0]), fields[1:]
	switch kind {
	case CommandSweep, CommandMonitor, CommandStop, CommandStatus, CommandHelp:
		if len(args) != 0 {
			return Command{}, fmt.Errorf("%s takes no arguments", kind)
		}
		return Command{Kind: kind}, nil

	case CommandFrequency:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: freq <MHz>")
		}
		f, err := parseFrequency(args[0])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: kind, Frequency: f}, nil

	case CommandBand:
		if len(args) != 2 {
			return Command{}, fmt.Errorf("usage: band <low> <high>")
		}
		low, err := parseFrequency(args[0])
		if err != nil {
			return Command{}, err
		}
		high, err := parseFrequency(args[1])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: kind, Low: low, High: high}, nil

	case CommandStep:
		if len(args) != 1 || (args[0] != "normal" && args[0] != "fast") {
			return Command{}, fmt.Errorf("usage: step normal|fast")
		}
		return Command{Kind: kind, Fast: args[0] == "fast"}, nil

	default:
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
	}
}

func parseFrequency(s string) (int, error) {
	f, err := strconv.Atoi(strings.TrimSuffix(s, "mhz"))
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid frequency: %s", s)
	}
	return f, nil
}

// runConsole applies the commands read from r until r is exhausted or ctx is done
func runConsole(ctx context.Context, r io.Reader, ctrl *controller, logger *slog.Logger) {
	lines := make(chan string)
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Warn(fmt.Sprintf("error reading console: %s", err.Error()))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}

			cmd, err := ParseCommand(line)
			if err != nil {
				logger.Warn(err.Error(), slog.String("line", line))
				continue
			}
			if err = ctrl.apply(ctx, cmd); err != nil {
				logger.Warn(fmt.Sprintf("%s failed: %s", cmd.Kind, err.Error()))
			}
		}
	}
}
