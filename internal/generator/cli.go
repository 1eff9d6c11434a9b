package generator

import (
	"context"
	"fmt"

	"github.com/fentz26/studyplan/internal/connectors"
)

// DefaultCLICommand is the model CLI invoked by the cli backend.
const DefaultCLICommand = "claude"

type cliBackend struct {
	conn    connectors.Connector
	command string
}

// NewCLI creates a generator that shells out to a local model CLI in print
// mode through conn.
func NewCLI(conn connectors.Connector, command string, prompts *Prompts) *Client {
	if command == "" {
		command = DefaultCLICommand
	}
	return newClient(&cliBackend{conn: conn, command: command}, prompts)
}

func (b *cliBackend) complete(ctx context.Context, system, user string) (string, error) {
	args := []string{"-p", system + "\n\n" + user, "--output-format", "json"}
	result, err := b.conn.Execute(ctx, b.command, args)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%s timed out", b.command)
		}
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("%s exited with code %d: %s", b.command, result.ExitCode, result.Stderr)
	}
	return result.Stdout, nil
}
