package eval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// AgentCommandEnv carries the agent's command line to the evaluation command.
const AgentCommandEnv = "SELFIMPROVE_AGENT_COMMAND"

// #region command-agent
// CommandAgent is an agent reachable as a subprocess. The evaluation command
// receives its argv through AgentCommandEnv and drives it directly.
type CommandAgent struct {
	Argv []string
}

// Name returns the agent's executable name.
func (a *CommandAgent) Name() string {
	if len(a.Argv) == 0 {
		return "command-agent"
	}
	return a.Argv[0]
}

// Close is a no-op; each evaluation spawns its own agent process.
func (a *CommandAgent) Close() error { return nil }

// CommandAgentFactory returns a factory producing fresh CommandAgents for argv.
func CommandAgentFactory(argv []string) AgentFactory {
	return func() (Agent, error) {
		if len(argv) == 0 {
			return nil, errors.New("agent command is empty")
		}
		cp := make([]string, len(argv))
		copy(cp, argv)
		return &CommandAgent{Argv: cp}, nil
	}
}

// #endregion command-agent

// #region command-evaluator
// CommandEvaluator runs an external evaluation command and decodes the JSON
// report it writes to stdout.
type CommandEvaluator struct {
	Argv    []string
	Timeout time.Duration
	Env     []string
}

// NewCommandEvaluator creates an evaluator for the given command line.
func NewCommandEvaluator(argv []string, timeout time.Duration) *CommandEvaluator {
	return &CommandEvaluator{Argv: argv, Timeout: timeout}
}

// Run executes the evaluation command once for agent.
func (e *CommandEvaluator) Run(ctx context.Context, agent Agent, params Params) (Report, error) {
	if len(e.Argv) == 0 {
		return Report{}, errors.New("eval command is empty")
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := append([]string{}, e.Argv[1:]...)
	args = append(args,
		"--turns", strconv.Itoa(params.NumTurns),
		"--questions", strconv.Itoa(params.NumQuestions),
		"--seed", strconv.FormatInt(params.Seed, 10),
	)
	if params.GraderModel != "" {
		args = append(args, "--grader-model", params.GraderModel)
	}

	cmd := exec.CommandContext(ctx, e.Argv[0], args...)
	cmd.Env = append(os.Environ(), e.Env...)
	if ca, ok := agent.(*CommandAgent); ok {
		cmd.Env = append(cmd.Env, AgentCommandEnv+"="+strings.Join(ca.Argv, " "))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Report{}, fmt.Errorf("eval command: %w", ctx.Err())
		}
		return Report{}, fmt.Errorf("eval command %s: %w: %s", e.Argv[0], err, truncate(stderr.String(), 500))
	}

	report, err := DecodeReport(stdout.Bytes())
	if err != nil {
		return Report{}, fmt.Errorf("eval command %s: %w", e.Argv[0], err)
	}
	return report, nil
}

// #endregion command-evaluator

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
