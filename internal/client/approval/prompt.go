package approval

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atinyakov/zkkeeper/internal/models"
)

// ErrSkipped is returned when the approver leaves a request undecided.
var ErrSkipped = errors.New("decision skipped")

// Prompter asks the approver questions on a terminal.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewPrompter returns a prompter over in and out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// Ask prints question and returns the trimmed answer line.
func (p *Prompter) Ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// Describe prints a request the way the approver sees it.
func (p *Prompter) Describe(r models.PendingRequestSummary) {
	fmt.Fprintf(p.out, "[%s] %s from %s at %s (%s)\n",
		r.ID, r.Type, r.Origin, r.CreatedAt.Format("15:04:05"), r.Status)
	if len(r.Payload) > 0 {
		fmt.Fprintf(p.out, "  payload: %s\n", r.Payload)
	}
}

// PromptDecision asks whether to approve, edit and approve, or reject r.
func (p *Prompter) PromptDecision(r models.PendingRequestSummary) (models.DecisionRequest, error) {
	p.Describe(r)
	for {
		answer, err := p.Ask("approve [a], edit [e], reject [r], skip [s]: ")
		if err != nil {
			return models.DecisionRequest{}, err
		}
		switch strings.ToLower(answer) {
		case "a", "approve":
			return models.DecisionRequest{Decision: models.DecisionApprove}, nil
		case "r", "reject":
			return models.DecisionRequest{Decision: models.DecisionReject}, nil
		case "e", "edit":
			payload, err := p.PromptPayload(r.Payload)
			if err != nil {
				return models.DecisionRequest{}, err
			}
			return models.DecisionRequest{Decision: models.DecisionApprove, Payload: payload}, nil
		case "s", "skip", "":
			return models.DecisionRequest{}, ErrSkipped
		default:
			fmt.Fprintln(p.out, "Unknown answer.")
		}
	}
}

// PromptPayload reads a replacement JSON payload on one line. An empty line
// keeps current.
func (p *Prompter) PromptPayload(current json.RawMessage) (json.RawMessage, error) {
	for {
		line, err := p.Ask("new payload (JSON, empty keeps current): ")
		if err != nil {
			return nil, err
		}
		if line == "" {
			return current, nil
		}
		if json.Valid([]byte(line)) {
			return json.RawMessage(line), nil
		}
		fmt.Fprintln(p.out, "Not valid JSON.")
	}
}

// PromptCreateIdentity collects CREATE_IDENTITY arguments.
func (p *Prompter) PromptCreateIdentity() (models.CreateIdentityArgs, error) {
	var args models.CreateIdentityArgs
	strategy, err := p.Ask("strategy (random/interrep) [random]: ")
	if err != nil {
		return args, err
	}
	args.Strategy = models.StrategyRandom
	if strategy != "" {
		args.Strategy = models.IdentityStrategy(strategy)
	}

	if args.Strategy == models.StrategyInterrep {
		if args.Options.Web2Provider, err = p.Ask("web2 provider (" + strings.Join(models.Web2Providers, "/") + "): "); err != nil {
			return args, err
		}
		if args.Options.Account, err = p.Ask("account: "); err != nil {
			return args, err
		}
		if args.MessageSignature, err = p.Ask("message signature: "); err != nil {
			return args, err
		}
		nonce, err := p.Ask("nonce [0]: ")
		if err != nil {
			return args, err
		}
		n := 0
		if nonce != "" {
			if _, err := fmt.Sscanf(nonce, "%d", &n); err != nil {
				return args, fmt.Errorf("invalid nonce %q", nonce)
			}
		}
		args.Options.Nonce = &n
	}

	if args.Options.Name, err = p.Ask("name (optional): "); err != nil {
		return args, err
	}
	return args, nil
}
