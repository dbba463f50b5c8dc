// Package main is the approver console: it watches pending requests,
// decides them and manages identities over the admin RPC.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/atinyakov/zkkeeper/internal/client/approval"
	"github.com/atinyakov/zkkeeper/internal/models"
)

var (
	version   string
	buildDate string
)

const help = `Available commands:
  list [all]                  pending requests (all includes settled)
  decide <id>                 approve, edit or reject a request
  approve <id> | reject <id>  decide without prompting
  abandon <origin>            withdraw every pending request of an origin
  identities                  list identities
  connected                   show the connected identity
  create                      create an identity
  connect <commitment>        set the connected identity
  rename <commitment> <name>  rename an identity
  delete <commitment>         delete an identity
  history                     show the operation log
  history on|off|clear        toggle or clear the operation log
  exit`

type console struct {
	client *approval.Client
	prompt *approval.Prompter
	out    io.Writer
}

func (c *console) find(ctx context.Context, id string) (models.PendingRequestSummary, error) {
	list, err := c.client.List(ctx, models.PendingRequestFilter{})
	if err != nil {
		return models.PendingRequestSummary{}, err
	}
	for _, r := range list {
		if r.ID == id {
			return r, nil
		}
	}
	return models.PendingRequestSummary{}, fmt.Errorf("request %s is not pending", id)
}

func (c *console) printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(c.out, string(b))
}

// exec runs one command line. It returns false on exit.
func (c *console) exec(ctx context.Context, args []string) (bool, error) {
	arg := func(i int) (string, error) {
		if len(args) <= i {
			return "", fmt.Errorf("usage: see help for %s", args[0])
		}
		return args[i], nil
	}

	switch args[0] {
	case "help":
		fmt.Fprintln(c.out, help)
	case "list":
		list, err := c.client.List(ctx, models.PendingRequestFilter{IncludeSettled: len(args) > 1 && args[1] == "all"})
		if err != nil {
			return true, err
		}
		if len(list) == 0 {
			fmt.Fprintln(c.out, "No pending requests")
		}
		for _, r := range list {
			c.prompt.Describe(r)
		}
	case "decide":
		id, err := arg(1)
		if err != nil {
			return true, err
		}
		r, err := c.find(ctx, id)
		if err != nil {
			return true, err
		}
		d, err := c.prompt.PromptDecision(r)
		if errors.Is(err, approval.ErrSkipped) {
			return true, nil
		}
		if err != nil {
			return true, err
		}
		return true, c.client.Decide(ctx, id, d.Decision, d.Payload)
	case "approve", "reject":
		id, err := arg(1)
		if err != nil {
			return true, err
		}
		d := models.DecisionApprove
		if args[0] == "reject" {
			d = models.DecisionReject
		}
		return true, c.client.Decide(ctx, id, d, nil)
	case "abandon":
		origin, err := arg(1)
		if err != nil {
			return true, err
		}
		n, err := c.client.AbandonOrigin(ctx, origin)
		if err != nil {
			return true, err
		}
		fmt.Fprintf(c.out, "Abandoned %d request(s) from %s\n", n, origin)
	case "identities":
		var ids []models.Identity
		if err := c.client.Call(ctx, models.GetIdentities, nil, &ids); err != nil {
			return true, err
		}
		c.printJSON(ids)
	case "connected":
		var id *models.Identity
		if err := c.client.Call(ctx, models.GetConnectedIdentity, nil, &id); err != nil {
			return true, err
		}
		c.printJSON(id)
	case "create":
		a, err := c.prompt.PromptCreateIdentity()
		if err != nil {
			return true, err
		}
		var commitment string
		if err := c.client.Call(ctx, models.CreateIdentity, a, &commitment); err != nil {
			return true, err
		}
		fmt.Fprintln(c.out, "Created", commitment)
	case "connect":
		commitment, err := arg(1)
		if err != nil {
			return true, err
		}
		return true, c.client.Call(ctx, models.SetActiveIdentity, models.IdentityCommitmentArgs{IdentityCommitment: commitment}, nil)
	case "rename":
		commitment, err := arg(1)
		if err != nil {
			return true, err
		}
		if _, err := arg(2); err != nil {
			return true, err
		}
		return true, c.client.Call(ctx, models.SetIdentityName,
			models.SetIdentityNameArgs{IdentityCommitment: commitment, Name: strings.Join(args[2:], " ")}, nil)
	case "delete":
		commitment, err := arg(1)
		if err != nil {
			return true, err
		}
		return true, c.client.Call(ctx, models.DeleteIdentity, models.IdentityCommitmentArgs{IdentityCommitment: commitment}, nil)
	case "history":
		if len(args) > 1 {
			switch args[1] {
			case "on", "off":
				return true, c.client.Call(ctx, models.EnableHistory, models.HistorySettings{IsEnabled: args[1] == "on"}, nil)
			case "clear":
				return true, c.client.Call(ctx, models.ClearHistory, nil, nil)
			}
		}
		var h json.RawMessage
		if err := c.client.Call(ctx, models.GetHistory, nil, &h); err != nil {
			return true, err
		}
		c.printJSON(h)
	case "exit":
		fmt.Fprintln(c.out, "Bye")
		return false, nil
	default:
		fmt.Fprintln(c.out, "Unknown command. Type 'help' for a list of commands.")
	}
	return true, nil
}

func (c *console) repl(ctx context.Context) {
	for {
		line, err := c.prompt.Ask("zkkeeper> ")
		if err != nil {
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		more, err := c.exec(ctx, args)
		if err != nil {
			fmt.Fprintln(c.out, "error:", err)
		}
		if !more {
			return
		}
	}
}

// main parses command-line flags and dispatches to the register or shell commands.
func main() {
	var (
		cmd       string
		baseURL   string
		certFile  string
		keyFile   string
		caFile    string
		loginStr  string
		redisAddr string
		channel   string
		interval  time.Duration
		showVer   bool
	)

	flag.StringVar(&cmd, "cmd", "shell", "command: register | shell")
	flag.StringVar(&baseURL, "url", "https://localhost:8080", "server base URL")
	flag.StringVar(&certFile, "cert", "certs/admin.crt", "path to approver cert")
	flag.StringVar(&keyFile, "key", "certs/admin.key", "path to approver key")
	flag.StringVar(&caFile, "ca", "certs/ca.crt", "path to CA cert")
	flag.StringVar(&loginStr, "login", "", "approver login for registration")
	flag.StringVar(&redisAddr, "redis", "", "redis address for push notifications (polls when empty)")
	flag.StringVar(&channel, "redis-channel", "zkkeeper:pending", "redis notification channel")
	flag.DurationVar(&interval, "poll", 2*time.Second, "pending request poll interval")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("zkkeeper approver\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	httpClient, err := approval.LoadClientCertificate(certFile, keyFile, caFile)
	if err != nil {
		log.Fatal(err)
	}

	switch cmd {
	case "register":
		if loginStr == "" {
			log.Fatal("please provide -login=name")
		}
		if err := approval.Register(ctx, httpClient, baseURL, loginStr, loginStr+".crt", loginStr+".key"); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Registration successful. Certificate and key saved to %s.crt and %s.key\n", loginStr, loginStr)
	case "shell":
		client := approval.New(baseURL, httpClient)
		login, err := client.Login(ctx)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Logged in as %s. Type 'help' for commands.\n", login)

		c := &console{client: client, prompt: approval.NewPrompter(os.Stdin, os.Stdout), out: os.Stdout}
		announce := func(r models.PendingRequestSummary) {
			fmt.Printf("\nnew request %s: %s from %s\n", r.ID, r.Type, r.Origin)
		}
		if redisAddr != "" {
			go approval.Listen(ctx, approval.Subscribe(ctx, redisAddr, channel), func(n models.Notification) {
				if n.Event == models.EventRequestCreated {
					announce(n.Request)
				}
			})
		} else {
			go approval.NewWatcher(client).Run(ctx, interval, announce, func(err error) {
				fmt.Println("\npoll error:", err)
			})
		}
		c.repl(ctx)
	default:
		log.Fatalf("unknown command: %s", cmd)
	}
}
