package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/txn-insights/internal/domain"
	"github.com/dvloznov/txn-insights/internal/insight"
)

// asker is the part of insight.Service the interactive session drives.
type asker interface {
	ProcessTurn(ctx context.Context, sessionID, query string) (insight.TurnResult, error)
	History(ctx context.Context, sessionID string) ([]domain.ConversationTurn, error)
	ResetSession(ctx context.Context, sessionID string) error
	EndSession(ctx context.Context, sessionID string) error
}

var _ asker = (*insight.Service)(nil)

type printer struct {
	out  io.Writer
	json bool
}

func (p printer) turn(res insight.TurnResult) {
	if p.json {
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			fmt.Fprintf(p.out, "error: %v\n", err)
			return
		}
		fmt.Fprintln(p.out, string(b))
		return
	}

	fmt.Fprintln(p.out, res.Explanation)
	if len(res.Insights) > 0 {
		fmt.Fprintln(p.out)
		for _, line := range res.Insights {
			fmt.Fprintf(p.out, "  * %s\n", line)
		}
	}
	followUp := ""
	if res.FollowUp {
		followUp = ", follow-up"
	}
	fmt.Fprintf(p.out, "\n[%s%s, confidence %.2f]\n", res.Intent, followUp, res.Confidence)
}

const replHelp = `Ask a question about the transactions, e.g. "fraud rate by state".
Commands: :history  :reset  :quit`

// repl reads questions line by line and answers them in one session.
func repl(ctx context.Context, svc asker, in io.Reader, p printer) error {
	fmt.Fprintln(p.out, replHelp)

	var sessionID string
	defer func() {
		if sessionID != "" {
			_ = svc.EndSession(context.WithoutCancel(ctx), sessionID)
		}
	}()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(p.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(p.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case ":quit", ":q", "exit", "quit":
			return nil
		case ":help":
			fmt.Fprintln(p.out, replHelp)
			continue
		case ":history":
			if sessionID == "" {
				fmt.Fprintln(p.out, "No questions yet.")
				continue
			}
			turns, err := svc.History(ctx, sessionID)
			if err != nil {
				fmt.Fprintf(p.out, "error: %v\n", err)
				continue
			}
			for i, t := range turns {
				fmt.Fprintf(p.out, "%d. %s [%s]\n", i+1, t.RawQuery, t.Intent)
			}
			continue
		case ":reset":
			if sessionID != "" {
				if err := svc.ResetSession(ctx, sessionID); err != nil {
					fmt.Fprintf(p.out, "error: %v\n", err)
					continue
				}
			}
			fmt.Fprintln(p.out, "Context cleared.")
			continue
		}

		res, err := svc.ProcessTurn(ctx, sessionID, line)
		if insight.IsNotFound(err) {
			fmt.Fprintln(p.out, "Session expired, starting a new one.")
			sessionID = ""
			res, err = svc.ProcessTurn(ctx, "", line)
		}
		if err != nil {
			fmt.Fprintf(p.out, "error: %v\n", err)
			continue
		}
		sessionID = res.SessionID
		p.turn(res)
	}
}
