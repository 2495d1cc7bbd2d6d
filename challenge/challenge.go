// Package challenge implements the statement-bound sign-in message used to
// prove control of a ledger-held key. A challenge binds domain, address,
// handle, timestamp and an action statement into a fixed human-readable
// template; it is never stored, only recomputed and compared.
package challenge

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// FreshnessWindow is how long a generated challenge stays acceptable.
const FreshnessWindow = 120 * time.Second

// Action is a privileged action a challenge can authorize.
type Action int

const (
	ActionUnknown Action = iota
	ActionCreateSession
	ActionDeleteAccount
)

// Statement is the action-specific line the signed message must contain.
func (a Action) Statement() string {
	switch a {
	case ActionCreateSession:
		return "Create a new session on this server."
	case ActionDeleteAccount:
		return "Delete this account and all of its data."
	default:
		return ""
	}
}

func (a Action) String() string {
	switch a {
	case ActionCreateSession:
		return "createSession"
	case ActionDeleteAccount:
		return "deleteAccount"
	default:
		return "unknown"
	}
}

// ParseAction maps the wire name of an action back to its Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "createSession":
		return ActionCreateSession, nil
	case "deleteAccount":
		return ActionDeleteAccount, nil
	default:
		return ActionUnknown, errors.Errorf("unknown action: %q", s)
	}
}

// Generate builds the challenge message with a fresh unix timestamp.
func Generate(domain, address, handle string, action Action) (string, error) {
	if action.Statement() == "" {
		return "", errors.New("action has no statement")
	}
	return fmt.Sprintf(
		"Web5 Login\nDomain: %s\nAddress: %s\nHandle: %s\nTimestamp: %d\nStatement: %s",
		domain,
		address,
		handle,
		time.Now().Unix(),
		action.Statement(),
	), nil
}

// ExtractTimestamp finds the Timestamp line of a challenge message.
func ExtractTimestamp(message string) (int64, error) {
	for _, line := range strings.Split(message, "\n") {
		rest, found := strings.CutPrefix(line, "Timestamp: ")
		if !found {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
		if err != nil {
			return 0, errors.Wrap(err, "timestamp parse error")
		}
		return ts, nil
	}
	return 0, errors.New("no Timestamp line in message")
}

// CheckFreshness reports whether ts falls inside the freshness window
// ending at now. Timestamps in the future are rejected: a skewed client
// clock must not extend the window.
func CheckFreshness(ts int64, now time.Time) bool {
	age := now.Unix() - ts
	return age >= 0 && age < int64(FreshnessWindow/time.Second)
}

// CheckStatement reports whether any line of the message contains the
// action's statement verbatim.
func CheckStatement(message string, action Action) bool {
	statement := action.Statement()
	if statement == "" {
		return false
	}
	for _, line := range strings.Split(message, "\n") {
		if strings.Contains(line, statement) {
			return true
		}
	}
	return false
}
