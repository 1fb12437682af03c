// Package audit provides GRASS's structured event log: one JSON line
// per auth attempt, transfer outcome, and shell-out.
package audit

import (
	"encoding/json"
	"log"
	"time"
)

type event struct {
	Ts      string `json:"ts"`
	User    string `json:"user"`
	Remote  string `json:"remote"`
	Action  string `json:"action"`
	Path    string `json:"path,omitempty"`
	Target  string `json:"target,omitempty"`
	Bytes   int64  `json:"bytes,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Log emits one audit event. err determines Success; pass nil for a
// successful outcome.
func Log(user, remote, action, path, target string, bytes int64, err error) {
	ev := event{
		Ts:      time.Now().UTC().Format(time.RFC3339Nano),
		User:    user,
		Remote:  remote,
		Action:  action,
		Path:    path,
		Target:  target,
		Bytes:   bytes,
		Success: err == nil,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	b, _ := json.Marshal(ev)
	log.Println(string(b))
}
