package mediator

import (
	"encoding/json"
	"io"

	"github.com/subluminal/hookmediator/internal/hookevent"
)

// EmitDecision is the Host Decision Emitter (spec §4.7): it serializes
// the verdict into the host's expected stdout shape — a single JSON
// object, compact, newline-terminated.
func EmitDecision(w io.Writer, d hookevent.Decision) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
