// Package transcript implements the Transcript Reader: it parses the
// host's growing line-delimited JSON transcript file and yields assistant
// turns with their preceding context since a cursor (spec §4.5).
//
// A turn is a maximal contiguous run of assistant records; the INPUT for
// turn i is the concatenation of all non-assistant records since the
// previous assistant run (or file start for i=0), and the OUTPUT is the
// flattened text of the assistant run (spec §4.5). The reader tolerates
// a truncated final line, since the host may still be writing the file.
package transcript

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"
)

// Turn is one (turn_idx, input, output) observation.
type Turn struct {
	Index  int
	Input  string
	Output string
}

// record mirrors one line of the transcript file (spec §6: "type" plus
// "message.role"/"message.content").
type record struct {
	Type    string `json:"type"`
	Message struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// flattenContent renders a record's message.content — a string or a
// sequence of typed blocks — to plain text: text blocks contribute their
// text; non-text blocks (tool_result, tool_use, …) are preserved as
// stringified JSON so downstream normalization still sees their shape.
func flattenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}

	var blocks []json.RawMessage
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return string(raw)
	}

	var parts []string
	for _, b := range blocks {
		var block contentBlock
		if err := json.Unmarshal(b, &block); err == nil && block.Type == "text" {
			parts = append(parts, block.Text)
			continue
		}
		parts = append(parts, string(b))
	}
	return strings.Join(parts, "")
}

// ReadSince reads the transcript file at path and returns every turn
// with index strictly greater than cursor, in order. It tolerates a
// truncated final line (the host may still be writing) and skips
// unrecognized record types without treating them as errors (spec §7,
// §9).
func ReadSince(path string, cursor int) ([]Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var turns []Turn
	var pendingInput strings.Builder
	var currentOutput strings.Builder
	inAssistantRun := false
	turnIdx := -1

	flushTurn := func() {
		if !inAssistantRun {
			return
		}
		turnIdx++
		if turnIdx > cursor {
			turns = append(turns, Turn{
				Index:  turnIdx,
				Input:  pendingInput.String(),
				Output: currentOutput.String(),
			})
		}
		pendingInput.Reset()
		currentOutput.Reset()
		inAssistantRun = false
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			// Partial trailing line or malformed record: skip without
			// advancing past it (spec §7 Transcript errors).
			continue
		}

		switch rec.Type {
		case "user", "assistant", "tool_result":
		default:
			// Unrecognized record type: skipped entirely.
			continue
		}

		switch rec.Message.Role {
		case "assistant":
			inAssistantRun = true
			currentOutput.WriteString(flattenContent(rec.Message.Content))
		default:
			flushTurn()
			pendingInput.WriteString(flattenContent(rec.Message.Content))
		}
	}
	flushTurn()

	if err := scanner.Err(); err != nil && err != io.EOF {
		return turns, err
	}
	return turns, nil
}
