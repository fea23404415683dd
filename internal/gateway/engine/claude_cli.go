package engine

import (
	"context"
	"encoding/json"
	"strings"
)

// ClaudeCLI drives the claude binary in print mode with stream-json
// output. The prompt goes in over stdin; each stdout line is one JSON
// event. The session id reported in events becomes the resume token.
type ClaudeCLI struct {
	bin string
}

// NewClaudeCLI creates the adapter for the given binary path
func NewClaudeCLI(bin string) *ClaudeCLI {
	if bin == "" {
		bin = "claude"
	}
	return &ClaudeCLI{bin: bin}
}

func (c *ClaudeCLI) Name() string { return "claude" }

func (c *ClaudeCLI) Capability() Capability {
	return Capability{
		Name:           "claude",
		Input:          InputStdin,
		Framing:        FramingStreamJSON,
		SupportsResume: true,
	}
}

func (c *ClaudeCLI) Start(ctx context.Context, req Request) (*Stream, error) {
	args := []string{"-p", "--output-format", "stream-json", "--verbose"}
	if req.ResumeToken != "" {
		args = append(args, "--resume", req.ResumeToken)
	}

	stream := newStream()
	err := runProcess(ctx, stream, "claude", req, c.bin, args, strings.NewReader(req.Prompt), handleClaudeLine, nil)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func handleClaudeLine(stream *Stream, line string) {
	text, sessionID, ok := parseClaudeEvent(line)
	if !ok {
		return
	}
	stream.setResumeToken(sessionID)
	if text != "" {
		stream.emit(Chunk{Text: text})
	}
}

// claudeEvent is the subset of the stream-json event shape we consume
type claudeEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Message   struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	Result string `json:"result"`
}

// parseClaudeEvent extracts assistant text and the session id from one
// stream-json line. Assistant events carry the text; the final result
// event repeats it, so only its session id is taken.
func parseClaudeEvent(line string) (text, sessionID string, ok bool) {
	var event claudeEvent
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		return "", "", false
	}

	switch event.Type {
	case "assistant":
		var parts []string
		for _, block := range event.Message.Content {
			if block.Type == "text" && block.Text != "" {
				parts = append(parts, block.Text)
			}
		}
		return strings.Join(parts, ""), event.SessionID, true
	case "system", "result":
		return "", event.SessionID, true
	default:
		return "", event.SessionID, true
	}
}
