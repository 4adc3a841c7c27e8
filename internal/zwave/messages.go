package zwave

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Sound Switch API commands sent through the gateway's sendCommand topic.
const (
	CommandGetToneCount = "getToneCount"
	CommandGetToneInfo  = "getToneInfo"
)

// ValuePayload is the body of an endpoint attribute topic.
type ValuePayload struct {
	Time         int64           `json:"time"`
	Value        json.RawMessage `json:"value"`
	NodeName     string          `json:"nodeName"`
	NodeLocation string          `json:"nodeLocation"`
}

// DecodeIntValue extracts the integer value of an endpoint attribute payload.
// Both {"value":N} objects and bare integers are accepted; a null value
// decodes as UnknownValue.
func DecodeIntValue(payload []byte) (int, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return 0, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}

	if trimmed[0] != '{' {
		return parseNumber(trimmed)
	}

	var p ValuePayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if len(p.Value) == 0 || string(p.Value) == "null" {
		return UnknownValue, nil
	}
	return parseNumber(p.Value)
}

// parseNumber decodes an integral JSON number. Fractions and values outside
// the int32 range are malformed; bus values are at most 32 bits wide.
func parseNumber(raw []byte) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		return 0, fmt.Errorf("%w: value %s is not a number", ErrMalformedPayload, string(raw))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var n json.Number
	if err := dec.Decode(&n); err != nil || n == "" || dec.More() {
		return 0, fmt.Errorf("%w: value %s is not a number", ErrMalformedPayload, string(raw))
	}

	v, err := n.Int64()
	if err != nil {
		// 12.0 and 1e2 are integral; 3.7 and 1e30 are not representable.
		f, ferr := n.Float64()
		if ferr != nil || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
			return 0, fmt.Errorf("%w: value %s is not an integer", ErrMalformedPayload, n)
		}
		v = int64(f)
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: value %d out of range", ErrMalformedPayload, v)
	}
	return int(v), nil
}

// NodeStatusPayload is the body of zwave/<node>/status.
type NodeStatusPayload struct {
	NodeID int    `json:"nodeId"`
	Value  bool   `json:"value"`
	Status string `json:"status"`
}

// DecodeNodeStatus parses a node status payload.
func DecodeNodeStatus(payload []byte) (NodeStatusPayload, error) {
	var p NodeStatusPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return NodeStatusPayload{}, fmt.Errorf("%w: node status: %w", ErrMalformedPayload, err)
	}
	return p, nil
}

// CommandTarget addresses a sendCommand request.
type CommandTarget struct {
	NodeID       int `json:"nodeId"`
	CommandClass int `json:"commandClass"`
	Endpoint     int `json:"endpoint"`
}

// CommandResult is a decoded sendCommand response.
type CommandResult struct {
	Success     bool
	Message     string
	Result      json.RawMessage
	Target      CommandTarget
	Command     string
	CommandArgs []json.RawMessage
}

type commandResultWire struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Result  json.RawMessage   `json:"result"`
	Args    []json.RawMessage `json:"args"`
}

// DecodeCommandResult parses a sendCommand response. The args array echoes
// the request: [target, command, commandArgs].
func DecodeCommandResult(payload []byte) (CommandResult, error) {
	var w commandResultWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return CommandResult{}, fmt.Errorf("%w: command result: %w", ErrMalformedPayload, err)
	}

	res := CommandResult{Success: w.Success, Message: w.Message, Result: w.Result}
	if len(w.Args) < 2 {
		return res, fmt.Errorf("%w: command result has %d args", ErrMalformedPayload, len(w.Args))
	}
	if err := json.Unmarshal(w.Args[0], &res.Target); err != nil {
		return res, fmt.Errorf("%w: command target: %w", ErrMalformedPayload, err)
	}
	if err := json.Unmarshal(w.Args[1], &res.Command); err != nil {
		return res, fmt.Errorf("%w: command name: %w", ErrMalformedPayload, err)
	}
	if len(w.Args) > 2 && string(w.Args[2]) != "null" {
		if err := json.Unmarshal(w.Args[2], &res.CommandArgs); err != nil {
			return res, fmt.Errorf("%w: command args: %w", ErrMalformedPayload, err)
		}
	}
	return res, nil
}

// IntResult decodes Result as an integer.
func (r CommandResult) IntResult() (int, error) {
	if len(r.Result) == 0 {
		return 0, fmt.Errorf("%w: %s result missing", ErrMalformedPayload, r.Command)
	}
	return parseNumber(r.Result)
}

// IntArg decodes the i-th command argument as an integer.
func (r CommandResult) IntArg(i int) (int, error) {
	if i < 0 || i >= len(r.CommandArgs) {
		return 0, fmt.Errorf("%w: %s has no argument %d", ErrMalformedPayload, r.Command, i)
	}
	return parseNumber(r.CommandArgs[i])
}

// ToneInfo is the result of getToneInfo.
type ToneInfo struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"`
}

// ToneInfoResult decodes Result as a ToneInfo.
func (r CommandResult) ToneInfoResult() (ToneInfo, error) {
	var info ToneInfo
	if len(r.Result) == 0 || r.Result[0] != '{' {
		return info, fmt.Errorf("%w: %s result is not an object", ErrMalformedPayload, r.Command)
	}
	if err := json.Unmarshal(r.Result, &info); err != nil {
		return info, fmt.Errorf("%w: tone info: %w", ErrMalformedPayload, err)
	}
	return info, nil
}

// commandRequest is the body published to the gateway command topic.
type commandRequest struct {
	Args [3]any `json:"args"`
}

func newRequest(target CommandTarget, command string, args []int) ([]byte, error) {
	if args == nil {
		args = []int{}
	}
	req := commandRequest{Args: [3]any{
		target,
		command,
		args,
	}}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s request: %w", command, err)
	}
	return data, nil
}

// ToneCountRequest builds the getToneCount request for a node, addressed to
// the scheme's command class so the response passes the same filter.
func (s TopicScheme) ToneCountRequest(nodeID int) ([]byte, error) {
	return newRequest(s.target(nodeID), CommandGetToneCount, nil)
}

// ToneInfoRequest builds the getToneInfo request for one tone of a node.
func (s TopicScheme) ToneInfoRequest(nodeID, toneID int) ([]byte, error) {
	return newRequest(s.target(nodeID), CommandGetToneInfo, []int{toneID})
}

func (s TopicScheme) target(nodeID int) CommandTarget {
	return CommandTarget{NodeID: nodeID, CommandClass: s.CommandClass, Endpoint: 0}
}

// ToneCountRequest builds the getToneCount request with DefaultTopicScheme.
func ToneCountRequest(nodeID int) ([]byte, error) {
	return DefaultTopicScheme().ToneCountRequest(nodeID)
}

// ToneInfoRequest builds the getToneInfo request with DefaultTopicScheme.
func ToneInfoRequest(nodeID, toneID int) ([]byte, error) {
	return DefaultTopicScheme().ToneInfoRequest(nodeID, toneID)
}

// FormatSetValue renders a bus value for an attribute set topic.
func FormatSetValue(v int) []byte {
	return []byte(strconv.Itoa(v))
}
