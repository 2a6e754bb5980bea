package jmap

import (
	"encoding/json"
	"fmt"
)

// Invocation is one ["Name", arguments, "callId"] triple, the unit of
// every JMAP request and response (RFC 8620 §3.2).
type Invocation struct {
	Name   string
	Args   json.RawMessage
	CallID string
}

func (inv Invocation) MarshalJSON() ([]byte, error) {
	name, err := json.Marshal(inv.Name)
	if err != nil {
		return nil, err
	}
	callID, err := json.Marshal(inv.CallID)
	if err != nil {
		return nil, err
	}
	args := inv.Args
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	return json.Marshal([3]json.RawMessage{name, args, callID})
}

func (inv *Invocation) UnmarshalJSON(data []byte) error {
	var parts [3]json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("invocation triple: %w", err)
	}
	if err := json.Unmarshal(parts[0], &inv.Name); err != nil {
		return fmt.Errorf("invocation name: %w", err)
	}
	inv.Args = parts[1]
	if err := json.Unmarshal(parts[2], &inv.CallID); err != nil {
		return fmt.Errorf("invocation call id: %w", err)
	}
	return nil
}

// invoke marshals args into a ready Invocation.
func invoke(name string, args any, callID string) (Invocation, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return Invocation{}, fmt.Errorf("encoding %s arguments: %w", name, err)
	}
	return Invocation{Name: name, Args: raw, CallID: callID}, nil
}
