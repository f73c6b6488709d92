package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// CallRecord identifies one in-flight call.
type CallRecord struct {
	CallID    string    `json:"callId"`
	CreatorID string    `json:"creatorId"`
	Receivers Receivers `json:"receivers"`
	Type      string    `json:"type"`
}

// Receivers is either a single user id or a list of user ids. The JSON shape
// it was decoded from is kept so lookups echo back what was registered.
type Receivers struct {
	IDs    []string
	single bool
}

// SingleReceiver returns a Receivers holding one id encoded as a JSON string.
func SingleReceiver(id string) Receivers {
	return Receivers{IDs: []string{id}, single: true}
}

// ReceiverList returns a Receivers encoded as a JSON array.
func ReceiverList(ids ...string) Receivers {
	if ids == nil {
		ids = []string{}
	}
	return Receivers{IDs: ids}
}

// IsSingle reports whether the receivers were given as a plain string.
func (r Receivers) IsSingle() bool { return r.single }

// MarshalJSON implements json.Marshaler.
func (r Receivers) MarshalJSON() ([]byte, error) {
	if r.single && len(r.IDs) == 1 {
		return json.Marshal(r.IDs[0])
	}
	if r.IDs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.IDs)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Receivers) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = Receivers{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = SingleReceiver(id)
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return errors.New("receivers must be a string or a list of strings")
	}
	*r = ReceiverList(ids...)
	return nil
}
