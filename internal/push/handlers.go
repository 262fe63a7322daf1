package push

import (
	"encoding/json"
	"fmt"
)

// On subscribes fn to events named name, decoding each payload as JSON into T.
func On[T any](b Bus, name string, fn func(T)) func() {
	return b.Subscribe(name, func(data []byte) error {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode %s payload: %w", name, err)
		}
		fn(v)
		return nil
	})
}

// OnSignal subscribes fn to a payload-less event. Whatever data arrives is ignored.
func OnSignal(b Bus, name string, fn func()) func() {
	return b.Subscribe(name, func([]byte) error {
		fn()
		return nil
	})
}
