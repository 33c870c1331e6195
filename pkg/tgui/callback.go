package tgui

import "strings"

// Data formats inline callback data as "action" or "action:payload".
func Data(action, payload string) string {
	action = strings.TrimSpace(action)
	if payload == "" {
		return action
	}
	return action + ":" + payload
}

// SplitData splits callback data into (action, payload). The payload may
// itself contain colons.
func SplitData(data string) (action, payload string) {
	data = strings.TrimSpace(data)
	if i := strings.IndexByte(data, ':'); i >= 0 {
		return data[:i], data[i+1:]
	}
	return data, ""
}
